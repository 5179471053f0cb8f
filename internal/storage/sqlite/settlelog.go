package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openretail/settlement/internal/checkout"
)

// SettleLogRepository is the SQLite implementation of checkout.SettleLog.
// The table is append-only; each row is an immutable phase transition.
type SettleLogRepository struct {
	db *sql.DB
}

func NewSettleLog(db *sql.DB) *SettleLogRepository {
	return &SettleLogRepository{db: db}
}

func (r *SettleLogRepository) Append(ctx context.Context, e checkout.LogEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settlement_log (settlement_id, phase, detail, trace_id, span_id, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.SettlementID, string(e.Phase), e.Detail, e.TraceID, e.SpanID, formatTime(e.At),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append settlement log for %q: %w", e.SettlementID, err)
	}
	return nil
}

// Entries returns a settlement's phase history in order, for the status
// endpoint.
func (r *SettleLogRepository) Entries(ctx context.Context, settlementID string) ([]checkout.LogEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT settlement_id, phase, detail, trace_id, span_id, at
		FROM   settlement_log
		WHERE  settlement_id = ?
		ORDER  BY at, id`, settlementID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query settlement log: %w", err)
	}
	defer rows.Close()

	var out []checkout.LogEntry
	for rows.Next() {
		var (
			e     checkout.LogEntry
			phase string
			at    string
		)
		if err := rows.Scan(&e.SettlementID, &phase, &e.Detail, &e.TraceID, &e.SpanID, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan settlement log: %w", err)
		}
		e.Phase = checkout.Phase(phase)
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
