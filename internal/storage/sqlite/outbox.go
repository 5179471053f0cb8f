package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/openretail/settlement/internal/checkout"
)

// OutboxRepository is the SQLite implementation of checkout.OutboxRepository.
type OutboxRepository struct {
	db *sql.DB
}

func NewOutbox(db *sql.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) Pending(ctx context.Context, maxAttempts, limit int) ([]checkout.Intent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sale_id, product_id, receipt_number, quantity, employee_id, attempts
		FROM   movement_outbox
		WHERE  applied_at IS NULL AND attempts < ?
		ORDER  BY created_at
		LIMIT  ?`, maxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query pending intents: %w", err)
	}
	defer rows.Close()

	var out []checkout.Intent
	for rows.Next() {
		var in checkout.Intent
		if err := rows.Scan(&in.SaleID, &in.ProductID, &in.ReceiptNumber,
			&in.Quantity, &in.EmployeeID, &in.Attempts); err != nil {
			return nil, fmt.Errorf("sqlite: scan intent: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *OutboxRepository) MarkApplied(ctx context.Context, saleID, productID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE movement_outbox SET applied_at = ?
		WHERE  sale_id = ? AND product_id = ? AND applied_at IS NULL`,
		formatTime(time.Now()), saleID, productID)
	if err != nil {
		return fmt.Errorf("sqlite: mark intent applied: %w", err)
	}
	return nil
}

func (r *OutboxRepository) RecordFailure(ctx context.Context, saleID, productID, cause string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE movement_outbox SET attempts = attempts + 1, last_error = ?
		WHERE  sale_id = ? AND product_id = ?`,
		cause, saleID, productID)
	if err != nil {
		return fmt.Errorf("sqlite: record intent failure: %w", err)
	}
	return nil
}

// Exhausted returns intents that ran out of retry budget, for the
// reconciliation report. They stay in the table until resolved by hand.
func (r *OutboxRepository) Exhausted(ctx context.Context, maxAttempts int) ([]checkout.Intent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT sale_id, product_id, receipt_number, quantity, employee_id, attempts
		FROM   movement_outbox
		WHERE  applied_at IS NULL AND attempts >= ?
		ORDER  BY created_at`, maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query exhausted intents: %w", err)
	}
	defer rows.Close()

	var out []checkout.Intent
	for rows.Next() {
		var in checkout.Intent
		if err := rows.Scan(&in.SaleID, &in.ProductID, &in.ReceiptNumber,
			&in.Quantity, &in.EmployeeID, &in.Attempts); err != nil {
			return nil, fmt.Errorf("sqlite: scan intent: %w", err)
		}
		out = append(out, in)
	}
	return out, rows.Err()
}
