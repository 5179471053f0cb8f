package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openretail/settlement/internal/ledger"
)

// MovementRepository is the SQLite implementation of ledger.Repository.
type MovementRepository struct {
	db *sql.DB
}

func NewMovements(db *sql.DB) *MovementRepository {
	return &MovementRepository{db: db}
}

// Append writes the movement and advances the product's stock in one
// transaction. The stock update is conditional on the stock still being
// PriorStock; a concurrent change rolls the whole write back with
// ErrStockConflict so the caller can re-read and retry.
func (r *MovementRepository) Append(ctx context.Context, m ledger.Movement) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin movement tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if m.Kind == ledger.KindSaleDecrement && m.Reference != "" {
		var n int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM stock_movements WHERE kind = ? AND reference = ? AND product_id = ?`,
			string(ledger.KindSaleDecrement), m.Reference, m.ProductID,
		).Scan(&n)
		if err != nil {
			return fmt.Errorf("sqlite: duplicate check: %w", err)
		}
		if n > 0 {
			return ledger.ErrDuplicateMovement
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE products SET stock = ? WHERE id = ? AND stock = ?`,
		m.ResultingStock, m.ProductID, m.PriorStock)
	if err != nil {
		return fmt.Errorf("sqlite: update stock for %q: %w", m.ProductID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if affected == 0 {
		return ledger.ErrStockConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements
			(id, product_id, delta, kind, reason, employee_id, reference, prior_stock, resulting_stock, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProductID, m.Delta, string(m.Kind), m.Reason, m.EmployeeID, m.Reference,
		m.PriorStock, m.ResultingStock, formatTime(m.OccurredAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert movement %q: %w", m.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit movement: %w", err)
	}
	return nil
}

// ByProduct returns a product's movements, newest first.
func (r *MovementRepository) ByProduct(ctx context.Context, productID string) ([]ledger.Movement, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, product_id, delta, kind, reason, employee_id, reference,
		       prior_stock, resulting_stock, occurred_at
		FROM   stock_movements
		WHERE  product_id = ?
		ORDER  BY occurred_at DESC, id DESC`, productID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query movements for %q: %w", productID, err)
	}
	defer rows.Close()

	var out []ledger.Movement
	for rows.Next() {
		var (
			m          ledger.Movement
			kind       string
			occurredAt string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Delta, &kind, &m.Reason,
			&m.EmployeeID, &m.Reference, &m.PriorStock, &m.ResultingStock, &occurredAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan movement: %w", err)
		}
		m.Kind = ledger.Kind(kind)
		if m.OccurredAt, err = parseTime(occurredAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
