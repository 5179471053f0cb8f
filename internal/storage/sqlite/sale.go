package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openretail/settlement/internal/sale"
)

// SaleStore is the SQLite implementation of sale.Store. Add writes the sale,
// its line snapshots, and one movement-outbox intent per line in a single
// transaction: either the sale happened and its decrements are queued, or
// nothing happened at all.
type SaleStore struct {
	db *sql.DB
}

func NewSales(db *sql.DB) *SaleStore {
	return &SaleStore{db: db}
}

func (s *SaleStore) Add(ctx context.Context, sl sale.Sale) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin sale tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales
			(id, receipt_number, subtotal, total, payment_method, amount_tendered,
			 change_given, loyalty_card_id, points_earned, employee_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sl.ID, sl.ReceiptNumber, sl.Subtotal.String(), sl.Total.String(),
		string(sl.PaymentMethod), sl.AmountTendered.String(), sl.ChangeGiven.String(),
		nullableString(sl.LoyaltyCardID), sl.PointsEarned, sl.EmployeeID, formatTime(sl.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert sale %q: %w", sl.ID, err)
	}

	now := formatTime(time.Now())
	for i, ln := range sl.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, position, product_id, product_name, quantity, unit_price, amount)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			sl.ID, i, ln.ProductID, ln.ProductName, ln.Quantity, ln.UnitPrice.String(), ln.Amount.String(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: insert sale line %d: %w", i, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO movement_outbox (sale_id, product_id, receipt_number, quantity, employee_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			sl.ID, ln.ProductID, sl.ReceiptNumber, ln.Quantity, sl.EmployeeID, now,
		)
		if err != nil {
			return fmt.Errorf("sqlite: queue movement intent for %q: %w", ln.ProductID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit sale %q: %w", sl.ID, err)
	}
	return nil
}

func (s *SaleStore) Sale(ctx context.Context, id string) (sale.Sale, error) {
	return s.querySale(ctx, `WHERE id = ?`, id)
}

func (s *SaleStore) ByReceipt(ctx context.Context, receiptNumber string) (sale.Sale, error) {
	return s.querySale(ctx, `WHERE receipt_number = ?`, receiptNumber)
}

func (s *SaleStore) querySale(ctx context.Context, where string, arg any) (sale.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, receipt_number, subtotal, total, payment_method, amount_tendered,
		       change_given, COALESCE(loyalty_card_id, ''), points_earned, employee_id, created_at
		FROM   sales `+where, arg)

	var (
		sl                                       sale.Sale
		subtotal, total, tendered, change, stamp string
		method                                   string
	)
	err := row.Scan(&sl.ID, &sl.ReceiptNumber, &subtotal, &total, &method,
		&tendered, &change, &sl.LoyaltyCardID, &sl.PointsEarned, &sl.EmployeeID, &stamp)
	if err == sql.ErrNoRows {
		return sale.Sale{}, sale.ErrNotFound
	}
	if err != nil {
		return sale.Sale{}, fmt.Errorf("sqlite: load sale: %w", err)
	}

	sl.PaymentMethod = sale.PaymentMethod(method)
	if sl.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return sale.Sale{}, fmt.Errorf("sqlite: subtotal %q: %w", subtotal, err)
	}
	if sl.Total, err = decimal.NewFromString(total); err != nil {
		return sale.Sale{}, fmt.Errorf("sqlite: total %q: %w", total, err)
	}
	if sl.AmountTendered, err = decimal.NewFromString(tendered); err != nil {
		return sale.Sale{}, fmt.Errorf("sqlite: amount tendered %q: %w", tendered, err)
	}
	if sl.ChangeGiven, err = decimal.NewFromString(change); err != nil {
		return sale.Sale{}, fmt.Errorf("sqlite: change given %q: %w", change, err)
	}
	if sl.CreatedAt, err = parseTime(stamp); err != nil {
		return sale.Sale{}, err
	}

	if sl.Lines, err = s.saleLines(ctx, sl.ID); err != nil {
		return sale.Sale{}, err
	}
	return sl, nil
}

func (s *SaleStore) saleLines(ctx context.Context, saleID string) ([]sale.Line, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, unit_price, amount
		FROM   sale_lines
		WHERE  sale_id = ?
		ORDER  BY position`, saleID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query sale lines: %w", err)
	}
	defer rows.Close()

	var out []sale.Line
	for rows.Next() {
		var (
			ln            sale.Line
			price, amount string
		)
		if err := rows.Scan(&ln.ProductID, &ln.ProductName, &ln.Quantity, &price, &amount); err != nil {
			return nil, fmt.Errorf("sqlite: scan sale line: %w", err)
		}
		if ln.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite: line unit price %q: %w", price, err)
		}
		if ln.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("sqlite: line amount %q: %w", amount, err)
		}
		out = append(out, ln)
	}
	return out, rows.Err()
}
