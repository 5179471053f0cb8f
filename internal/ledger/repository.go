package ledger

import (
	"context"
	"errors"
)

var (
	// ErrStockConflict means the product's stock changed between the read
	// that produced PriorStock and the write. Retryable.
	ErrStockConflict = errors.New("ledger: stock changed concurrently")
	// ErrDuplicateMovement means a movement with the same sale reference and
	// product was already appended. The write is idempotently complete.
	ErrDuplicateMovement = errors.New("ledger: movement already recorded")
)

// Repository persists movements. Append must atomically update the
// product's stock from PriorStock to ResultingStock and insert the row,
// failing with ErrStockConflict when the stock no longer equals PriorStock
// and with ErrDuplicateMovement when a sale-decrement for the same
// (reference, product) pair already exists.
type Repository interface {
	Append(ctx context.Context, m Movement) error
	ByProduct(ctx context.Context, productID string) ([]Movement, error)
}
