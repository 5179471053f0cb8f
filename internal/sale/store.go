package sale

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a sale ID resolves to nothing.
var ErrNotFound = errors.New("sale: not found")

// Store persists sales. Add is the single source of truth for "did the sale
// happen": it must write the sale and one pending stock-movement intent per
// line in the same transaction, so a crash can never leave a sale without
// its queued decrements.
type Store interface {
	Add(ctx context.Context, s Sale) error
	Sale(ctx context.Context, id string) (Sale, error)
	ByReceipt(ctx context.Context, receiptNumber string) (Sale, error)
}
