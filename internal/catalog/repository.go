package catalog

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a product ID resolves to nothing.
var ErrNotFound = errors.New("catalog: product not found")

// Repository is the port the engine consumes. Stock is never written through
// it; all stock changes go through the ledger so every delta leaves a
// movement behind.
type Repository interface {
	Product(ctx context.Context, id string) (Product, error)
	Products(ctx context.Context) ([]Product, error)
	LowStock(ctx context.Context) ([]Product, error)
	Save(ctx context.Context, p Product) error
}
