package loyalty

import (
	"context"
	"errors"
)

// ErrCardNotFound is returned when a card ID resolves to nothing.
var ErrCardNotFound = errors.New("loyalty: card not found")

// Store is the port for card persistence. Save upserts; cards are small and
// mutated only by point accrual, so last-write-wins is acceptable.
type Store interface {
	Card(ctx context.Context, id string) (Card, error)
	Save(ctx context.Context, card Card) error
}
