package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/openretail/settlement/internal/catalog"
)

const defaultMaxAttempts = 3

// Ledger performs the read-adjust-append cycle: read the product's current
// stock, derive the resulting quantity, and append a movement whose write is
// conditional on the stock being unchanged. Concurrent writers against the
// same product are resolved by bounded retries, not a lock.
type Ledger struct {
	products      catalog.Repository
	movements     Repository
	maxAttempts   int
	onStockChange func(ctx context.Context, productID string)
	now           func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithStockChangeHook registers a callback fired after every successful
// append, used to invalidate cached product reads.
func WithStockChangeHook(fn func(ctx context.Context, productID string)) Option {
	return func(l *Ledger) { l.onStockChange = fn }
}

// WithMaxAttempts overrides the retry budget for stock conflicts.
func WithMaxAttempts(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maxAttempts = n
		}
	}
}

func New(products catalog.Repository, movements Repository, opts ...Option) *Ledger {
	l := &Ledger{
		products:    products,
		movements:   movements,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Adjust appends one movement for productID. Delta may be negative; the
// ledger does not forbid a negative resulting stock, that decision belongs
// to the caller. Returns the appended movement, or the already-recorded
// outcome wrapped in ErrDuplicateMovement when the same sale line was
// applied before.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int64, kind Kind, reason, employeeID, reference string) (Movement, error) {
	if !kind.Valid() {
		return Movement{}, fmt.Errorf("ledger: unknown movement kind %q", kind)
	}

	var lastErr error
	for attempt := 1; attempt <= l.maxAttempts; attempt++ {
		p, err := l.products.Product(ctx, productID)
		if err != nil {
			return Movement{}, fmt.Errorf("ledger: load product %q: %w", productID, err)
		}

		m := Movement{
			ID:             uuid.NewString(),
			ProductID:      productID,
			Delta:          delta,
			Kind:           kind,
			Reason:         reason,
			EmployeeID:     employeeID,
			Reference:      reference,
			PriorStock:     p.Stock,
			ResultingStock: p.Stock + delta,
			OccurredAt:     l.now().UTC(),
		}

		err = l.movements.Append(ctx, m)
		switch {
		case err == nil:
			l.logOutcome(ctx, p, m)
			if l.onStockChange != nil {
				l.onStockChange(ctx, productID)
			}
			return m, nil
		case errors.Is(err, ErrStockConflict):
			lastErr = err
			continue
		case errors.Is(err, ErrDuplicateMovement):
			return m, err
		default:
			return Movement{}, fmt.Errorf("ledger: append movement for %q: %w", productID, err)
		}
	}
	return Movement{}, fmt.Errorf("ledger: adjust %q gave up after %d attempts: %w", productID, l.maxAttempts, lastErr)
}

// Movements returns the append-only history for a product, newest first.
func (l *Ledger) Movements(ctx context.Context, productID string) ([]Movement, error) {
	return l.movements.ByProduct(ctx, productID)
}

func (l *Ledger) logOutcome(ctx context.Context, p catalog.Product, m Movement) {
	if m.ResultingStock < 0 {
		slog.WarnContext(ctx, "stock went negative",
			"product_id", m.ProductID, "kind", m.Kind, "resulting_stock", m.ResultingStock)
		return
	}
	if m.ResultingStock <= p.LowStockThreshold {
		slog.InfoContext(ctx, "stock at or below alert threshold",
			"product_id", m.ProductID, "resulting_stock", m.ResultingStock, "threshold", p.LowStockThreshold)
	}
}
