package checkout

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/openretail/settlement/internal/ledger"
)

const (
	defaultDrainInterval = 5 * time.Second
	drainBatchSize       = 64
)

// DefaultApplyAttempts is the retry budget before an intent is handed over
// to the reconciliation report.
const DefaultApplyAttempts = 5

// Intent is a queued stock decrement for one settled sale line, written in
// the same transaction as its sale. Keyed by (SaleID, ProductID).
type Intent struct {
	SaleID        string
	ReceiptNumber string
	ProductID     string
	Quantity      int64
	EmployeeID    string
	Attempts      int
}

// OutboxRepository is the port for the pending-movement queue.
type OutboxRepository interface {
	// Pending returns unapplied intents with fewer than maxAttempts failed
	// applications, oldest first, at most limit rows.
	Pending(ctx context.Context, maxAttempts, limit int) ([]Intent, error)
	MarkApplied(ctx context.Context, saleID, productID string) error
	RecordFailure(ctx context.Context, saleID, productID, cause string) error
}

// Outbox drains pending movement intents into the stock ledger. Appliers
// are idempotent: a duplicate movement for the same (receipt, product) pair
// counts as applied, so re-draining after a crash is safe.
type Outbox struct {
	repo        OutboxRepository
	ledger      *ledger.Ledger
	maxAttempts int
	interval    time.Duration
	kick        chan struct{}

	mu sync.Mutex // one drain at a time
}

// OutboxOption configures an Outbox.
type OutboxOption func(*Outbox)

func WithDrainInterval(d time.Duration) OutboxOption {
	return func(o *Outbox) {
		if d > 0 {
			o.interval = d
		}
	}
}

func WithApplyAttempts(n int) OutboxOption {
	return func(o *Outbox) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

func NewOutbox(repo OutboxRepository, l *ledger.Ledger, opts ...OutboxOption) *Outbox {
	o := &Outbox{
		repo:        repo,
		ledger:      l,
		maxAttempts: DefaultApplyAttempts,
		interval:    defaultDrainInterval,
		kick:        make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Kick requests a drain without blocking. Coalesces with an already pending
// request.
func (o *Outbox) Kick() {
	select {
	case o.kick <- struct{}{}:
	default:
	}
}

// Run drains on a fixed interval and on every Kick until ctx is cancelled.
func (o *Outbox) Run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-o.kick:
		}
		o.Drain(ctx)
	}
}

// Drain applies one batch of pending intents and returns how many were
// applied. Failures are recorded per intent and never stop the batch.
func (o *Outbox) Drain(ctx context.Context) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	intents, err := o.repo.Pending(ctx, o.maxAttempts, drainBatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "outbox: reading pending intents failed", "error", err)
		return 0
	}

	applied := 0
	for _, in := range intents {
		if o.apply(ctx, in) {
			applied++
		}
	}
	return applied
}

func (o *Outbox) apply(ctx context.Context, in Intent) bool {
	_, err := o.ledger.Adjust(ctx, in.ProductID, -in.Quantity,
		ledger.KindSaleDecrement, "sale:"+in.ReceiptNumber, in.EmployeeID, in.ReceiptNumber)

	if err != nil && !errors.Is(err, ledger.ErrDuplicateMovement) {
		slog.WarnContext(ctx, "outbox: applying movement intent failed",
			"sale_id", in.SaleID, "product_id", in.ProductID,
			"attempt", in.Attempts+1, "max_attempts", o.maxAttempts, "error", err)
		if recErr := o.repo.RecordFailure(ctx, in.SaleID, in.ProductID, err.Error()); recErr != nil {
			slog.ErrorContext(ctx, "outbox: recording failure failed",
				"sale_id", in.SaleID, "product_id", in.ProductID, "error", recErr)
		}
		return false
	}

	if err := o.repo.MarkApplied(ctx, in.SaleID, in.ProductID); err != nil {
		// The movement is written; the duplicate guard makes the retry a
		// no-op, so this is recoverable noise.
		slog.ErrorContext(ctx, "outbox: marking intent applied failed",
			"sale_id", in.SaleID, "product_id", in.ProductID, "error", err)
		return false
	}
	return true
}
