package checkout

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/openretail/settlement/internal/catalog"
	"github.com/openretail/settlement/internal/ledger"
)

// ledgerCatalog backs a real ledger.Ledger in outbox tests.
type ledgerCatalog struct {
	mu    sync.Mutex
	stock map[string]int64
}

func (f *ledgerCatalog) Product(_ context.Context, id string) (catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stock[id]
	if !ok {
		return catalog.Product{}, catalog.ErrNotFound
	}
	return catalog.Product{ID: id, UnitPrice: decimal.NewFromInt(1), Stock: s}, nil
}

func (f *ledgerCatalog) Products(context.Context) ([]catalog.Product, error) { return nil, nil }
func (f *ledgerCatalog) LowStock(context.Context) ([]catalog.Product, error) { return nil, nil }
func (f *ledgerCatalog) Save(context.Context, catalog.Product) error         { return nil }

type ledgerMovements struct {
	cat      *ledgerCatalog
	appended []ledger.Movement
	seen     map[string]bool
}

func (f *ledgerMovements) Append(_ context.Context, m ledger.Movement) error {
	key := m.Reference + "|" + m.ProductID
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	if m.Kind == ledger.KindSaleDecrement && f.seen[key] {
		return ledger.ErrDuplicateMovement
	}
	f.seen[key] = true
	f.appended = append(f.appended, m)
	f.cat.mu.Lock()
	f.cat.stock[m.ProductID] = m.ResultingStock
	f.cat.mu.Unlock()
	return nil
}

func (f *ledgerMovements) ByProduct(context.Context, string) ([]ledger.Movement, error) {
	return nil, nil
}

type memOutboxRepo struct {
	mu       sync.Mutex
	intents  []Intent
	applied  map[string]bool
	failures map[string]int
}

func newMemOutboxRepo(intents ...Intent) *memOutboxRepo {
	return &memOutboxRepo{
		intents:  intents,
		applied:  make(map[string]bool),
		failures: make(map[string]int),
	}
}

func key(saleID, productID string) string { return saleID + "|" + productID }

func (r *memOutboxRepo) Pending(_ context.Context, maxAttempts, limit int) ([]Intent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Intent
	for _, in := range r.intents {
		k := key(in.SaleID, in.ProductID)
		if r.applied[k] || r.failures[k] >= maxAttempts {
			continue
		}
		in.Attempts = r.failures[k]
		out = append(out, in)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *memOutboxRepo) MarkApplied(_ context.Context, saleID, productID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applied[key(saleID, productID)] = true
	return nil
}

func (r *memOutboxRepo) RecordFailure(_ context.Context, saleID, productID, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[key(saleID, productID)]++
	return nil
}

func TestDrainAppliesIntents(t *testing.T) {
	cat := &ledgerCatalog{stock: map[string]int64{"p1": 10, "p2": 4}}
	mov := &ledgerMovements{cat: cat}
	l := ledger.New(cat, mov)

	repo := newMemOutboxRepo(
		Intent{SaleID: "s1", ReceiptNumber: "BE1", ProductID: "p1", Quantity: 3, EmployeeID: "emp1"},
		Intent{SaleID: "s1", ReceiptNumber: "BE1", ProductID: "p2", Quantity: 1, EmployeeID: "emp1"},
	)
	o := NewOutbox(repo, l)

	if applied := o.Drain(context.Background()); applied != 2 {
		t.Fatalf("expected 2 applied, got %d", applied)
	}
	if cat.stock["p1"] != 7 || cat.stock["p2"] != 3 {
		t.Fatalf("unexpected stock: %v", cat.stock)
	}
	if len(mov.appended) != 2 {
		t.Fatalf("expected 2 movements, got %d", len(mov.appended))
	}
	m := mov.appended[0]
	if m.Kind != ledger.KindSaleDecrement || m.Reason != "sale:BE1" || m.Reference != "BE1" || m.Delta != -3 {
		t.Fatalf("unexpected movement: %+v", m)
	}
	// Second drain finds nothing to do.
	if applied := o.Drain(context.Background()); applied != 0 {
		t.Fatalf("expected idempotent drain, applied %d", applied)
	}
}

func TestDrainTreatsDuplicateAsApplied(t *testing.T) {
	cat := &ledgerCatalog{stock: map[string]int64{"p1": 10}}
	mov := &ledgerMovements{cat: cat}
	l := ledger.New(cat, mov)

	// The movement already exists (applied before a crash lost the mark).
	if _, err := l.Adjust(context.Background(), "p1", -3, ledger.KindSaleDecrement, "sale:BE9", "emp1", "BE9"); err != nil {
		t.Fatalf("seed movement: %v", err)
	}

	repo := newMemOutboxRepo(
		Intent{SaleID: "s9", ReceiptNumber: "BE9", ProductID: "p1", Quantity: 3, EmployeeID: "emp1"},
	)
	o := NewOutbox(repo, l)

	if applied := o.Drain(context.Background()); applied != 1 {
		t.Fatalf("duplicate must count as applied, got %d", applied)
	}
	if cat.stock["p1"] != 7 {
		t.Fatalf("stock must not be decremented twice, got %d", cat.stock["p1"])
	}
}

func TestDrainRecordsFailuresAndGivesUp(t *testing.T) {
	// No such product: every apply fails.
	cat := &ledgerCatalog{stock: map[string]int64{}}
	mov := &ledgerMovements{cat: cat}
	l := ledger.New(cat, mov)

	repo := newMemOutboxRepo(
		Intent{SaleID: "s2", ReceiptNumber: "BE2", ProductID: "ghost", Quantity: 1, EmployeeID: "emp1"},
	)
	o := NewOutbox(repo, l, WithApplyAttempts(2))

	for i := 0; i < 5; i++ {
		if applied := o.Drain(context.Background()); applied != 0 {
			t.Fatalf("apply should fail, got %d applied", applied)
		}
	}
	if got := repo.failures[key("s2", "ghost")]; got != 2 {
		t.Fatalf("expected exactly 2 recorded attempts before giving up, got %d", got)
	}
}
