package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openretail/settlement/internal/catalog"
	"github.com/openretail/settlement/internal/checkout"
	"github.com/openretail/settlement/internal/ledger"
	"github.com/openretail/settlement/internal/loyalty"
	"github.com/openretail/settlement/internal/pricing"
	"github.com/openretail/settlement/internal/sale"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "pos.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestCatalogRoundTrip(t *testing.T) {
	db := openTestDB(t)
	repo := NewCatalog(db)
	ctx := context.Background()

	promo, err := pricing.NewPercentage(decimal.NewFromInt(25),
		time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC),
		"summer clearance")
	if err != nil {
		t.Fatalf("NewPercentage: %v", err)
	}

	in := catalog.Product{
		ID:                "espresso",
		Name:              "Espresso",
		UnitPrice:         decimal.RequireFromString("1.80"),
		Stock:             40,
		LowStockThreshold: 5,
		Promotion:         &promo,
	}
	if err := repo.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := repo.Product(ctx, "espresso")
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if !got.UnitPrice.Equal(in.UnitPrice) || got.Stock != 40 || got.Name != "Espresso" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Promotion == nil {
		t.Fatal("promotion lost in round trip")
	}
	if got.Promotion.Kind != pricing.KindPercentage || !got.Promotion.Value.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("promotion mismatch: %+v", got.Promotion)
	}
	if got.Promotion.Description != "summer clearance" {
		t.Fatalf("description = %q", got.Promotion.Description)
	}
}

func TestCatalogSaveOverwritesAndClearsPromotion(t *testing.T) {
	db := openTestDB(t)
	repo := NewCatalog(db)
	ctx := context.Background()

	promo, _ := pricing.NewFixed(decimal.RequireFromString("0.50"),
		time.Now().Add(-time.Hour), time.Now().Add(time.Hour), "")
	p := catalog.Product{ID: "scone", Name: "Scone", UnitPrice: decimal.RequireFromString("2.20"), Stock: 10, Promotion: &promo}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}

	p.Promotion = nil
	p.Stock = 7
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save again: %v", err)
	}

	got, err := repo.Product(ctx, "scone")
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if got.Promotion != nil {
		t.Fatalf("promotion should be cleared, got %+v", got.Promotion)
	}
	if got.Stock != 7 {
		t.Fatalf("stock = %d, want 7", got.Stock)
	}
}

func TestCatalogUnknownProduct(t *testing.T) {
	db := openTestDB(t)
	repo := NewCatalog(db)

	_, err := repo.Product(context.Background(), "ghost")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestCatalogMalformedPromotionPricesAtFull(t *testing.T) {
	db := openTestDB(t)
	repo := NewCatalog(db)
	ctx := context.Background()

	p := catalog.Product{ID: "bagel", Name: "Bagel", UnitPrice: decimal.RequireFromString("1.50")}
	if err := repo.Save(ctx, p); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Corrupt the row directly: percentage above 100 no longer validates.
	if _, err := db.Exec(`UPDATE products SET promo_kind='percentage', promo_value='150',
		promo_start=?, promo_end=? WHERE id='bagel'`,
		formatTime(time.Now().Add(-time.Hour)), formatTime(time.Now().Add(time.Hour))); err != nil {
		t.Fatalf("corrupt row: %v", err)
	}

	got, err := repo.Product(ctx, "bagel")
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if got.Promotion != nil {
		t.Fatalf("malformed promotion should be dropped, got %+v", got.Promotion)
	}
}

func TestCatalogLowStock(t *testing.T) {
	db := openTestDB(t)
	repo := NewCatalog(db)
	ctx := context.Background()

	for _, p := range []catalog.Product{
		{ID: "a", Name: "A", UnitPrice: decimal.NewFromInt(1), Stock: 2, LowStockThreshold: 5},
		{ID: "b", Name: "B", UnitPrice: decimal.NewFromInt(1), Stock: 50, LowStockThreshold: 5},
	} {
		if err := repo.Save(ctx, p); err != nil {
			t.Fatalf("Save %s: %v", p.ID, err)
		}
	}

	low, err := repo.LowStock(ctx)
	if err != nil {
		t.Fatalf("LowStock: %v", err)
	}
	if len(low) != 1 || low[0].ID != "a" {
		t.Fatalf("low stock = %+v, want just product a", low)
	}
}

func seedProduct(t *testing.T, db *sql.DB, id string, stock int64) {
	t.Helper()
	repo := NewCatalog(db)
	err := repo.Save(context.Background(), catalog.Product{
		ID: id, Name: id, UnitPrice: decimal.NewFromInt(1), Stock: stock,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

func TestMovementAppendAdvancesStock(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "latte", 10)
	movements := NewMovements(db)
	ctx := context.Background()

	m := ledger.Movement{
		ID: uuid.NewString(), ProductID: "latte", Delta: -3,
		Kind: ledger.KindSaleDecrement, Reason: "sale:BE123456001", Reference: "BE123456001",
		PriorStock: 10, ResultingStock: 7, OccurredAt: time.Now(),
	}
	if err := movements.Append(ctx, m); err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := NewCatalog(db).Product(ctx, "latte")
	if err != nil {
		t.Fatalf("Product: %v", err)
	}
	if got.Stock != 7 {
		t.Fatalf("stock = %d, want 7", got.Stock)
	}

	history, err := movements.ByProduct(ctx, "latte")
	if err != nil {
		t.Fatalf("ByProduct: %v", err)
	}
	if len(history) != 1 || history[0].ResultingStock != 7 {
		t.Fatalf("history = %+v", history)
	}
}

func TestMovementAppendStockConflict(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "latte", 10)
	movements := NewMovements(db)

	m := ledger.Movement{
		ID: uuid.NewString(), ProductID: "latte", Delta: -1,
		Kind: ledger.KindManualAdjustment, Reason: "shrinkage",
		PriorStock: 8, ResultingStock: 7, OccurredAt: time.Now(),
	}
	err := movements.Append(context.Background(), m)
	if !errors.Is(err, ledger.ErrStockConflict) {
		t.Fatalf("err = %v, want ErrStockConflict", err)
	}

	// The conflict must roll back the whole write: no movement row either.
	history, herr := movements.ByProduct(context.Background(), "latte")
	if herr != nil {
		t.Fatalf("ByProduct: %v", herr)
	}
	if len(history) != 0 {
		t.Fatalf("conflicting append left %d movement rows", len(history))
	}
}

func TestMovementAppendDuplicateSaleLine(t *testing.T) {
	db := openTestDB(t)
	seedProduct(t, db, "latte", 10)
	movements := NewMovements(db)
	ctx := context.Background()

	m := ledger.Movement{
		ID: uuid.NewString(), ProductID: "latte", Delta: -2,
		Kind: ledger.KindSaleDecrement, Reference: "BE777777001",
		PriorStock: 10, ResultingStock: 8, OccurredAt: time.Now(),
	}
	if err := movements.Append(ctx, m); err != nil {
		t.Fatalf("first Append: %v", err)
	}

	m.ID = uuid.NewString()
	m.PriorStock, m.ResultingStock = 8, 6
	err := movements.Append(ctx, m)
	if !errors.Is(err, ledger.ErrDuplicateMovement) {
		t.Fatalf("err = %v, want ErrDuplicateMovement", err)
	}

	got, _ := NewCatalog(db).Product(ctx, "latte")
	if got.Stock != 8 {
		t.Fatalf("duplicate decremented stock to %d", got.Stock)
	}
}

func testSale(id, receipt string) sale.Sale {
	return sale.Sale{
		ID:            id,
		ReceiptNumber: receipt,
		Lines: []sale.Line{
			{ProductID: "latte", ProductName: "Latte", Quantity: 2,
				UnitPrice: decimal.RequireFromString("3.50"), Amount: decimal.RequireFromString("7.00")},
			{ProductID: "scone", ProductName: "Scone", Quantity: 1,
				UnitPrice: decimal.RequireFromString("2.20"), Amount: decimal.RequireFromString("2.20")},
		},
		Subtotal:       decimal.RequireFromString("9.20"),
		Total:          decimal.RequireFromString("9.20"),
		PaymentMethod:  sale.PaymentCash,
		AmountTendered: decimal.NewFromInt(10),
		ChangeGiven:    decimal.RequireFromString("0.80"),
		PointsEarned:   9,
		EmployeeID:     "emp-1",
		CreatedAt:      time.Now(),
	}
}

func TestSaleAddWritesOutboxIntents(t *testing.T) {
	db := openTestDB(t)
	sales := NewSales(db)
	outbox := NewOutbox(db)
	ctx := context.Background()

	id := uuid.NewString()
	if err := sales.Add(ctx, testSale(id, "BE123456001")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := sales.Sale(ctx, id)
	if err != nil {
		t.Fatalf("Sale: %v", err)
	}
	if len(got.Lines) != 2 || !got.Total.Equal(decimal.RequireFromString("9.20")) {
		t.Fatalf("loaded sale mismatch: %+v", got)
	}
	if got.Lines[0].ProductID != "latte" || got.Lines[1].ProductID != "scone" {
		t.Fatalf("line order not preserved: %+v", got.Lines)
	}

	pending, err := outbox.Pending(ctx, 5, 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending intents = %d, want 2", len(pending))
	}
	for _, in := range pending {
		if in.SaleID != id || in.ReceiptNumber != "BE123456001" {
			t.Fatalf("intent mismatch: %+v", in)
		}
	}
}

func TestSaleAddRollsBackOnDuplicateReceipt(t *testing.T) {
	db := openTestDB(t)
	sales := NewSales(db)
	ctx := context.Background()

	if err := sales.Add(ctx, testSale(uuid.NewString(), "BE123456001")); err != nil {
		t.Fatalf("first Add: %v", err)
	}

	dupID := uuid.NewString()
	if err := sales.Add(ctx, testSale(dupID, "BE123456001")); err == nil {
		t.Fatal("duplicate receipt number accepted")
	}

	// Nothing from the failed sale may survive, outbox rows included.
	if _, err := sales.Sale(ctx, dupID); !errors.Is(err, sale.ErrNotFound) {
		t.Fatalf("failed sale is loadable: %v", err)
	}
	pending, err := NewOutbox(db).Pending(ctx, 5, 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	for _, in := range pending {
		if in.SaleID == dupID {
			t.Fatalf("rolled-back sale left outbox intent: %+v", in)
		}
	}
}

func TestSaleByReceipt(t *testing.T) {
	db := openTestDB(t)
	sales := NewSales(db)
	ctx := context.Background()

	id := uuid.NewString()
	if err := sales.Add(ctx, testSale(id, "BE999999042")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	got, err := sales.ByReceipt(ctx, "BE999999042")
	if err != nil {
		t.Fatalf("ByReceipt: %v", err)
	}
	if got.ID != id {
		t.Fatalf("ID = %q, want %q", got.ID, id)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := openTestDB(t)
	sales := NewSales(db)
	outbox := NewOutbox(db)
	ctx := context.Background()

	id := uuid.NewString()
	if err := sales.Add(ctx, testSale(id, "BE555555005")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := outbox.RecordFailure(ctx, id, "latte", "stock conflict"); err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
	if err := outbox.MarkApplied(ctx, id, "scone"); err != nil {
		t.Fatalf("MarkApplied: %v", err)
	}

	pending, err := outbox.Pending(ctx, 5, 10)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if len(pending) != 1 || pending[0].ProductID != "latte" || pending[0].Attempts != 1 {
		t.Fatalf("pending = %+v, want one latte intent with 1 attempt", pending)
	}

	// An intent out of retry budget disappears from Pending and shows up in
	// the reconciliation report.
	for i := 0; i < 4; i++ {
		if err := outbox.RecordFailure(ctx, id, "latte", "still conflicting"); err != nil {
			t.Fatalf("RecordFailure: %v", err)
		}
	}
	pending, _ = outbox.Pending(ctx, 5, 10)
	if len(pending) != 0 {
		t.Fatalf("exhausted intent still pending: %+v", pending)
	}
	exhausted, err := outbox.Exhausted(ctx, 5)
	if err != nil {
		t.Fatalf("Exhausted: %v", err)
	}
	if len(exhausted) != 1 || exhausted[0].ProductID != "latte" {
		t.Fatalf("exhausted = %+v", exhausted)
	}
}

func TestLoyaltyRoundTrip(t *testing.T) {
	db := openTestDB(t)
	store := NewLoyalty(db)
	ctx := context.Background()

	card := loyalty.NewCard(loyalty.DefaultTable(), "4000123", "Dana Ortiz")
	if err := store.Save(ctx, card); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Card(ctx, card.ID)
	if err != nil {
		t.Fatalf("Card: %v", err)
	}
	if got.Number != "4000123" || got.Tier != "bronze" || got.Points != 0 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.LastUsed != nil {
		t.Fatalf("fresh card has LastUsed = %v", got.LastUsed)
	}

	card.Accrue(42, time.Now())
	if err := store.Save(ctx, card); err != nil {
		t.Fatalf("Save after accrual: %v", err)
	}
	got, err = store.Card(ctx, card.ID)
	if err != nil {
		t.Fatalf("Card: %v", err)
	}
	if got.Points != 42 || got.LastUsed == nil {
		t.Fatalf("accrual not persisted: %+v", got)
	}
}

func TestLoyaltyUnknownCard(t *testing.T) {
	db := openTestDB(t)
	store := NewLoyalty(db)

	_, err := store.Card(context.Background(), "missing")
	if !errors.Is(err, loyalty.ErrCardNotFound) {
		t.Fatalf("err = %v, want ErrCardNotFound", err)
	}
}

func TestSettleLogAppendAndEntries(t *testing.T) {
	db := openTestDB(t)
	log := NewSettleLog(db)
	ctx := context.Background()

	settlementID := uuid.NewString()
	base := time.Now()
	for i, phase := range []checkout.Phase{checkout.PhaseOpen, checkout.PhaseValidating, checkout.PhaseComplete} {
		err := log.Append(ctx, checkout.LogEntry{
			SettlementID: settlementID,
			Phase:        phase,
			At:           base.Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("Append %s: %v", phase, err)
		}
	}

	entries, err := log.Entries(ctx, settlementID)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Phase != checkout.PhaseOpen || entries[2].Phase != checkout.PhaseComplete {
		t.Fatalf("entries out of order: %+v", entries)
	}
}
