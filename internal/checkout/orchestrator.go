package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/openretail/settlement/internal/cash"
	"github.com/openretail/settlement/internal/catalog"
	"github.com/openretail/settlement/internal/loyalty"
	"github.com/openretail/settlement/internal/pricing"
	"github.com/openretail/settlement/internal/sale"
)

// Orchestrator drives a checkout attempt through
// Open → Validating → Pricing → Persisting → SettlingStock → Complete,
// aborting from Validating or Persisting. Steps up to and including the
// sale write are strictly ordered; the stock decrements behind it are
// drained asynchronously from the outbox.
type Orchestrator struct {
	catalog       catalog.Repository
	sales         sale.Store
	tiers         loyalty.Table
	cards         loyalty.Store // nil: points are computed but not accrued
	outbox        *Outbox       // nil: intents wait for the periodic drain
	log           SettleLog     // nil: audit rows are skipped
	business      sale.BusinessInfo
	denominations []int64
	now           func() time.Time
}

// OrchestratorOption configures optional collaborators.
type OrchestratorOption func(*Orchestrator)

func WithCards(store loyalty.Store) OrchestratorOption {
	return func(o *Orchestrator) { o.cards = store }
}

func WithOutbox(outbox *Outbox) OrchestratorOption {
	return func(o *Orchestrator) { o.outbox = outbox }
}

func WithSettleLog(log SettleLog) OrchestratorOption {
	return func(o *Orchestrator) { o.log = log }
}

func WithBusinessInfo(info sale.BusinessInfo) OrchestratorOption {
	return func(o *Orchestrator) { o.business = info }
}

func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) { o.now = now }
}

func WithDenominations(denominations []int64) OrchestratorOption {
	return func(o *Orchestrator) { o.denominations = denominations }
}

func NewOrchestrator(cat catalog.Repository, sales sale.Store, tiers loyalty.Table, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		catalog:       cat,
		sales:         sales,
		tiers:         tiers,
		denominations: cash.EuroDenominations,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Result is handed back to the caller on completion. Change is set on cash
// payments only.
type Result struct {
	Sale    sale.Sale
	Receipt sale.Receipt
	Change  *cash.Change
}

// Settle finalizes the session's cart. For cash payments tendered is the
// amount the customer handed over; for card payments it is ignored and the
// exact total is charged. On a ValidationError or PersistenceError the cart
// is left untouched so the operator can correct and retry.
func (o *Orchestrator) Settle(ctx context.Context, sess *Session, method sale.PaymentMethod, tendered decimal.Decimal) (*Result, error) {
	settlementID := uuid.NewString()

	o.transition(ctx, sess, settlementID, PhaseValidating, "")
	if sess.Empty() {
		return nil, o.abort(ctx, sess, settlementID, &ValidationError{Code: CodeEmptyCart, Message: "cart has no lines"})
	}

	lines := sess.Lines()
	products := make(map[string]catalog.Product, len(lines))
	for _, ln := range lines {
		if ln.Quantity <= 0 {
			return nil, o.abort(ctx, sess, settlementID, &ValidationError{
				Code:    CodeInvalidQuantity,
				Message: fmt.Sprintf("product %s has quantity %d", ln.ProductID, ln.Quantity),
			})
		}
		p, err := o.catalog.Product(ctx, ln.ProductID)
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, o.abort(ctx, sess, settlementID, &ValidationError{
				Code:    CodeUnknownProduct,
				Message: fmt.Sprintf("product %s is not in the catalog", ln.ProductID),
			})
		}
		if err != nil {
			return nil, o.abort(ctx, sess, settlementID, fmt.Errorf("checkout: load product %s: %w", ln.ProductID, err))
		}
		// Best-effort check: no lock is held between here and the decrement,
		// the outbox applier re-verifies against the stock it reads.
		if ln.Quantity > p.Stock {
			return nil, o.abort(ctx, sess, settlementID, &ValidationError{
				Code:    CodeInsufficientStock,
				Message: fmt.Sprintf("product %s: requested %d, on hand %d", ln.ProductID, ln.Quantity, p.Stock),
			})
		}
		products[ln.ProductID] = p
	}

	o.transition(ctx, sess, settlementID, PhasePricing, "")
	asOf := o.now().UTC()
	subtotal := decimal.Zero
	saleLines := make([]sale.Line, 0, len(lines))
	for _, ln := range lines {
		p := products[ln.ProductID]
		amount := pricing.LineAmount(ctx, p.UnitPrice, p.Promotion, ln.Quantity, asOf)
		subtotal = subtotal.Add(amount)
		saleLines = append(saleLines, sale.Line{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    ln.Quantity,
			UnitPrice:   p.UnitPrice,
			Amount:      amount,
		})
	}

	card := sess.Card()
	rate := o.tiers.DiscountRate(card)
	total := subtotal.Mul(decimal.NewFromInt(1).Sub(rate)).Round(2)

	var change *cash.Change
	switch method {
	case sale.PaymentCash:
		br, err := cash.Breakdown(total, tendered, o.denominations)
		if errors.Is(err, cash.ErrInsufficientTender) {
			return nil, o.abort(ctx, sess, settlementID, &ValidationError{
				Code:    CodeInsufficientTender,
				Message: fmt.Sprintf("due %s, tendered %s", total.StringFixed(2), tendered.StringFixed(2)),
			})
		}
		if err != nil {
			return nil, o.abort(ctx, sess, settlementID, &ValidationError{Code: CodeInvalidTender, Message: err.Error()})
		}
		change = &br
	default:
		tendered = total
	}

	s := sale.Sale{
		ID:             settlementID,
		ReceiptNumber:  sale.NewReceiptNumber(asOf),
		Lines:          saleLines,
		Subtotal:       subtotal,
		Total:          total,
		PaymentMethod:  method,
		AmountTendered: tendered,
		ChangeGiven:    decimal.Zero,
		EmployeeID:     sess.EmployeeID(),
		CreatedAt:      asOf,
	}
	if change != nil {
		s.ChangeGiven = change.Amount
	}
	if card != nil {
		s.LoyaltyCardID = card.ID
		s.PointsEarned = loyalty.PointsEarned(total, card)
	}

	o.transition(ctx, sess, settlementID, PhasePersisting, s.ReceiptNumber)
	if err := o.sales.Add(ctx, s); err != nil {
		return nil, o.abort(ctx, sess, settlementID, &PersistenceError{Op: "persist sale", Err: err})
	}

	// The sale is now definitive. Nothing past this point may fail the
	// checkout.
	o.transition(ctx, sess, settlementID, PhaseSettlingStock, s.ReceiptNumber)
	o.accruePoints(ctx, card, s, asOf)
	if o.outbox != nil {
		go o.outbox.Drain(context.WithoutCancel(ctx))
	}

	sess.phase = PhaseComplete
	o.audit(ctx, settlementID, PhaseComplete, s.ReceiptNumber)
	slog.InfoContext(ctx, "checkout settled",
		"receipt", s.ReceiptNumber,
		"total", s.Total.StringFixed(2),
		"payment_method", string(method),
		"lines", len(s.Lines),
	)

	return &Result{
		Sale:    s,
		Receipt: sale.Receipt{Sale: s, Business: o.business},
		Change:  change,
	}, nil
}

func (o *Orchestrator) accruePoints(ctx context.Context, card *loyalty.Card, s sale.Sale, at time.Time) {
	if card == nil || s.PointsEarned <= 0 || o.cards == nil {
		return
	}
	card.Accrue(s.PointsEarned, at)
	if err := o.cards.Save(ctx, *card); err != nil {
		slog.ErrorContext(ctx, "loyalty accrual failed after sale was persisted",
			"card_id", card.ID, "receipt", s.ReceiptNumber, "error", err)
	}
}

func (o *Orchestrator) transition(ctx context.Context, sess *Session, settlementID string, phase Phase, detail string) {
	sess.phase = phase
	o.audit(ctx, settlementID, phase, detail)
}

func (o *Orchestrator) abort(ctx context.Context, sess *Session, settlementID string, err error) error {
	sess.phase = PhaseAborted
	o.audit(ctx, settlementID, PhaseAborted, err.Error())
	return err
}

func (o *Orchestrator) audit(ctx context.Context, settlementID string, phase Phase, detail string) {
	if o.log == nil {
		return
	}
	if err := o.log.Append(ctx, newLogEntry(ctx, settlementID, phase, detail)); err != nil {
		slog.WarnContext(ctx, "settlement audit append failed",
			"settlement_id", settlementID, "phase", string(phase), "error", err)
	}
}
