// Package httpx exposes the settlement engine over HTTP: checkout, sale and
// receipt lookup, catalog reads, stock adjustments, loyalty cards, and the
// reconciliation report.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/openretail/settlement/internal/cash"
	"github.com/openretail/settlement/internal/catalog"
	"github.com/openretail/settlement/internal/checkout"
	"github.com/openretail/settlement/internal/ledger"
	"github.com/openretail/settlement/internal/loyalty"
	"github.com/openretail/settlement/internal/pricing"
	"github.com/openretail/settlement/internal/sale"
)

// Settler finalizes a cart. Implemented by checkout.Orchestrator.
type Settler interface {
	Settle(ctx context.Context, sess *checkout.Session, method sale.PaymentMethod, tendered decimal.Decimal) (*checkout.Result, error)
}

// StockAdjuster appends movements to the stock ledger. Implemented by
// ledger.Ledger.
type StockAdjuster interface {
	Adjust(ctx context.Context, productID string, delta int64, kind ledger.Kind, reason, employeeID, reference string) (ledger.Movement, error)
	Movements(ctx context.Context, productID string) ([]ledger.Movement, error)
}

// SettlementAudit reads a settlement's phase history.
type SettlementAudit interface {
	Entries(ctx context.Context, settlementID string) ([]checkout.LogEntry, error)
}

// Reconciler lists movement intents that ran out of retry budget.
type Reconciler interface {
	Exhausted(ctx context.Context, maxAttempts int) ([]checkout.Intent, error)
}

// Handler handles incoming HTTP requests for the point-of-sale domain.
type Handler struct {
	settler  Settler
	catalog  catalog.Repository
	sales    sale.Store
	stock    StockAdjuster
	cards    loyalty.Store // nil-safe: loyalty endpoints answer 503 if nil
	tiers    loyalty.Table
	audit    SettlementAudit // nil-safe: settlement log endpoint answers 503 if nil
	reconcil Reconciler      // nil-safe: reconciliation endpoint answers 503 if nil
	business sale.BusinessInfo
}

// HandlerOption wires optional collaborators.
type HandlerOption func(*Handler)

func WithCards(store loyalty.Store) HandlerOption {
	return func(h *Handler) { h.cards = store }
}

func WithSettlementAudit(audit SettlementAudit) HandlerOption {
	return func(h *Handler) { h.audit = audit }
}

func WithReconciler(r Reconciler) HandlerOption {
	return func(h *Handler) { h.reconcil = r }
}

func WithBusinessInfo(info sale.BusinessInfo) HandlerOption {
	return func(h *Handler) { h.business = info }
}

// NewHandler initializes the handler with its required collaborators.
func NewHandler(settler Settler, cat catalog.Repository, sales sale.Store, stock StockAdjuster, tiers loyalty.Table, opts ...HandlerOption) *Handler {
	h := &Handler{
		settler: settler,
		catalog: cat,
		sales:   sales,
		stock:   stock,
		tiers:   tiers,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Checkout receives a cart, settles it, and returns the sale with its
// receipt and, for cash payments, the change breakdown.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.EmployeeID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "employee_id is required")
		return
	}

	method := sale.PaymentMethod(req.PaymentMethod)
	if method != sale.PaymentCash && method != sale.PaymentCard {
		writeError(w, http.StatusBadRequest, "invalid_payment_method", "payment_method must be cash or card")
		return
	}

	tendered := decimal.Zero
	if method == sale.PaymentCash {
		var err error
		if tendered, err = decimal.NewFromString(req.AmountTendered); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_tender", "amount_tendered must be a decimal amount")
			return
		}
	}

	sess := checkout.NewSession(req.EmployeeID)
	for _, ln := range req.Lines {
		sess.AddItem(ln.ProductID, ln.Quantity)
	}

	if req.LoyaltyCardID != "" {
		if h.cards == nil {
			writeError(w, http.StatusServiceUnavailable, "loyalty_unavailable", "")
			return
		}
		card, err := h.cards.Card(r.Context(), req.LoyaltyCardID)
		if errors.Is(err, loyalty.ErrCardNotFound) {
			writeError(w, http.StatusBadRequest, "unknown_loyalty_card", req.LoyaltyCardID)
			return
		}
		if err != nil {
			writeError(w, http.StatusBadGateway, "loyalty_lookup_failed", err.Error())
			return
		}
		sess.AttachCard(card)
	}

	result, err := h.settler.Settle(r.Context(), sess, method, tendered)
	if err != nil {
		h.writeCheckoutError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CheckoutResponse{
		Sale:    mapSale(result.Sale),
		Receipt: mapReceipt(result.Receipt),
		Change:  mapChange(result.Change),
	})
}

func (h *Handler) writeCheckoutError(ctx context.Context, w http.ResponseWriter, err error) {
	if ve, ok := checkout.AsValidation(err); ok {
		status := http.StatusUnprocessableEntity
		if ve.Code == checkout.CodeInsufficientStock {
			status = http.StatusConflict
		}
		writeError(w, status, ve.Code, ve.Message)
		return
	}
	var pe *checkout.PersistenceError
	if errors.As(err, &pe) {
		slog.ErrorContext(ctx, "checkout aborted on persistence failure", "error", err)
		writeError(w, http.StatusBadGateway, "sale_write_failed", pe.Op)
		return
	}
	slog.ErrorContext(ctx, "checkout failed", "error", err)
	writeError(w, http.StatusInternalServerError, "checkout_failed", "")
}

// GetSale retrieves a settled sale by its ID.
func (h *Handler) GetSale(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s, err := h.sales.Sale(r.Context(), id)
	if errors.Is(err, sale.ErrNotFound) {
		writeError(w, http.StatusNotFound, "sale_not_found", id)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "sale_lookup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mapSale(s))
}

// GetReceipt re-renders the receipt for a settled sale by receipt number.
func (h *Handler) GetReceipt(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	s, err := h.sales.ByReceipt(r.Context(), number)
	if errors.Is(err, sale.ErrNotFound) {
		writeError(w, http.StatusNotFound, "receipt_not_found", number)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "sale_lookup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mapReceipt(sale.Receipt{Sale: s, Business: h.business}))
}

// ListProducts returns the catalog, including attached promotions.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Products(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "catalog_read_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mapProducts(products))
}

// ListLowStock returns products at or below their alert threshold.
func (h *Handler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.LowStock(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "catalog_read_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mapProducts(products))
}

// GetProduct retrieves a single product by its ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.catalog.Product(r.Context(), id)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "product_not_found", id)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "catalog_read_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(p))
}

// ListMovements returns a product's stock movement history, newest first.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	movements, err := h.stock.Movements(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "ledger_read_failed", err.Error())
		return
	}
	out := make([]MovementResponse, len(movements))
	for i, m := range movements {
		out[i] = mapMovement(m)
	}
	writeJSON(w, http.StatusOK, out)
}

// Adjust appends a manual movement: corrections, losses, inventory counts.
// Sale decrements are not accepted here; they only enter through checkout.
func (h *Handler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req AdjustmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.ProductID == "" || req.Delta == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "product_id and a non-zero delta are required")
		return
	}
	kind := ledger.Kind(req.Kind)
	if !kind.Valid() || kind == ledger.KindSaleDecrement {
		writeError(w, http.StatusBadRequest, "invalid_kind", req.Kind)
		return
	}

	m, err := h.stock.Adjust(r.Context(), req.ProductID, req.Delta, kind, req.Reason, req.EmployeeID, "")
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeError(w, http.StatusNotFound, "product_not_found", req.ProductID)
	case errors.Is(err, ledger.ErrStockConflict):
		writeError(w, http.StatusConflict, "stock_contention", "concurrent stock changes, retry the adjustment")
	case err != nil:
		writeError(w, http.StatusBadGateway, "ledger_write_failed", err.Error())
	default:
		writeJSON(w, http.StatusCreated, mapMovement(m))
	}
}

// CreateCard issues a loyalty card on the entry tier.
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	if h.cards == nil {
		writeError(w, http.StatusServiceUnavailable, "loyalty_unavailable", "")
		return
	}
	var req CreateCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if req.Number == "" || req.CustomerName == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "number and customer_name are required")
		return
	}

	card := loyalty.NewCard(h.tiers, req.Number, req.CustomerName)
	if err := h.cards.Save(r.Context(), card); err != nil {
		writeError(w, http.StatusBadGateway, "loyalty_write_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, mapCard(card))
}

// GetCard retrieves a loyalty card by its ID.
func (h *Handler) GetCard(w http.ResponseWriter, r *http.Request) {
	if h.cards == nil {
		writeError(w, http.StatusServiceUnavailable, "loyalty_unavailable", "")
		return
	}
	id := chi.URLParam(r, "id")
	card, err := h.cards.Card(r.Context(), id)
	if errors.Is(err, loyalty.ErrCardNotFound) {
		writeError(w, http.StatusNotFound, "card_not_found", id)
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "loyalty_lookup_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, mapCard(card))
}

// GetSettlementLog returns a settlement's phase history.
func (h *Handler) GetSettlementLog(w http.ResponseWriter, r *http.Request) {
	if h.audit == nil {
		writeError(w, http.StatusServiceUnavailable, "audit_unavailable", "")
		return
	}
	id := chi.URLParam(r, "id")
	entries, err := h.audit.Entries(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusBadGateway, "audit_read_failed", err.Error())
		return
	}
	if len(entries) == 0 {
		writeError(w, http.StatusNotFound, "settlement_not_found", id)
		return
	}
	out := make([]SettlementLogEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = SettlementLogEntryResponse{
			Phase:   string(e.Phase),
			Detail:  e.Detail,
			TraceID: e.TraceID,
			SpanID:  e.SpanID,
			At:      e.At.UTC().Format(time.RFC3339Nano),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Reconciliation lists sale lines whose stock decrement never applied. They
// need a manual adjustment and a look at why the applier kept failing.
func (h *Handler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	if h.reconcil == nil {
		writeError(w, http.StatusServiceUnavailable, "reconciliation_unavailable", "")
		return
	}
	intents, err := h.reconcil.Exhausted(r.Context(), checkout.DefaultApplyAttempts)
	if err != nil {
		writeError(w, http.StatusBadGateway, "reconciliation_read_failed", err.Error())
		return
	}
	out := make([]PendingIntentResponse, len(intents))
	for i, in := range intents {
		out[i] = PendingIntentResponse{
			SaleID:        in.SaleID,
			ReceiptNumber: in.ReceiptNumber,
			ProductID:     in.ProductID,
			Quantity:      in.Quantity,
			Attempts:      in.Attempts,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func mapSale(s sale.Sale) SaleResponse {
	lines := make([]SaleLineResponse, len(s.Lines))
	for i, ln := range s.Lines {
		lines[i] = SaleLineResponse{
			ProductID:   ln.ProductID,
			ProductName: ln.ProductName,
			Quantity:    ln.Quantity,
			UnitPrice:   ln.UnitPrice.StringFixed(2),
			Amount:      ln.Amount.StringFixed(2),
		}
	}
	return SaleResponse{
		ID:             s.ID,
		ReceiptNumber:  s.ReceiptNumber,
		Lines:          lines,
		Subtotal:       s.Subtotal.StringFixed(2),
		Total:          s.Total.StringFixed(2),
		PaymentMethod:  string(s.PaymentMethod),
		AmountTendered: s.AmountTendered.StringFixed(2),
		ChangeGiven:    s.ChangeGiven.StringFixed(2),
		LoyaltyCardID:  s.LoyaltyCardID,
		PointsEarned:   s.PointsEarned,
		EmployeeID:     s.EmployeeID,
		CreatedAt:      s.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func mapReceipt(rc sale.Receipt) ReceiptResponse {
	return ReceiptResponse{
		Business: BusinessResponse{
			Name:       rc.Business.Name,
			Address:    rc.Business.Address,
			Phone:      rc.Business.Phone,
			Email:      rc.Business.Email,
			VATNumber:  rc.Business.VATNumber,
			BusinessID: rc.Business.BusinessID,
		},
		Sale: mapSale(rc.Sale),
	}
}

func mapChange(c *cash.Change) *ChangeResponse {
	if c == nil {
		return nil
	}
	counts := make([]DenominationCountTO, len(c.Counts))
	for i, dc := range c.Counts {
		counts[i] = DenominationCountTO{
			Denomination: dc.Denomination.StringFixed(2),
			Count:        dc.Count,
		}
	}
	return &ChangeResponse{Amount: c.Amount.StringFixed(2), Counts: counts}
}

func mapProducts(products []catalog.Product) []ProductResponse {
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = mapProduct(p)
	}
	return out
}

func mapProduct(p catalog.Product) ProductResponse {
	resp := ProductResponse{
		ID:                p.ID,
		Name:              p.Name,
		UnitPrice:         p.UnitPrice.StringFixed(2),
		Stock:             p.Stock,
		LowStockThreshold: p.LowStockThreshold,
	}
	if promo := p.Promotion; promo != nil {
		pr := &PromotionResponse{
			Kind:        string(promo.Kind),
			StartTime:   promo.StartTime.UTC().Format(time.RFC3339Nano),
			EndTime:     promo.EndTime.UTC().Format(time.RFC3339Nano),
			Description: promo.Description,
		}
		if promo.Kind == pricing.KindBuyXGetY {
			pr.BuyQuantity = promo.BuyQuantity
			pr.GetFreeQuantity = promo.GetFreeQuantity
		} else {
			pr.Value = promo.Value.String()
		}
		resp.Promotion = pr
	}
	return resp
}

func mapMovement(m ledger.Movement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		ProductID:      m.ProductID,
		Delta:          m.Delta,
		Kind:           string(m.Kind),
		Reason:         m.Reason,
		EmployeeID:     m.EmployeeID,
		Reference:      m.Reference,
		PriorStock:     m.PriorStock,
		ResultingStock: m.ResultingStock,
		OccurredAt:     m.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

func mapCard(c loyalty.Card) CardResponse {
	resp := CardResponse{
		ID:           c.ID,
		Number:       c.Number,
		CustomerName: c.CustomerName,
		Tier:         c.Tier,
		Points:       c.Points,
		CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if c.LastUsed != nil {
		resp.LastUsed = c.LastUsed.UTC().Format(time.RFC3339Nano)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
