package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/openretail/settlement/internal/httpx/middlewares"
)

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middlewares.Trace)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Post("/checkout", handler.Checkout)
	r.Get("/sales/{id}", handler.GetSale)
	r.Get("/receipts/{number}", handler.GetReceipt)

	r.Get("/products", handler.ListProducts)
	r.Get("/products/low-stock", handler.ListLowStock)
	r.Get("/products/{id}", handler.GetProduct)
	r.Get("/products/{id}/movements", handler.ListMovements)
	r.Post("/stock/adjustments", handler.Adjust)
	r.Get("/stock/reconciliation", handler.Reconciliation)

	r.Post("/loyalty/cards", handler.CreateCard)
	r.Get("/loyalty/cards/{id}", handler.GetCard)

	r.Get("/settlements/{id}/log", handler.GetSettlementLog)
	return r
}
