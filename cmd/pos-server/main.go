package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/openretail/settlement/internal/catalog"
	"github.com/openretail/settlement/internal/checkout"
	"github.com/openretail/settlement/internal/httpx"
	"github.com/openretail/settlement/internal/ledger"
	"github.com/openretail/settlement/internal/loyalty"
	"github.com/openretail/settlement/internal/pkg/cache"
	"github.com/openretail/settlement/internal/pkg/telemetry"
	"github.com/openretail/settlement/internal/sale"
	"github.com/openretail/settlement/internal/storage/sqlite"
)

func main() {
	// Local overrides live in .env; absence is not an error.
	_ = godotenv.Load()

	telemetry.InitLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.SetupTracer(ctx, "pos-server")
	if err != nil {
		log.Fatalf("tracer setup failed: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracer(flushCtx)
	}()

	db, err := sqlite.Open(getEnv("POS_DB_PATH", "pos.db"))
	if err != nil {
		log.Fatalf("opening database failed: %v", err)
	}
	defer db.Close()

	catalogRepo := sqlite.NewCatalog(db)

	var productCache cache.Cache
	if addr := os.Getenv("POS_REDIS_ADDR"); addr != "" {
		productCache = cache.NewRedis(addr, "pos")
		slog.Info("product cache enabled", "redis_addr", addr)
	}
	cachedCatalog := catalog.NewCachedRepository(catalogRepo, productCache)

	// The ledger reads stock through the raw repository so the optimistic
	// precondition is checked against the store, never a cached copy; the
	// hook keeps cached reads from going stale after a write.
	stock := ledger.New(catalogRepo, sqlite.NewMovements(db),
		ledger.WithStockChangeHook(cachedCatalog.Invalidate))

	salesStore := sqlite.NewSales(db)
	loyaltyStore := sqlite.NewLoyalty(db)
	settleLog := sqlite.NewSettleLog(db)
	outboxRepo := sqlite.NewOutbox(db)

	outbox := checkout.NewOutbox(outboxRepo, stock)
	go outbox.Run(ctx)

	tiers := loyalty.DefaultTable()
	business := sale.BusinessInfo{
		Name:       getEnv("POS_BUSINESS_NAME", "Corner Shop"),
		Address:    os.Getenv("POS_BUSINESS_ADDRESS"),
		Phone:      os.Getenv("POS_BUSINESS_PHONE"),
		Email:      os.Getenv("POS_BUSINESS_EMAIL"),
		VATNumber:  os.Getenv("POS_BUSINESS_VAT"),
		BusinessID: os.Getenv("POS_BUSINESS_ID"),
	}

	orchestrator := checkout.NewOrchestrator(catalogRepo, salesStore, tiers,
		checkout.WithCards(loyaltyStore),
		checkout.WithOutbox(outbox),
		checkout.WithSettleLog(settleLog),
		checkout.WithBusinessInfo(business),
	)

	handler := httpx.NewHandler(orchestrator, cachedCatalog, salesStore, stock, tiers,
		httpx.WithCards(loyaltyStore),
		httpx.WithSettlementAudit(settleLog),
		httpx.WithReconciler(outboxRepo),
		httpx.WithBusinessInfo(business),
	)

	srv := &http.Server{
		Addr:              getEnv("POS_HTTP_ADDR", ":8080"),
		Handler:           httpx.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutting down")
		drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(drainCtx)
	}()

	slog.Info("pos-server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server failed: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
