package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-retail/atlas-erp/internal/app"
	"github.com/atlas-retail/atlas-erp/internal/integration"
	"github.com/atlas-retail/atlas-erp/internal/masterdata"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/customers"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/products"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/stores"
	"github.com/atlas-retail/atlas-erp/internal/masterdata/suppliers"
	"github.com/atlas-retail/atlas-erp/internal/observability"
	"github.com/atlas-retail/atlas-erp/internal/platform/cache"
	"github.com/atlas-retail/atlas-erp/internal/platform/db"
	"github.com/atlas-retail/atlas-erp/internal/pricing"
	"github.com/atlas-retail/atlas-erp/internal/procurement"
	"github.com/atlas-retail/atlas-erp/internal/sales"
	"github.com/atlas-retail/atlas-erp/internal/sequence"
	"github.com/atlas-retail/atlas-erp/internal/shared"
	"github.com/atlas-retail/atlas-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	productsService := products.NewService(products.NewRepository(dbpool))
	storesService := stores.NewService(stores.NewRepository(dbpool))
	customersService := customers.NewService(customers.NewRepository(dbpool))
	suppliersService := suppliers.NewService(suppliers.NewRepository(dbpool))
	refPort := masterdata.NewPort(productsService, storesService, customersService, suppliersService)
	salesRefPort := masterdata.NewSalesPort(refPort)

	var counters sequence.CounterStore
	if cfg.SequenceBackend == "redis" {
		counters = sequence.NewRedisCounterStore(redisClient)
	} else {
		counters = sequence.NewPostgresCounterStore(dbpool)
	}
	allocator := sequence.NewAllocator(counters, storesService)

	defaultScope := pricing.ScopeAllStores
	if cfg.DiscountDefaultScope == "no_stores" {
		defaultScope = pricing.ScopeNoStores
	}
	pricingRepo := pricing.NewRepository(dbpool)
	resolver := pricing.NewResolver(pricingRepo, defaultScope)

	queueClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	publisher := integration.NewPublisher(queueClient, logger)

	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	procurementService := procurement.NewService(
		procurement.NewRepository(dbpool), refPort, allocator,
		approvalRecorder, auditLogger, idempotencyStore, publisher, logger)
	salesService := sales.NewService(
		sales.NewRepository(dbpool), salesRefPort, resolver, allocator,
		auditLogger, publisher, logger)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		ProductsHandler:    products.NewHandler(logger, productsService),
		StoresHandler:      stores.NewHandler(logger, storesService),
		CustomersHandler:   customers.NewHandler(logger, customersService),
		SuppliersHandler:   suppliers.NewHandler(logger, suppliersService),
		PricingHandler:     pricing.NewHandler(logger, pricingRepo, resolver),
		ProcurementHandler: procurement.NewHandler(logger, procurementService),
		SalesHandler:       sales.NewHandler(logger, salesService),
		JobHandler:         jobs.NewHandler(inspector, logger),
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
