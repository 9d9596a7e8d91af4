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
	"golang.org/x/sync/errgroup"

	"github.com/meridian-fin/meridian/internal/aging"
	"github.com/meridian-fin/meridian/internal/app"
	"github.com/meridian-fin/meridian/internal/observability"
	"github.com/meridian-fin/meridian/internal/platform/cache"
	"github.com/meridian-fin/meridian/internal/platform/db"
	"github.com/meridian-fin/meridian/internal/payable"
	"github.com/meridian-fin/meridian/internal/payreq"
	"github.com/meridian-fin/meridian/internal/receivable"
	"github.com/meridian-fin/meridian/internal/shared"
	"github.com/meridian-fin/meridian/jobs"
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

	clock := shared.NewSystemClock()
	auditLogger := shared.NewAuditLogger(dbpool)
	approvalRecorder := shared.NewApprovalRecorder(dbpool, logger)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	payableRepo := payable.NewRepository(dbpool)
	ledger := payable.NewLedger(payableRepo, clock, logger, auditLogger)
	payableHandler := payable.NewHandler(logger, ledger)

	payreqRepo := payreq.NewRepository(dbpool)
	workflow := payreq.NewWorkflow(payreqRepo, ledger, clock, logger, approvalRecorder)
	payreqHandler := payreq.NewHandler(logger, workflow, idempotencyStore)

	receivableRepo := receivable.NewRepository(dbpool)
	registry := receivable.NewRegistry(receivableRepo, clock, logger, auditLogger)
	receivableHandler := receivable.NewHandler(logger, registry)

	agingService := aging.NewService(payableItems(ledger), registry.OutstandingByClient, clock)
	agingHandler := aging.NewHandler(logger, agingService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		PayableHandler:    payableHandler,
		PayReqHandler:     payreqHandler,
		ReceivableHandler: receivableHandler,
		AgingHandler:      agingHandler,
		JobHandler:        jobHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logger.Error("http server", slog.Any("error", err))
		os.Exit(1)
	}
}

// payableItems adapts the ledger's vendor outstanding view to the aging
// engine's item source.
func payableItems(ledger *payable.Ledger) aging.ItemSource {
	return func(ctx context.Context, vendorID int64) ([]aging.OutstandingItem, error) {
		items, err := ledger.OutstandingByVendor(ctx, vendorID)
		if err != nil {
			return nil, err
		}
		out := make([]aging.OutstandingItem, 0, len(items))
		for _, item := range items {
			out = append(out, aging.OutstandingItem{Amount: item.Amount, DueDate: item.DueDate})
		}
		return out, nil
	}
}
