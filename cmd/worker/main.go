package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-retail/atlas-erp/internal/app"
	jobmetrics "github.com/atlas-retail/atlas-erp/internal/jobs"
	"github.com/atlas-retail/atlas-erp/internal/platform/db"
	"github.com/atlas-retail/atlas-erp/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)

	stockJob := jobs.NewStockApplyJob(pool, logger, metrics)
	balanceJob := jobs.NewBalanceChangeJob(pool, logger, metrics)
	expiryJob := jobs.NewDiscountExpiryJob(pool, logger, metrics)

	expiryTask, err := jobs.NewDiscountExpiryTask(time.Now().UTC())
	if err != nil {
		logger.Error("build discount expiry task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskStockIncrease, Handler: stockJob.Handle},
			{Type: jobs.TaskBalanceChange, Handler: balanceJob.Handle},
			{Type: jobs.TaskDiscountExpiry, Handler: expiryJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 0 * * *", Task: expiryTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
