package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/atlas-retail/atlas-erp/internal/jobs"
)

// BalanceChangeJob appends invoice balance movements to the customer ledger.
// Entries are keyed by ref id so redelivery never double-posts.
type BalanceChangeJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBalanceChangeJob initialises the balance change handler.
func NewBalanceChangeJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *BalanceChangeJob {
	return &BalanceChangeJob{Pool: pool, Logger: logger, Metrics: metrics}
}

// Handle executes the ledger append.
func (j *BalanceChangeJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("balance change: handler not configured")
	}
	var payload BalanceChangePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RefID == "" {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBalanceChange)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	tag, err := j.Pool.Exec(ctx, `
INSERT INTO customer_ledger_entries (ref_id, customer_id, invoice_id, invoice_number, delta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (ref_id) DO NOTHING`,
		payload.RefID, payload.CustomerID, payload.InvoiceID, payload.InvoiceNumber,
		payload.Delta, payload.OccurredAt)
	if err != nil {
		resultErr = err
		return resultErr
	}
	logger := j.logger().With(
		slog.String("invoice_number", payload.InvoiceNumber),
		slog.Int64("customer_id", payload.CustomerID),
		slog.Float64("delta", payload.Delta),
	)
	if tag.RowsAffected() == 0 {
		logger.Info("balance change already posted, skipping")
		return nil
	}
	j.metrics().AddDelivered(TaskBalanceChange, 1)
	logger.Info("balance change posted")
	return nil
}

func (j *BalanceChangeJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func (j *BalanceChangeJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
