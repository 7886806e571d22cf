package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/atlas-retail/atlas-erp/internal/jobs"
	"github.com/atlas-retail/atlas-erp/internal/shared"
)

// StockApplyJob consumes posted goods receipts: it records stock movements
// for the inventory module and refreshes last purchase prices on products.
type StockApplyJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	idem    *shared.IdempotencyStore
	clock   func() time.Time
}

// NewStockApplyJob initialises the stock apply handler.
func NewStockApplyJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockApplyJob {
	return &StockApplyJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		idem:    shared.NewIdempotencyStore(pool),
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the stock apply logic.
func (j *StockApplyJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("stock apply: handler not configured")
	}
	var payload StockIncreasePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskStockIncrease)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(
		slog.String("grn_number", payload.Number),
		slog.String("store_id", payload.StoreID),
		slog.Int("lines", len(payload.Lines)),
	)

	if err := j.idem.CheckAndInsert(ctx, payload.Number, "inventory"); err != nil {
		if errors.Is(err, shared.ErrIdempotencyConflict) {
			logger.Info("receipt already applied, skipping")
			return nil
		}
		resultErr = err
		return resultErr
	}

	for _, line := range payload.Lines {
		if err := j.applyLine(ctx, payload, line); err != nil {
			// Keep the idempotency key off so a retry re-processes the receipt.
			_ = j.idem.Delete(ctx, payload.Number)
			resultErr = err
			logger.Error("apply failed", slog.String("ref_id", line.RefID), slog.Any("error", err))
			return resultErr
		}
	}
	j.metrics().AddDelivered(TaskStockIncrease, len(payload.Lines))
	logger.Info("receipt applied")
	return nil
}

func (j *StockApplyJob) applyLine(ctx context.Context, payload StockIncreasePayload, line StockLinePayload) error {
	_, err := j.Pool.Exec(ctx, `
INSERT INTO stock_movements (ref_id, product_id, store_id, quantity, unit_cost, batch_number, expiry_date, source, occurred_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
ON CONFLICT (ref_id) DO NOTHING`,
		line.RefID, line.ProductID, line.StoreID, line.Quantity, line.UnitCost,
		line.BatchNumber, line.ExpiryDate, payload.Number, payload.PostedAt)
	if err != nil {
		return err
	}
	_, err = j.Pool.Exec(ctx,
		`UPDATE products SET last_purchase_price = $1, updated_at = $2 WHERE id = $3`,
		line.UnitCost, j.now(), line.ProductID)
	return err
}

func (j *StockApplyJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}

func (j *StockApplyJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func (j *StockApplyJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
