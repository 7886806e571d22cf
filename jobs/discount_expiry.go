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
)

// DiscountExpiryJob deactivates discount rules whose end date has passed.
// It runs nightly so resolvers stop matching stale rules even if nobody
// edits them by hand.
type DiscountExpiryJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewDiscountExpiryJob initialises the discount expiry handler.
func NewDiscountExpiryJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *DiscountExpiryJob {
	return &DiscountExpiryJob{
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle executes the expiry sweep.
func (j *DiscountExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("discount expiry: handler not configured")
	}
	var payload DiscountExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskDiscountExpiry)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.now()
	tag, err := j.Pool.Exec(ctx, `
UPDATE discounts SET active = FALSE, updated_at = $1
WHERE active AND ends_at IS NOT NULL AND ends_at < $1`, now)
	if err != nil {
		resultErr = err
		return resultErr
	}
	j.logger().Info("discount expiry sweep",
		slog.Int64("deactivated", tag.RowsAffected()),
		slog.Time("as_of", now),
	)
	return nil
}

func (j *DiscountExpiryJob) now() time.Time {
	if j.clock == nil {
		return time.Now().UTC()
	}
	return j.clock()
}

func (j *DiscountExpiryJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

func (j *DiscountExpiryJob) metrics() *jobmetrics.Metrics {
	return j.Metrics
}
