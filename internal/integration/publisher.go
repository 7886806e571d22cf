package integration

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atlas-retail/atlas-erp/internal/procurement"
	"github.com/atlas-retail/atlas-erp/internal/sales"
	"github.com/atlas-retail/atlas-erp/jobs"
)

// Enqueuer submits prepared tasks to the background queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Publisher forwards committed document events to the background queue.
// Document services call it after their transaction commits, so an enqueue
// failure is reported to the caller but never rolls back the document.
type Publisher struct {
	queue  Enqueuer
	logger *slog.Logger
}

// NewPublisher constructs the queue-backed event publisher.
func NewPublisher(queue Enqueuer, logger *slog.Logger) *Publisher {
	return &Publisher{queue: queue, logger: logger}
}

var _ procurement.EventPublisher = (*Publisher)(nil)
var _ sales.EventPublisher = (*Publisher)(nil)

// PublishGRNPosted enqueues the stock increase task for a posted receipt.
func (p *Publisher) PublishGRNPosted(ctx context.Context, evt procurement.GRNPostedEvent) error {
	if p == nil || p.queue == nil {
		return errors.New("integration: publisher not configured")
	}
	task, err := jobs.NewStockIncreaseTask(stockIncreasePayload(evt))
	if err != nil {
		return err
	}
	info, err := p.queue.Enqueue(ctx, task)
	if err != nil {
		return err
	}
	p.log().Info("grn posted event enqueued",
		slog.String("task_id", info.ID),
		slog.String("grn_number", evt.Number),
		slog.Int("lines", len(evt.Lines)),
	)
	return nil
}

// PublishBalanceChange enqueues the ledger movement for an invoice.
func (p *Publisher) PublishBalanceChange(ctx context.Context, evt sales.BalanceChangeEvent) error {
	if p == nil || p.queue == nil {
		return errors.New("integration: publisher not configured")
	}
	task, err := jobs.NewBalanceChangeTask(balanceChangePayload(evt))
	if err != nil {
		return err
	}
	info, err := p.queue.Enqueue(ctx, task)
	if err != nil {
		return err
	}
	p.log().Info("balance change event enqueued",
		slog.String("task_id", info.ID),
		slog.String("invoice_number", evt.InvoiceNumber),
		slog.Float64("delta", evt.Delta),
	)
	return nil
}

func (p *Publisher) log() *slog.Logger {
	if p.logger == nil {
		return slog.Default()
	}
	return p.logger
}
