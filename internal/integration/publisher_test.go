package integration

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/atlas-retail/atlas-erp/internal/procurement"
	"github.com/atlas-retail/atlas-erp/internal/sales"
	"github.com/atlas-retail/atlas-erp/jobs"
)

type fakeQueue struct {
	tasks []*asynq.Task
	fail  error
}

func (q *fakeQueue) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.fail != nil {
		return nil, q.fail
	}
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{ID: "task-1", Queue: jobs.QueueDefault}, nil
}

func TestPublishGRNPostedEnqueuesStockIncrease(t *testing.T) {
	queue := &fakeQueue{}
	pub := NewPublisher(queue, nil)

	posted := time.Date(2024, 5, 14, 10, 0, 0, 0, time.UTC)
	expiry := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	err := pub.PublishGRNPosted(context.Background(), procurement.GRNPostedEvent{
		GRNID:      9,
		Number:     "GRN-SH01-24050003",
		StoreID:    "SH01",
		SupplierID: 7,
		PostedAt:   posted,
		Lines: []procurement.StockIncreaseEvent{
			{RefID: "ref-a", ProductID: 1, StoreID: "SH01", Quantity: 8, UnitCost: 25.5},
			{RefID: "ref-b", ProductID: 3, StoreID: "SH01", Quantity: 2, UnitCost: 100, BatchNumber: "B-77", ExpiryDate: &expiry},
		},
	})
	require.NoError(t, err)
	require.Len(t, queue.tasks, 1)
	require.Equal(t, jobs.TaskStockIncrease, queue.tasks[0].Type())

	var payload jobs.StockIncreasePayload
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	require.Equal(t, "GRN-SH01-24050003", payload.Number)
	require.Equal(t, int64(7), payload.SupplierID)
	require.Len(t, payload.Lines, 2)
	require.Equal(t, "ref-b", payload.Lines[1].RefID)
	require.Equal(t, "B-77", payload.Lines[1].BatchNumber)
	require.NotNil(t, payload.Lines[1].ExpiryDate)
	require.True(t, expiry.Equal(*payload.Lines[1].ExpiryDate))
}

func TestPublishBalanceChangeEnqueuesLedgerTask(t *testing.T) {
	queue := &fakeQueue{}
	pub := NewPublisher(queue, nil)

	occurred := time.Date(2024, 5, 14, 12, 30, 0, 0, time.UTC)
	err := pub.PublishBalanceChange(context.Background(), sales.BalanceChangeEvent{
		RefID:         "ref-c",
		CustomerID:    5,
		InvoiceID:     42,
		InvoiceNumber: "CAS24050001",
		Delta:         310.5,
		OccurredAt:    occurred,
	})
	require.NoError(t, err)
	require.Len(t, queue.tasks, 1)
	require.Equal(t, jobs.TaskBalanceChange, queue.tasks[0].Type())

	var payload jobs.BalanceChangePayload
	require.NoError(t, json.Unmarshal(queue.tasks[0].Payload(), &payload))
	require.Equal(t, "CAS24050001", payload.InvoiceNumber)
	require.Equal(t, 310.5, payload.Delta)
	require.True(t, occurred.Equal(payload.OccurredAt))
}

func TestPublishReportsEnqueueFailure(t *testing.T) {
	queue := &fakeQueue{fail: errors.New("redis down")}
	pub := NewPublisher(queue, nil)

	err := pub.PublishBalanceChange(context.Background(), sales.BalanceChangeEvent{
		RefID: "ref-d", CustomerID: 5, InvoiceID: 1, InvoiceNumber: "CAS24050002", Delta: -10,
	})
	require.Error(t, err)
	require.Empty(t, queue.tasks)
}
