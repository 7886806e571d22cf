package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockIncrease delivers posted goods-receipt lines to the inventory module.
	TaskStockIncrease = "inventory:stock_increase"
	// TaskBalanceChange delivers invoice balance movements to the customer ledger.
	TaskBalanceChange = "ledger:balance_change"
	// TaskDiscountExpiry deactivates discount rules whose validity window has passed.
	TaskDiscountExpiry = "pricing:discount_expiry"
)

// StockLinePayload is one received line inside a stock increase task.
type StockLinePayload struct {
	RefID       string     `json:"ref_id"`
	ProductID   int64      `json:"product_id"`
	StoreID     string     `json:"store_id"`
	Quantity    float64    `json:"quantity"`
	UnitCost    float64    `json:"unit_cost"`
	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// StockIncreasePayload carries a posted goods receipt.
type StockIncreasePayload struct {
	GRNID      int64              `json:"grn_id"`
	Number     string             `json:"number"`
	StoreID    string             `json:"store_id"`
	SupplierID int64              `json:"supplier_id"`
	PostedAt   time.Time          `json:"posted_at"`
	Lines      []StockLinePayload `json:"lines"`
}

// NewStockIncreaseTask constructs an Asynq task for a posted receipt.
func NewStockIncreaseTask(payload StockIncreasePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockIncrease, body, asynq.Queue(QueueDefault)), nil
}

// BalanceChangePayload carries a customer receivable movement.
type BalanceChangePayload struct {
	RefID         string    `json:"ref_id"`
	CustomerID    int64     `json:"customer_id"`
	InvoiceID     int64     `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Delta         float64   `json:"delta"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewBalanceChangeTask constructs an Asynq task for a balance movement.
func NewBalanceChangeTask(payload BalanceChangePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBalanceChange, body, asynq.Queue(QueueDefault)), nil
}

// DiscountExpiryPayload carries scheduling metadata.
type DiscountExpiryPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewDiscountExpiryTask constructs the nightly discount expiry task.
func NewDiscountExpiryTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(DiscountExpiryPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDiscountExpiry, body, asynq.Queue(QueueDefault)), nil
}
