package procurement

import (
	"context"
	"time"
)

// StockIncreaseEvent is emitted per posted GRN line and consumed by the
// external inventory module. The engine does not own stock quantities.
type StockIncreaseEvent struct {
	RefID       string     `json:"ref_id"`
	ProductID   int64      `json:"product_id"`
	StoreID     string     `json:"store_id"`
	Quantity    float64    `json:"quantity"`
	UnitCost    float64    `json:"unit_cost"`
	BatchNumber string     `json:"batch_number,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
}

// GRNPostedEvent captures a posted goods receipt for downstream modules.
type GRNPostedEvent struct {
	GRNID      int64                `json:"grn_id"`
	Number     string               `json:"number"`
	StoreID    string               `json:"store_id"`
	SupplierID int64                `json:"supplier_id"`
	PostedAt   time.Time            `json:"posted_at"`
	Lines      []StockIncreaseEvent `json:"lines"`
}

// EventPublisher delivers procurement events after the local transaction
// commits. A failing downstream must not roll back a committed document,
// so publishing is best-effort and compensations run out of band.
type EventPublisher interface {
	PublishGRNPosted(ctx context.Context, evt GRNPostedEvent) error
}
