package procurement

import (
	"errors"
	"time"
)

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft             POStatus = "DRAFT"
	POStatusPendingApproval   POStatus = "PENDING_APPROVAL"
	POStatusApproved          POStatus = "APPROVED"
	POStatusSentToSupplier    POStatus = "SENT_TO_SUPPLIER"
	POStatusPartiallyReceived POStatus = "PARTIALLY_RECEIVED"
	POStatusFullyReceived     POStatus = "FULLY_RECEIVED"
	POStatusCancelled         POStatus = "CANCELLED"
	POStatusClosed            POStatus = "CLOSED"
)

// Goods receipt note lifecycle statuses.
type GRNStatus string

const (
	GRNStatusDraft     GRNStatus = "DRAFT"
	GRNStatusPosted    GRNStatus = "POSTED_TO_INVENTORY"
	GRNStatusCancelled GRNStatus = "CANCELLED"
)

// PurchaseOrder is a commitment to buy goods from a supplier, scoped to
// one store. Header totals are recomputed from lines while in draft.
type PurchaseOrder struct {
	ID                   int64
	Number               string
	SupplierID           int64
	StoreID              string
	Status               POStatus
	OrderDate            time.Time
	ExpectedDeliveryDate *time.Time
	ShippingAddress      string
	BillingAddress       string
	Notes                string
	CreatedBy            int64
	ApprovedBy           int64
	ApprovalDate         *time.Time
	Subtotal             float64
	TaxAmount            float64
	ShippingCost         float64
	OtherCharges         float64
	TotalAmount          float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// POLine is one ordered item. QuantityReceived accumulates across GRN
// postings; Version backs the optimistic-concurrency check on it.
type POLine struct {
	ID                   int64
	POID                 int64
	ProductID            int64
	Description          string
	QuantityOrdered      float64
	UnitOfMeasure        string
	UnitPrice            float64
	LineTotal            float64
	QuantityReceived     float64
	ExpectedDeliveryDate *time.Time
	Notes                string
	Version              int64
}

// GoodsReceipt records physical receipt of goods at a store, optionally
// against a purchase order.
type GoodsReceipt struct {
	ID                int64
	Number            string
	POID              *int64
	SupplierID        int64
	StoreID           string
	Status            GRNStatus
	ReceiptDate       time.Time
	SupplierInvoiceNo string
	ReceivedBy        int64
	Notes             string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// GRNLine is one received item with its accept/reject split. The
// invariant accepted + rejected <= received holds for every line.
type GRNLine struct {
	ID               int64
	GRNID            int64
	ProductID        int64
	POLineID         *int64
	QuantityReceived float64
	QuantityAccepted float64
	QuantityRejected float64
	UnitCost         float64
	BatchNumber      string
	ExpiryDate       *time.Time
	Notes            string
}

var (
	// ErrValidation indicates malformed input rejected before any state change.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("procurement: not found")
	// ErrInvalidAcceptRejectSplit indicates accepted + rejected exceeds received.
	ErrInvalidAcceptRejectSplit = errors.New("procurement: accepted plus rejected exceeds received quantity")
	// ErrNotApprovable indicates the approval guard failed: an order needs
	// at least one line and a positive total before it can be approved.
	ErrNotApprovable = errors.New("procurement: purchase order needs lines and a positive total")
	// ErrBatchRequired indicates the product mandates a batch number.
	ErrBatchRequired = errors.New("procurement: batch number required for product")
	// ErrExpiryRequired indicates the product mandates an expiry date.
	ErrExpiryRequired = errors.New("procurement: expiry date required for product")
	// ErrLinesImmutable indicates line edits outside draft status.
	ErrLinesImmutable = errors.New("procurement: lines are immutable once the order leaves draft")
)
