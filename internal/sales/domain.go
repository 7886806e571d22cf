package sales

import (
	"errors"
	"fmt"
	"time"
)

// Invoice channel types. The type picks the product price tier and the
// store numbering prefix used for the document number.
type InvoiceType string

const (
	TypeCash  InvoiceType = "CASH"
	TypeLayby InvoiceType = "LAYBY"
	TypeField InvoiceType = "FIELD"
)

// Sales invoice lifecycle statuses.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "DRAFT"
	StatusIssued        InvoiceStatus = "ISSUED"
	StatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	StatusPaid          InvoiceStatus = "PAID"
	StatusVoid          InvoiceStatus = "VOID"
	StatusCancelled     InvoiceStatus = "CANCELLED"
)

// SalesInvoice is the header of one customer sale. The money cascade
// (subtotal through balance due) is derived from lines and recomputed on
// every line mutation while in draft.
type SalesInvoice struct {
	ID                         int64
	Number                     string
	CustomerID                 int64
	StoreID                    string
	Type                       InvoiceType
	Status                     InvoiceStatus
	InvoiceDate                time.Time
	DueDate                    *time.Time
	SalespersonID              int64
	Notes                      string
	CouponCode                 string
	CreatedBy                  int64
	Subtotal                   float64
	TotalProductDiscountAmount float64
	InvoiceDiscountAmount      float64
	TaxableAmount              float64
	OverallTaxRate             float64
	TaxAmount                  float64
	ShippingCharges            float64
	OtherCharges               float64
	GrandTotal                 float64
	AmountPaid                 float64
	BalanceDue                 float64
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

// InvoiceLine is one sold item. Both pre- and post-discount unit prices
// are stored, along with the cost price at time of sale for margin
// reporting. Lines are immutable once the header leaves draft.
type InvoiceLine struct {
	ID                      int64
	InvoiceID               int64
	ProductID               int64
	Description             string
	UnitOfMeasure           string
	Quantity                float64
	UnitPriceBeforeDiscount float64
	UnitPriceAfterDiscount  float64
	DiscountID              *int64
	LineSubtotal            float64
	LineTaxRate             float64
	LineTaxAmount           float64
	LineTotal               float64
	CostPriceAtSale         float64
}

var (
	// ErrValidation indicates malformed input rejected before any state change.
	ErrValidation = errors.New("sales: invalid input")
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("sales: not found")
	// ErrLinesImmutable indicates line edits outside draft status.
	ErrLinesImmutable = errors.New("sales: lines are immutable once the invoice leaves draft")
	// ErrMixedTaxModes indicates line-level tax rates combined with an
	// overall header rate on the same document.
	ErrMixedTaxModes = errors.New("sales: line-level and overall tax rates must not be mixed")
	// ErrUnknownInvoiceType indicates a type outside cash/layby/field.
	ErrUnknownInvoiceType = errors.New("sales: unknown invoice type")
)

// OverpaymentError reports amountPaid exceeding grandTotal. The balance
// due never goes negative; the operation is rejected instead.
type OverpaymentError struct {
	GrandTotal float64
	AmountPaid float64
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("sales: amount paid %.2f exceeds grand total %.2f", e.AmountPaid, e.GrandTotal)
}
