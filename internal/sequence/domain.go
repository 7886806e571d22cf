package sequence

import (
	"errors"
	"time"
)

// Kind identifies a document numbering stream.
type Kind string

const (
	KindPurchaseOrder Kind = "PO"
	KindGoodsReceipt  Kind = "GRN"
	KindInvoiceCash   Kind = "INV_CASH"
	KindInvoiceLayby  Kind = "INV_LAYBY"
	KindInvoiceField  Kind = "INV_FIELD"
)

var (
	// ErrPrefixNotConfigured indicates the store has no numbering prefix
	// registered for the requested document kind.
	ErrPrefixNotConfigured = errors.New("sequence: store prefix not configured")
	// ErrUnknownKind indicates an unrecognised document kind.
	ErrUnknownKind = errors.New("sequence: unknown document kind")
)

// Period returns the monthly counter bucket for a date, rendered as YYMM.
// Counters reset when the period changes.
func Period(asOf time.Time) string {
	return asOf.Format("0601")
}
