package sequence

import (
	"context"
	"fmt"
	"time"
)

// CounterStore yields the next value of a (store, kind, period) counter.
// Implementations must be atomic: two concurrent calls for the same key
// never observe the same value.
type CounterStore interface {
	Next(ctx context.Context, storeID string, kind Kind, period string) (int64, error)
}

// PrefixSource resolves the store-registered numbering prefix for invoice
// kinds. It returns ErrPrefixNotConfigured when the store has no prefix
// for the requested kind.
type PrefixSource interface {
	InvoicePrefix(ctx context.Context, storeID string, kind Kind) (string, error)
}

// Allocator generates store-scoped document numbers. Procurement documents
// render as <KIND>-<STORE>-<YYMM><NNNN>; invoices render as
// <PREFIX><YYMM><NNNN> using the store's registered prefix.
type Allocator struct {
	counters CounterStore
	prefixes PrefixSource
}

// NewAllocator builds an Allocator.
func NewAllocator(counters CounterStore, prefixes PrefixSource) *Allocator {
	return &Allocator{counters: counters, prefixes: prefixes}
}

// Next allocates the next document number for the store and kind.
func (a *Allocator) Next(ctx context.Context, storeID string, kind Kind, asOf time.Time) (string, error) {
	if storeID == "" {
		return "", fmt.Errorf("sequence: store id required")
	}
	if asOf.IsZero() {
		asOf = time.Now()
	}
	period := Period(asOf)
	switch kind {
	case KindPurchaseOrder, KindGoodsReceipt:
		n, err := a.counters.Next(ctx, storeID, kind, period)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s-%s-%s%04d", kind, storeID, period, n), nil
	case KindInvoiceCash, KindInvoiceLayby, KindInvoiceField:
		prefix, err := a.prefixes.InvoicePrefix(ctx, storeID, kind)
		if err != nil {
			return "", err
		}
		n, err := a.counters.Next(ctx, storeID, kind, period)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s%s%04d", prefix, period, n), nil
	default:
		return "", ErrUnknownKind
	}
}
