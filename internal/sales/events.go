package sales

import (
	"context"
	"time"
)

// BalanceChangeEvent notifies the customer-ledger module that an invoice
// moved a customer's receivable balance. Delta is positive on issuance
// and negative on payment or reversal.
type BalanceChangeEvent struct {
	RefID         string    `json:"ref_id"`
	CustomerID    int64     `json:"customer_id"`
	InvoiceID     int64     `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Delta         float64   `json:"delta"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// EventPublisher hands balance changes to the ledger asynchronously
// after the local transaction commits.
type EventPublisher interface {
	PublishBalanceChange(ctx context.Context, evt BalanceChangeEvent) error
}
