package sales

import "context"

// ListFilters narrows invoice listings.
type ListFilters struct {
	Status     InvoiceStatus
	Type       InvoiceType
	CustomerID int64
	StoreID    string
	Limit      int
	Offset     int
}

// TxRepository exposes the write operations available inside one
// document transaction.
type TxRepository interface {
	CreateInvoice(ctx context.Context, inv SalesInvoice) (int64, error)
	InsertLine(ctx context.Context, line InvoiceLine) (int64, error)
	DeleteLines(ctx context.Context, invoiceID int64) error
	UpdateTotals(ctx context.Context, inv SalesInvoice) error
	UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error
	GetInvoiceForUpdate(ctx context.Context, id int64) (SalesInvoice, []InvoiceLine, error)
	UpdatePayment(ctx context.Context, id int64, amountPaid, balanceDue float64, status InvoiceStatus) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetInvoice(ctx context.Context, id int64) (SalesInvoice, []InvoiceLine, error)
	ListInvoices(ctx context.Context, filters ListFilters) ([]SalesInvoice, error)
}
