package procurement

import (
	"context"
	"time"
)

// ListFilters narrows purchase order listings.
type ListFilters struct {
	Status     POStatus
	SupplierID int64
	StoreID    string
	Limit      int
	Offset     int
}

// TxRepository exposes the write operations available inside one
// document transaction.
type TxRepository interface {
	CreatePO(ctx context.Context, po PurchaseOrder) (int64, error)
	InsertPOLine(ctx context.Context, line POLine) (int64, error)
	DeletePOLines(ctx context.Context, poID int64) error
	UpdatePOStatus(ctx context.Context, id int64, status POStatus) error
	SetPOApproval(ctx context.Context, id int64, approvedBy int64, at time.Time) error
	UpdatePOTotals(ctx context.Context, po PurchaseOrder) error
	GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
	IncrementPOLineReceived(ctx context.Context, lineID int64, delta float64, fromVersion int64) error
	CreateGRN(ctx context.Context, grn GoodsReceipt) (int64, error)
	InsertGRNLine(ctx context.Context, line GRNLine) (int64, error)
	UpdateGRNStatus(ctx context.Context, id int64, status GRNStatus) error
}

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error)
	GetGRN(ctx context.Context, id int64) (GoodsReceipt, []GRNLine, error)
	ListPOs(ctx context.Context, filters ListFilters) ([]PurchaseOrder, error)
	ListGRNs(ctx context.Context, poID int64) ([]GoodsReceipt, error)
}
