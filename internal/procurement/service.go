package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-retail/atlas-erp/internal/sequence"
	"github.com/atlas-retail/atlas-erp/internal/shared"
)

// ProductRef is the read-only product projection the engine needs.
type ProductRef struct {
	ID                  int64
	SKU                 string
	Name                string
	UnitOfMeasure       string
	StandardCost        float64
	RequiresBatchNumber bool
	RequiresExpiryDate  bool
}

// MasterDataPort resolves reference data. Every method fails with
// shared.ErrReferenceNotFound when the ID does not resolve.
type MasterDataPort interface {
	Product(ctx context.Context, id int64) (ProductRef, error)
	StoreExists(ctx context.Context, storeID string) error
	SupplierExists(ctx context.Context, supplierID int64) error
}

// NumberAllocator hands out store-scoped document numbers.
type NumberAllocator interface {
	Next(ctx context.Context, storeID string, kind sequence.Kind, asOf time.Time) (string, error)
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort keeps the approval trail for purchase orders.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
	List(ctx context.Context, module shared.ApprovalModule, ref uuid.UUID) ([]shared.ApprovalLog, error)
	EnsureSubmit(ctx context.Context, module shared.ApprovalModule, ref uuid.UUID, actorID int64, note string) error
}

// Service orchestrates purchase order and goods receipt flows.
type Service struct {
	repo        RepositoryPort
	masterdata  MasterDataPort
	numbers     NumberAllocator
	approvals   ApprovalPort
	audit       AuditPort
	idempotency *shared.IdempotencyStore
	events      EventPublisher
	logger      *slog.Logger
}

// NewService constructs the procurement service.
func NewService(repo RepositoryPort, masterdata MasterDataPort, numbers NumberAllocator, approvals ApprovalPort, audit AuditPort, idem *shared.IdempotencyStore, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, masterdata: masterdata, numbers: numbers, approvals: approvals, audit: audit, idempotency: idem, events: events, logger: logger}
}

// POLineInput describes one ordered line.
type POLineInput struct {
	ProductID            int64
	QuantityOrdered      float64
	UnitPrice            float64
	Description          string
	UnitOfMeasure        string
	ExpectedDeliveryDate *time.Time
	Notes                string
}

// CreatePOInput describes a purchase order creation payload.
type CreatePOInput struct {
	SupplierID           int64
	StoreID              string
	OrderDate            time.Time
	ExpectedDeliveryDate *time.Time
	ShippingAddress      string
	BillingAddress       string
	Notes                string
	CreatedBy            int64
	TaxAmount            float64
	ShippingCost         float64
	OtherCharges         float64
	Lines                []POLineInput
}

// GRNLineInput describes one received line.
type GRNLineInput struct {
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

// CreateGRNInput describes a goods receipt creation payload.
type CreateGRNInput struct {
	POID              *int64
	SupplierID        int64
	StoreID           string
	ReceiptDate       time.Time
	SupplierInvoiceNo string
	ReceivedBy        int64
	Notes             string
	Lines             []GRNLineInput
}

// CreatePurchaseOrder prices the lines, allocates a store-scoped number
// and persists header and lines in one transaction.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input CreatePOInput) (PurchaseOrder, error) {
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	if input.TaxAmount < 0 || input.ShippingCost < 0 || input.OtherCharges < 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: charges must not be negative", ErrValidation)
	}
	if err := s.masterdata.StoreExists(ctx, input.StoreID); err != nil {
		return PurchaseOrder{}, err
	}
	if err := s.masterdata.SupplierExists(ctx, input.SupplierID); err != nil {
		return PurchaseOrder{}, err
	}

	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now()
	}

	lines := make([]POLine, 0, len(input.Lines))
	for _, in := range input.Lines {
		if in.QuantityOrdered <= 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: ordered quantity must be positive", ErrValidation)
		}
		if in.UnitPrice < 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: unit price must not be negative", ErrValidation)
		}
		product, err := s.masterdata.Product(ctx, in.ProductID)
		if err != nil {
			return PurchaseOrder{}, err
		}
		description := in.Description
		if description == "" {
			description = product.Name
		}
		uom := in.UnitOfMeasure
		if uom == "" {
			uom = product.UnitOfMeasure
		}
		lines = append(lines, priceLine(POLine{
			ProductID:            in.ProductID,
			Description:          description,
			QuantityOrdered:      in.QuantityOrdered,
			UnitOfMeasure:        uom,
			UnitPrice:            in.UnitPrice,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate,
			Notes:                in.Notes,
		}))
	}

	number, err := s.numbers.Next(ctx, input.StoreID, sequence.KindPurchaseOrder, orderDate)
	if err != nil {
		return PurchaseOrder{}, err
	}

	po := RecomputePOTotals(PurchaseOrder{
		Number:               number,
		SupplierID:           input.SupplierID,
		StoreID:              input.StoreID,
		Status:               POStatusDraft,
		OrderDate:            orderDate,
		ExpectedDeliveryDate: input.ExpectedDeliveryDate,
		ShippingAddress:      input.ShippingAddress,
		BillingAddress:       input.BillingAddress,
		Notes:                input.Notes,
		CreatedBy:            input.CreatedBy,
		TaxAmount:            input.TaxAmount,
		ShippingCost:         input.ShippingCost,
		OtherCharges:         input.OtherCharges,
	}, lines)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		poID, err := tx.CreatePO(ctx, po)
		if err != nil {
			return err
		}
		po.ID = poID
		for _, line := range lines {
			line.POID = poID
			if _, err := tx.InsertPOLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, "PO_CREATE", po.ID, map[string]any{"number": po.Number, "total": po.TotalAmount})
	return po, nil
}

// UpdatePurchaseOrderLines replaces the line set of a draft order and
// recomputes header totals. Lines are immutable past draft.
func (s *Service) UpdatePurchaseOrderLines(ctx context.Context, poID int64, inputs []POLineInput) (PurchaseOrder, error) {
	if len(inputs) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	po, _, err := s.repo.GetPO(ctx, poID)
	if err != nil {
		return PurchaseOrder{}, err
	}
	if po.Status != POStatusDraft {
		return PurchaseOrder{}, ErrLinesImmutable
	}

	lines := make([]POLine, 0, len(inputs))
	for _, in := range inputs {
		if in.QuantityOrdered <= 0 || in.UnitPrice < 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: invalid line quantity or price", ErrValidation)
		}
		product, err := s.masterdata.Product(ctx, in.ProductID)
		if err != nil {
			return PurchaseOrder{}, err
		}
		description := in.Description
		if description == "" {
			description = product.Name
		}
		lines = append(lines, priceLine(POLine{
			POID:                 poID,
			ProductID:            in.ProductID,
			Description:          description,
			QuantityOrdered:      in.QuantityOrdered,
			UnitOfMeasure:        in.UnitOfMeasure,
			UnitPrice:            in.UnitPrice,
			ExpectedDeliveryDate: in.ExpectedDeliveryDate,
			Notes:                in.Notes,
		}))
	}
	po = RecomputePOTotals(po, lines)

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeletePOLines(ctx, poID); err != nil {
			return err
		}
		for _, line := range lines {
			if _, err := tx.InsertPOLine(ctx, line); err != nil {
				return err
			}
		}
		return tx.UpdatePOTotals(ctx, po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return po, nil
}

// SubmitPurchaseOrder moves a draft order to pending approval.
func (s *Service) SubmitPurchaseOrder(ctx context.Context, poID int64, actorID int64) error {
	po, _, err := s.repo.GetPO(ctx, poID)
	if err != nil {
		return err
	}
	if err := ValidatePOTransition(po.Status, POStatusPendingApproval); err != nil {
		return err
	}
	refID := shared.DocRef(shared.ModulePurchaseOrder, poID)
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdatePOStatus(ctx, poID, POStatusPendingApproval); err != nil {
			return err
		}
		if s.approvals != nil {
			_ = s.approvals.EnsureSubmit(ctx, shared.ModulePurchaseOrder, refID, actorID, fmt.Sprintf("PO %s submitted", po.Number))
		}
		return nil
	})
}

// ApprovePurchaseOrder approves a pending order. The guard requires a
// non-empty line set and a positive total amount.
func (s *Service) ApprovePurchaseOrder(ctx context.Context, poID int64, actorID int64) error {
	po, lines, err := s.repo.GetPO(ctx, poID)
	if err != nil {
		return err
	}
	if err := ValidatePOTransition(po.Status, POStatusApproved); err != nil {
		return err
	}
	if len(lines) == 0 || po.TotalAmount <= 0 {
		return ErrNotApprovable
	}
	now := time.Now()
	refID := shared.DocRef(shared.ModulePurchaseOrder, poID)
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdatePOStatus(ctx, poID, POStatusApproved); err != nil {
			return err
		}
		if err := tx.SetPOApproval(ctx, poID, actorID, now); err != nil {
			return err
		}
		if s.approvals != nil {
			_ = s.approvals.Record(ctx, shared.ApprovalLog{Module: shared.ModulePurchaseOrder, RefID: refID, ActorID: actorID, Action: shared.ApprovalApprove, Note: fmt.Sprintf("PO %s approved", po.Number)})
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "PO_APPROVE", poID, map[string]any{"number": po.Number})
	return nil
}

// ApprovalHistory returns the approval trail of a purchase order,
// oldest entry first.
func (s *Service) ApprovalHistory(ctx context.Context, poID int64) ([]shared.ApprovalLog, error) {
	if _, _, err := s.repo.GetPO(ctx, poID); err != nil {
		return nil, err
	}
	if s.approvals == nil {
		return nil, nil
	}
	return s.approvals.List(ctx, shared.ModulePurchaseOrder, shared.DocRef(shared.ModulePurchaseOrder, poID))
}

// SendPurchaseOrder marks an approved order as sent to the supplier.
func (s *Service) SendPurchaseOrder(ctx context.Context, poID int64) error {
	return s.transitionPO(ctx, poID, POStatusSentToSupplier, "PO_SEND")
}

// CancelPurchaseOrder cancels an order from any pre-received state.
func (s *Service) CancelPurchaseOrder(ctx context.Context, poID int64) error {
	return s.transitionPO(ctx, poID, POStatusCancelled, "PO_CANCEL")
}

// ClosePurchaseOrder closes a received order.
func (s *Service) ClosePurchaseOrder(ctx context.Context, poID int64) error {
	return s.transitionPO(ctx, poID, POStatusClosed, "PO_CLOSE")
}

func (s *Service) transitionPO(ctx context.Context, poID int64, target POStatus, auditAction string) error {
	po, _, err := s.repo.GetPO(ctx, poID)
	if err != nil {
		return err
	}
	if err := ValidatePOTransition(po.Status, target); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdatePOStatus(ctx, poID, target)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, auditAction, poID, map[string]any{"number": po.Number, "status": string(target)})
	return nil
}

// receivablePOStatus reports whether goods may be booked against the order.
func receivablePOStatus(status POStatus) bool {
	switch status {
	case POStatusSentToSupplier, POStatusPartiallyReceived, POStatusFullyReceived:
		return true
	}
	return false
}

// CreateGoodsReceipt persists a draft GRN. Batch and expiry values are
// enforced per product flags before anything is written.
func (s *Service) CreateGoodsReceipt(ctx context.Context, input CreateGRNInput) (GoodsReceipt, error) {
	if len(input.Lines) == 0 {
		return GoodsReceipt{}, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	if err := s.masterdata.StoreExists(ctx, input.StoreID); err != nil {
		return GoodsReceipt{}, err
	}

	if input.POID != nil {
		po, _, err := s.repo.GetPO(ctx, *input.POID)
		if err != nil {
			return GoodsReceipt{}, err
		}
		if !receivablePOStatus(po.Status) {
			return GoodsReceipt{}, &shared.InvalidTransitionError{Document: "purchase_order", From: string(po.Status), To: "receiving"}
		}
		if input.SupplierID == 0 {
			input.SupplierID = po.SupplierID
		}
	}
	if input.SupplierID != 0 {
		if err := s.masterdata.SupplierExists(ctx, input.SupplierID); err != nil {
			return GoodsReceipt{}, err
		}
	}

	lines := make([]GRNLine, 0, len(input.Lines))
	for _, in := range input.Lines {
		if in.QuantityReceived <= 0 || in.QuantityAccepted < 0 || in.QuantityRejected < 0 {
			return GoodsReceipt{}, fmt.Errorf("%w: invalid received quantities", ErrValidation)
		}
		if in.QuantityAccepted+in.QuantityRejected > in.QuantityReceived+qtyEpsilon {
			return GoodsReceipt{}, ErrInvalidAcceptRejectSplit
		}
		product, err := s.masterdata.Product(ctx, in.ProductID)
		if err != nil {
			return GoodsReceipt{}, err
		}
		if product.RequiresBatchNumber && in.BatchNumber == "" {
			return GoodsReceipt{}, fmt.Errorf("%w (%s)", ErrBatchRequired, product.SKU)
		}
		if product.RequiresExpiryDate && in.ExpiryDate == nil {
			return GoodsReceipt{}, fmt.Errorf("%w (%s)", ErrExpiryRequired, product.SKU)
		}
		lines = append(lines, GRNLine{
			ProductID:        in.ProductID,
			POLineID:         in.POLineID,
			QuantityReceived: in.QuantityReceived,
			QuantityAccepted: in.QuantityAccepted,
			QuantityRejected: in.QuantityRejected,
			UnitCost:         in.UnitCost,
			BatchNumber:      in.BatchNumber,
			ExpiryDate:       in.ExpiryDate,
			Notes:            in.Notes,
		})
	}

	receiptDate := input.ReceiptDate
	if receiptDate.IsZero() {
		receiptDate = time.Now()
	}
	number, err := s.numbers.Next(ctx, input.StoreID, sequence.KindGoodsReceipt, receiptDate)
	if err != nil {
		return GoodsReceipt{}, err
	}

	grn := GoodsReceipt{
		Number:            number,
		POID:              input.POID,
		SupplierID:        input.SupplierID,
		StoreID:           input.StoreID,
		Status:            GRNStatusDraft,
		ReceiptDate:       receiptDate,
		SupplierInvoiceNo: input.SupplierInvoiceNo,
		ReceivedBy:        input.ReceivedBy,
		Notes:             input.Notes,
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		grnID, err := tx.CreateGRN(ctx, grn)
		if err != nil {
			return err
		}
		grn.ID = grnID
		for _, line := range lines {
			line.GRNID = grnID
			if _, err := tx.InsertGRNLine(ctx, line); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return GoodsReceipt{}, err
	}
	s.recordAudit(ctx, "GRN_CREATE", grn.ID, map[string]any{"number": grn.Number})
	return grn, nil
}

// PostGoodsReceipt reconciles the receipt against its purchase order and
// posts it to inventory. All reads and writes run inside one transaction
// so concurrent postings against the same PO serialise; stock events are
// published only after commit.
func (s *Service) PostGoodsReceipt(ctx context.Context, grnID int64) (ReconciliationResult, error) {
	grn, grnLines, err := s.repo.GetGRN(ctx, grnID)
	if err != nil {
		return ReconciliationResult{}, err
	}
	if err := ValidateGRNTransition(grn.Status, GRNStatusPosted); err != nil {
		return ReconciliationResult{}, err
	}

	key := fmt.Sprintf("GRN:%s", grn.Number)
	inserted := false
	if s.idempotency != nil {
		if err := s.idempotency.CheckAndInsert(ctx, key, "procurement.grn"); err != nil {
			return ReconciliationResult{}, err
		}
		inserted = true
	}

	var result ReconciliationResult
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if grn.POID != nil {
			po, poLines, err := tx.GetPOForUpdate(ctx, *grn.POID)
			if err != nil {
				return err
			}
			result, err = ApplyReceipt(&po, poLines, grnLines)
			if err != nil {
				return err
			}
			for _, delta := range result.Deltas {
				if err := tx.IncrementPOLineReceived(ctx, delta.POLineID, delta.Delta, delta.FromVersion); err != nil {
					return err
				}
			}
			if result.POStatusChanged {
				if err := ValidatePOTransition(po.Status, result.POStatus); err != nil {
					return err
				}
				if err := tx.UpdatePOStatus(ctx, po.ID, result.POStatus); err != nil {
					return err
				}
			}
		} else {
			var err error
			result, err = ApplyReceipt(nil, nil, grnLines)
			if err != nil {
				return err
			}
		}
		return tx.UpdateGRNStatus(ctx, grnID, GRNStatusPosted)
	})
	if err != nil {
		if inserted {
			_ = s.idempotency.Delete(ctx, key)
		}
		return ReconciliationResult{}, err
	}

	s.publishGRNPosted(ctx, grn, grnLines)
	s.recordAudit(ctx, "GRN_POST", grnID, map[string]any{"number": grn.Number, "over_receipt": result.OverReceipt})
	return result, nil
}

// CancelGoodsReceipt cancels a draft GRN. Posted receipts are immutable.
func (s *Service) CancelGoodsReceipt(ctx context.Context, grnID int64) error {
	grn, _, err := s.repo.GetGRN(ctx, grnID)
	if err != nil {
		return err
	}
	if err := ValidateGRNTransition(grn.Status, GRNStatusCancelled); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateGRNStatus(ctx, grnID, GRNStatusCancelled)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, "GRN_CANCEL", grnID, map[string]any{"number": grn.Number})
	return nil
}

// GetPurchaseOrder loads an order with its lines.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	return s.repo.GetPO(ctx, id)
}

// GetGoodsReceipt loads a receipt with its lines.
func (s *Service) GetGoodsReceipt(ctx context.Context, id int64) (GoodsReceipt, []GRNLine, error) {
	return s.repo.GetGRN(ctx, id)
}

// ListPurchaseOrders lists orders by filter.
func (s *Service) ListPurchaseOrders(ctx context.Context, filters ListFilters) ([]PurchaseOrder, error) {
	return s.repo.ListPOs(ctx, filters)
}

func (s *Service) publishGRNPosted(ctx context.Context, grn GoodsReceipt, lines []GRNLine) {
	if s.events == nil {
		return
	}
	evt := GRNPostedEvent{
		GRNID:      grn.ID,
		Number:     grn.Number,
		StoreID:    grn.StoreID,
		SupplierID: grn.SupplierID,
		PostedAt:   time.Now(),
	}
	for _, line := range lines {
		refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("GRN:%d:%d", grn.ID, line.ID)))
		evt.Lines = append(evt.Lines, StockIncreaseEvent{
			RefID:       refID.String(),
			ProductID:   line.ProductID,
			StoreID:     grn.StoreID,
			Quantity:    line.QuantityAccepted,
			UnitCost:    line.UnitCost,
			BatchNumber: line.BatchNumber,
			ExpiryDate:  line.ExpiryDate,
		})
	}
	if err := s.events.PublishGRNPosted(ctx, evt); err != nil {
		s.logger.Error("publish grn posted", slog.String("number", grn.Number), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: shared.EntityProcurement, EntityID: entityID, Meta: meta})
}
