package procurement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/atlas-retail/atlas-erp/internal/sequence"
	"github.com/atlas-retail/atlas-erp/internal/shared"
)

type memoryRepo struct {
	pos      map[int64]PurchaseOrder
	poLines  map[int64][]POLine
	grns     map[int64]GoodsReceipt
	grnLines map[int64][]GRNLine
	lastID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		pos:      make(map[int64]PurchaseOrder),
		poLines:  make(map[int64][]POLine),
		grns:     make(map[int64]GoodsReceipt),
		grnLines: make(map[int64][]GRNLine),
	}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetPO(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, nil, ErrNotFound
	}
	return po, append([]POLine(nil), r.poLines[id]...), nil
}

func (r *memoryRepo) GetGRN(ctx context.Context, id int64) (GoodsReceipt, []GRNLine, error) {
	grn, ok := r.grns[id]
	if !ok {
		return GoodsReceipt{}, nil, ErrNotFound
	}
	return grn, append([]GRNLine(nil), r.grnLines[id]...), nil
}

func (r *memoryRepo) ListPOs(ctx context.Context, filters ListFilters) ([]PurchaseOrder, error) {
	var orders []PurchaseOrder
	for _, po := range r.pos {
		orders = append(orders, po)
	}
	return orders, nil
}

func (r *memoryRepo) ListGRNs(ctx context.Context, poID int64) ([]GoodsReceipt, error) {
	var receipts []GoodsReceipt
	for _, grn := range r.grns {
		if grn.POID != nil && *grn.POID == poID {
			receipts = append(receipts, grn)
		}
	}
	return receipts, nil
}

func (t *memoryTx) nextID() int64 {
	t.repo.lastID++
	return t.repo.lastID
}

func (t *memoryTx) CreatePO(ctx context.Context, po PurchaseOrder) (int64, error) {
	id := t.nextID()
	po.ID = id
	t.repo.pos[id] = po
	return id, nil
}

func (t *memoryTx) InsertPOLine(ctx context.Context, line POLine) (int64, error) {
	line.ID = t.nextID()
	t.repo.poLines[line.POID] = append(t.repo.poLines[line.POID], line)
	return line.ID, nil
}

func (t *memoryTx) DeletePOLines(ctx context.Context, poID int64) error {
	delete(t.repo.poLines, poID)
	return nil
}

func (t *memoryTx) UpdatePOStatus(ctx context.Context, id int64, status POStatus) error {
	po, ok := t.repo.pos[id]
	if !ok {
		return ErrNotFound
	}
	po.Status = status
	t.repo.pos[id] = po
	return nil
}

func (t *memoryTx) SetPOApproval(ctx context.Context, id int64, approvedBy int64, at time.Time) error {
	po := t.repo.pos[id]
	po.ApprovedBy = approvedBy
	po.ApprovalDate = &at
	t.repo.pos[id] = po
	return nil
}

func (t *memoryTx) UpdatePOTotals(ctx context.Context, po PurchaseOrder) error {
	stored := t.repo.pos[po.ID]
	stored.Subtotal = po.Subtotal
	stored.TaxAmount = po.TaxAmount
	stored.ShippingCost = po.ShippingCost
	stored.OtherCharges = po.OtherCharges
	stored.TotalAmount = po.TotalAmount
	t.repo.pos[po.ID] = stored
	return nil
}

func (t *memoryTx) GetPOForUpdate(ctx context.Context, id int64) (PurchaseOrder, []POLine, error) {
	return t.repo.GetPO(ctx, id)
}

func (t *memoryTx) IncrementPOLineReceived(ctx context.Context, lineID int64, delta float64, fromVersion int64) error {
	for poID, lines := range t.repo.poLines {
		for i, line := range lines {
			if line.ID != lineID {
				continue
			}
			if line.Version != fromVersion {
				return fmt.Errorf("po line %d: %w", lineID, shared.ErrConcurrentUpdate)
			}
			lines[i].QuantityReceived += delta
			lines[i].Version++
			t.repo.poLines[poID] = lines
			return nil
		}
	}
	return ErrNotFound
}

func (t *memoryTx) CreateGRN(ctx context.Context, grn GoodsReceipt) (int64, error) {
	id := t.nextID()
	grn.ID = id
	t.repo.grns[id] = grn
	return id, nil
}

func (t *memoryTx) InsertGRNLine(ctx context.Context, line GRNLine) (int64, error) {
	line.ID = t.nextID()
	t.repo.grnLines[line.GRNID] = append(t.repo.grnLines[line.GRNID], line)
	return line.ID, nil
}

func (t *memoryTx) UpdateGRNStatus(ctx context.Context, id int64, status GRNStatus) error {
	grn, ok := t.repo.grns[id]
	if !ok {
		return ErrNotFound
	}
	if grn.Status != GRNStatusDraft {
		return shared.ErrConcurrentUpdate
	}
	grn.Status = status
	t.repo.grns[id] = grn
	return nil
}

type fakeMasterData struct {
	products map[int64]ProductRef
}

func (f fakeMasterData) Product(ctx context.Context, id int64) (ProductRef, error) {
	product, ok := f.products[id]
	if !ok {
		return ProductRef{}, shared.ErrReferenceNotFound
	}
	return product, nil
}

func (f fakeMasterData) StoreExists(ctx context.Context, storeID string) error {
	if storeID != "SH01" && storeID != "WH01" {
		return shared.ErrReferenceNotFound
	}
	return nil
}

func (f fakeMasterData) SupplierExists(ctx context.Context, supplierID int64) error {
	if supplierID != 7 {
		return shared.ErrReferenceNotFound
	}
	return nil
}

type capturingPublisher struct {
	events []GRNPostedEvent
}

func (p *capturingPublisher) PublishGRNPosted(ctx context.Context, evt GRNPostedEvent) error {
	p.events = append(p.events, evt)
	return nil
}

type memoryApprovals struct {
	logs []shared.ApprovalLog
}

func (m *memoryApprovals) Record(ctx context.Context, log shared.ApprovalLog) error {
	if log.At.IsZero() {
		log.At = time.Now()
	}
	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, log)
	return nil
}

func (m *memoryApprovals) List(ctx context.Context, module shared.ApprovalModule, ref uuid.UUID) ([]shared.ApprovalLog, error) {
	var out []shared.ApprovalLog
	for _, l := range m.logs {
		if l.Module == module && l.RefID == ref {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memoryApprovals) EnsureSubmit(ctx context.Context, module shared.ApprovalModule, ref uuid.UUID, actorID int64, note string) error {
	for _, l := range m.logs {
		if l.Module == module && l.RefID == ref && l.Action == shared.ApprovalSubmit {
			return nil
		}
	}
	return m.Record(ctx, shared.ApprovalLog{Module: module, RefID: ref, ActorID: actorID, Action: shared.ApprovalSubmit, Note: note})
}

func newTestService(repo *memoryRepo) (*Service, *capturingPublisher) {
	masterdata := fakeMasterData{products: map[int64]ProductRef{
		1: {ID: 1, SKU: "WIDGET-1", Name: "Widget", UnitOfMeasure: "EA"},
		2: {ID: 2, SKU: "GADGET-2", Name: "Gadget", UnitOfMeasure: "EA"},
		3: {ID: 3, SKU: "SERUM-3", Name: "Serum", RequiresBatchNumber: true, RequiresExpiryDate: true},
	}}
	numbers := sequence.NewAllocator(sequence.NewMemoryCounterStore(), nil)
	publisher := &capturingPublisher{}
	service := NewService(repo, masterdata, numbers, nil, nil, nil, publisher, nil)
	return service, publisher
}

func createTestPO(t *testing.T, service *Service) PurchaseOrder {
	t.Helper()
	po, err := service.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID: 7,
		StoreID:    "SH01",
		Lines: []POLineInput{
			{ProductID: 1, QuantityOrdered: 10, UnitPrice: 25.50},
			{ProductID: 2, QuantityOrdered: 5, UnitPrice: 100.00},
		},
	})
	require.NoError(t, err)
	return po
}

func advanceToSent(t *testing.T, service *Service, poID int64) {
	t.Helper()
	require.NoError(t, service.SubmitPurchaseOrder(context.Background(), poID, 1))
	require.NoError(t, service.ApprovePurchaseOrder(context.Background(), poID, 2))
	require.NoError(t, service.SendPurchaseOrder(context.Background(), poID))
}

func TestApprovalHistoryTracksSubmitAndApprove(t *testing.T) {
	repo := newMemoryRepo()
	approvals := &memoryApprovals{}
	masterdata := fakeMasterData{products: map[int64]ProductRef{
		1: {ID: 1, SKU: "WIDGET-1", Name: "Widget", UnitOfMeasure: "EA"},
		2: {ID: 2, SKU: "GADGET-2", Name: "Gadget", UnitOfMeasure: "EA"},
	}}
	numbers := sequence.NewAllocator(sequence.NewMemoryCounterStore(), nil)
	service := NewService(repo, masterdata, numbers, approvals, nil, nil, &capturingPublisher{}, nil)

	po := createTestPO(t, service)
	require.NoError(t, service.SubmitPurchaseOrder(context.Background(), po.ID, 1))
	require.NoError(t, service.ApprovePurchaseOrder(context.Background(), po.ID, 2))

	trail, err := service.ApprovalHistory(context.Background(), po.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	require.Equal(t, shared.ApprovalSubmit, trail[0].Action)
	require.Equal(t, int64(1), trail[0].ActorID)
	require.Equal(t, shared.ApprovalApprove, trail[1].Action)
	require.Equal(t, int64(2), trail[1].ActorID)
	// Both entries share the order's derived reference.
	require.Equal(t, shared.DocRef(shared.ModulePurchaseOrder, po.ID), trail[0].RefID)
	require.Equal(t, trail[0].RefID, trail[1].RefID)

	_, err = service.ApprovalHistory(context.Background(), 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCreatePurchaseOrderComputesTotals(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	po := createTestPO(t, service)

	require.Equal(t, POStatusDraft, po.Status)
	require.Equal(t, "PO-SH01-"+sequence.Period(po.OrderDate)+"0001", po.Number)
	require.Equal(t, 755.00, po.Subtotal)
	require.Equal(t, 755.00, po.TotalAmount)
}

func TestCreatePurchaseOrderRejectsUnknownReferences(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())

	_, err := service.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID: 99, StoreID: "SH01",
		Lines: []POLineInput{{ProductID: 1, QuantityOrdered: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, shared.ErrReferenceNotFound)

	_, err = service.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID: 7, StoreID: "XX99",
		Lines: []POLineInput{{ProductID: 1, QuantityOrdered: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, shared.ErrReferenceNotFound)

	_, err = service.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID: 7, StoreID: "SH01",
		Lines: []POLineInput{{ProductID: 404, QuantityOrdered: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, shared.ErrReferenceNotFound)
}

func TestCreatePurchaseOrderRejectsBadLines(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	_, err := service.CreatePurchaseOrder(context.Background(), CreatePOInput{
		SupplierID: 7, StoreID: "SH01",
		Lines: []POLineInput{{ProductID: 1, QuantityOrdered: 0, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestUpdateLinesOnlyInDraft(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)
	po := createTestPO(t, service)

	updated, err := service.UpdatePurchaseOrderLines(context.Background(), po.ID, []POLineInput{
		{ProductID: 1, QuantityOrdered: 2, UnitPrice: 10},
	})
	require.NoError(t, err)
	require.Equal(t, 20.00, updated.TotalAmount)

	require.NoError(t, service.SubmitPurchaseOrder(context.Background(), po.ID, 1))
	_, err = service.UpdatePurchaseOrderLines(context.Background(), po.ID, []POLineInput{
		{ProductID: 1, QuantityOrdered: 3, UnitPrice: 10},
	})
	require.ErrorIs(t, err, ErrLinesImmutable)
}

func TestApproveGuardRequiresLinesAndTotal(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)
	po := createTestPO(t, service)
	require.NoError(t, service.SubmitPurchaseOrder(context.Background(), po.ID, 1))

	// Zero the total behind the service's back to hit the guard.
	stored := repo.pos[po.ID]
	stored.TotalAmount = 0
	repo.pos[po.ID] = stored

	err := service.ApprovePurchaseOrder(context.Background(), po.ID, 2)
	require.ErrorIs(t, err, ErrNotApprovable)
}

func TestApproveRecordsApprover(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)
	po := createTestPO(t, service)
	require.NoError(t, service.SubmitPurchaseOrder(context.Background(), po.ID, 1))
	require.NoError(t, service.ApprovePurchaseOrder(context.Background(), po.ID, 42))

	stored, _, err := service.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusApproved, stored.Status)
	require.Equal(t, int64(42), stored.ApprovedBy)
	require.NotNil(t, stored.ApprovalDate)
}

func TestIllegalTransitionRejected(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	po := createTestPO(t, service)
	err := service.ApprovePurchaseOrder(context.Background(), po.ID, 1)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCreateGRNRequiresReceivablePO(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	po := createTestPO(t, service)

	_, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		POID: &po.ID, StoreID: "SH01",
		Lines: []GRNLineInput{{ProductID: 1, QuantityReceived: 1, QuantityAccepted: 1}},
	})
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCreateGRNEnforcesBatchAndExpiry(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())

	_, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		StoreID:    "SH01",
		SupplierID: 7,
		Lines:      []GRNLineInput{{ProductID: 3, QuantityReceived: 5, QuantityAccepted: 5}},
	})
	require.ErrorIs(t, err, ErrBatchRequired)

	_, err = service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		StoreID:    "SH01",
		SupplierID: 7,
		Lines:      []GRNLineInput{{ProductID: 3, QuantityReceived: 5, QuantityAccepted: 5, BatchNumber: "B-7"}},
	})
	require.ErrorIs(t, err, ErrExpiryRequired)

	expiry := time.Now().AddDate(1, 0, 0)
	grn, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		StoreID:    "SH01",
		SupplierID: 7,
		Lines:      []GRNLineInput{{ProductID: 3, QuantityReceived: 5, QuantityAccepted: 5, BatchNumber: "B-7", ExpiryDate: &expiry}},
	})
	require.NoError(t, err)
	require.Equal(t, GRNStatusDraft, grn.Status)
}

func TestCreateGRNRejectsInvalidSplit(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	_, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		StoreID:    "SH01",
		SupplierID: 7,
		Lines:      []GRNLineInput{{ProductID: 1, QuantityReceived: 10, QuantityAccepted: 9, QuantityRejected: 2}},
	})
	require.ErrorIs(t, err, ErrInvalidAcceptRejectSplit)
}

func postReceiptAgainstPO(t *testing.T, service *Service, repo *memoryRepo, po PurchaseOrder, quantities map[int64]float64) ReconciliationResult {
	t.Helper()
	_, poLines, err := service.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)

	var lines []GRNLineInput
	for _, poLine := range poLines {
		qty, ok := quantities[poLine.ProductID]
		if !ok || qty == 0 {
			continue
		}
		lineID := poLine.ID
		lines = append(lines, GRNLineInput{
			ProductID:        poLine.ProductID,
			POLineID:         &lineID,
			QuantityReceived: qty,
			QuantityAccepted: qty,
			UnitCost:         poLine.UnitPrice,
		})
	}
	grn, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		POID: &po.ID, StoreID: po.StoreID, Lines: lines,
	})
	require.NoError(t, err)
	result, err := service.PostGoodsReceipt(context.Background(), grn.ID)
	require.NoError(t, err)
	return result
}

func TestPostGRNFullReceiptMarksPOFullyReceived(t *testing.T) {
	repo := newMemoryRepo()
	service, publisher := newTestService(repo)
	po := createTestPO(t, service)
	advanceToSent(t, service, po.ID)

	result := postReceiptAgainstPO(t, service, repo, po, map[int64]float64{1: 10, 2: 5})
	require.False(t, result.OverReceipt)
	require.Equal(t, POStatusFullyReceived, result.POStatus)

	stored, lines, err := service.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusFullyReceived, stored.Status)
	for _, line := range lines {
		require.GreaterOrEqual(t, line.QuantityReceived, line.QuantityOrdered)
	}
	require.Len(t, publisher.events, 1)
	require.Len(t, publisher.events[0].Lines, 2)
}

func TestPostGRNPartialReceiptMarksPOPartiallyReceived(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)
	po := createTestPO(t, service)
	advanceToSent(t, service, po.ID)

	result := postReceiptAgainstPO(t, service, repo, po, map[int64]float64{1: 10})
	require.Equal(t, POStatusPartiallyReceived, result.POStatus)

	stored, _, err := service.GetPurchaseOrder(context.Background(), po.ID)
	require.NoError(t, err)
	require.Equal(t, POStatusPartiallyReceived, stored.Status)
}

func TestPostGRNSequentialReceiptsAccumulate(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)
	po := createTestPO(t, service)
	advanceToSent(t, service, po.ID)

	first := postReceiptAgainstPO(t, service, repo, po, map[int64]float64{1: 6})
	require.Equal(t, POStatusPartiallyReceived, first.POStatus)

	second := postReceiptAgainstPO(t, service, repo, po, map[int64]float64{1: 4, 2: 5})
	require.Equal(t, POStatusFullyReceived, second.POStatus)
	require.False(t, second.OverReceipt)
}

func TestPostGRNOverReceiptFlagsWarning(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)
	po := createTestPO(t, service)
	advanceToSent(t, service, po.ID)

	result := postReceiptAgainstPO(t, service, repo, po, map[int64]float64{1: 12, 2: 5})
	require.True(t, result.OverReceipt)
	require.Equal(t, POStatusFullyReceived, result.POStatus)
}

func TestPostGRNTwiceRejected(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	grn, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		StoreID:    "SH01",
		SupplierID: 7,
		Lines:      []GRNLineInput{{ProductID: 1, QuantityReceived: 3, QuantityAccepted: 3}},
	})
	require.NoError(t, err)

	_, err = service.PostGoodsReceipt(context.Background(), grn.ID)
	require.NoError(t, err)

	_, err = service.PostGoodsReceipt(context.Background(), grn.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestUpdateGRNStatusFencedToDraft(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	grn, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		StoreID:    "SH01",
		SupplierID: 7,
		Lines:      []GRNLineInput{{ProductID: 1, QuantityReceived: 3, QuantityAccepted: 3}},
	})
	require.NoError(t, err)
	_, err = service.PostGoodsReceipt(context.Background(), grn.ID)
	require.NoError(t, err)

	// A transaction that read the receipt as draft before another one
	// posted it still loses at the status-predicated update.
	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateGRNStatus(ctx, grn.ID, GRNStatusCancelled)
	})
	require.ErrorIs(t, err, shared.ErrConcurrentUpdate)

	stored, _, err := service.GetGoodsReceipt(context.Background(), grn.ID)
	require.NoError(t, err)
	require.Equal(t, GRNStatusPosted, stored.Status)

	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateGRNStatus(ctx, 999, GRNStatusPosted)
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancelGRNOnlyFromDraft(t *testing.T) {
	repo := newMemoryRepo()
	service, _ := newTestService(repo)

	grn, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		StoreID:    "SH01",
		SupplierID: 7,
		Lines:      []GRNLineInput{{ProductID: 1, QuantityReceived: 3, QuantityAccepted: 3}},
	})
	require.NoError(t, err)
	_, err = service.PostGoodsReceipt(context.Background(), grn.ID)
	require.NoError(t, err)

	err = service.CancelGoodsReceipt(context.Background(), grn.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestPostGRNStockEventsCarryAcceptedQuantity(t *testing.T) {
	repo := newMemoryRepo()
	service, publisher := newTestService(repo)

	grn, err := service.CreateGoodsReceipt(context.Background(), CreateGRNInput{
		StoreID:    "SH01",
		SupplierID: 7,
		Lines:      []GRNLineInput{{ProductID: 1, QuantityReceived: 10, QuantityAccepted: 8, QuantityRejected: 2, UnitCost: 12.5}},
	})
	require.NoError(t, err)
	_, err = service.PostGoodsReceipt(context.Background(), grn.ID)
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	evt := publisher.events[0]
	require.Equal(t, grn.Number, evt.Number)
	require.Len(t, evt.Lines, 1)
	require.Equal(t, 8.0, evt.Lines[0].Quantity)
	require.Equal(t, "SH01", evt.Lines[0].StoreID)
}
