package sales

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-retail/atlas-erp/internal/pricing"
	"github.com/atlas-retail/atlas-erp/internal/sequence"
	"github.com/atlas-retail/atlas-erp/internal/shared"
)

type memoryRepo struct {
	invoices map[int64]SalesInvoice
	lines    map[int64][]InvoiceLine
	lastID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{invoices: make(map[int64]SalesInvoice), lines: make(map[int64][]InvoiceLine)}
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) GetInvoice(ctx context.Context, id int64) (SalesInvoice, []InvoiceLine, error) {
	inv, ok := r.invoices[id]
	if !ok {
		return SalesInvoice{}, nil, ErrNotFound
	}
	return inv, append([]InvoiceLine(nil), r.lines[id]...), nil
}

func (r *memoryRepo) ListInvoices(ctx context.Context, filters ListFilters) ([]SalesInvoice, error) {
	var invoices []SalesInvoice
	for _, inv := range r.invoices {
		invoices = append(invoices, inv)
	}
	return invoices, nil
}

func (t *memoryTx) nextID() int64 {
	t.repo.lastID++
	return t.repo.lastID
}

func (t *memoryTx) CreateInvoice(ctx context.Context, inv SalesInvoice) (int64, error) {
	id := t.nextID()
	inv.ID = id
	t.repo.invoices[id] = inv
	return id, nil
}

func (t *memoryTx) InsertLine(ctx context.Context, line InvoiceLine) (int64, error) {
	line.ID = t.nextID()
	t.repo.lines[line.InvoiceID] = append(t.repo.lines[line.InvoiceID], line)
	return line.ID, nil
}

func (t *memoryTx) DeleteLines(ctx context.Context, invoiceID int64) error {
	delete(t.repo.lines, invoiceID)
	return nil
}

func (t *memoryTx) UpdateTotals(ctx context.Context, inv SalesInvoice) error {
	stored, ok := t.repo.invoices[inv.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Subtotal = inv.Subtotal
	stored.TotalProductDiscountAmount = inv.TotalProductDiscountAmount
	stored.InvoiceDiscountAmount = inv.InvoiceDiscountAmount
	stored.TaxableAmount = inv.TaxableAmount
	stored.OverallTaxRate = inv.OverallTaxRate
	stored.TaxAmount = inv.TaxAmount
	stored.ShippingCharges = inv.ShippingCharges
	stored.OtherCharges = inv.OtherCharges
	stored.GrandTotal = inv.GrandTotal
	stored.BalanceDue = inv.BalanceDue
	t.repo.invoices[inv.ID] = stored
	return nil
}

func (t *memoryTx) UpdateStatus(ctx context.Context, id int64, status InvoiceStatus) error {
	inv, ok := t.repo.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.Status = status
	t.repo.invoices[id] = inv
	return nil
}

func (t *memoryTx) GetInvoiceForUpdate(ctx context.Context, id int64) (SalesInvoice, []InvoiceLine, error) {
	return t.repo.GetInvoice(ctx, id)
}

func (t *memoryTx) UpdatePayment(ctx context.Context, id int64, amountPaid, balanceDue float64, status InvoiceStatus) error {
	inv, ok := t.repo.invoices[id]
	if !ok {
		return ErrNotFound
	}
	inv.AmountPaid = amountPaid
	inv.BalanceDue = balanceDue
	inv.Status = status
	t.repo.invoices[id] = inv
	return nil
}

type fakeMasterData struct {
	customers map[int64]CustomerRef
}

func (f fakeMasterData) Product(ctx context.Context, id int64) (ProductRef, error) {
	switch id {
	case 1:
		return ProductRef{ID: 1, SKU: "WIDGET-1", Name: "Widget", UnitOfMeasure: "EA",
			StandardCost: 60, Tiers: pricing.PriceTiers{Shop: 100, Field: 95, Wholesale: 80}}, nil
	case 2:
		return ProductRef{ID: 2, SKU: "GADGET-2", Name: "Gadget", UnitOfMeasure: "EA",
			StandardCost: 30, Tiers: pricing.PriceTiers{Shop: 50}}, nil
	}
	return ProductRef{}, shared.ErrReferenceNotFound
}

func (f fakeMasterData) Customer(ctx context.Context, id int64) (CustomerRef, error) {
	customer, ok := f.customers[id]
	if !ok {
		return CustomerRef{}, shared.ErrReferenceNotFound
	}
	return customer, nil
}

func (f fakeMasterData) StoreExists(ctx context.Context, storeID string) error {
	if storeID != "SH01" {
		return shared.ErrReferenceNotFound
	}
	return nil
}

// couponTenPercent discounts product 1 by 10%, but only when the
// SAVE10 coupon rides along on the resolve input.
type couponTenPercent struct{}

func (couponTenPercent) Resolve(ctx context.Context, in pricing.ResolveInput) (*pricing.EffectiveDiscount, error) {
	if in.ProductID != 1 || in.CouponCode != "SAVE10" {
		return nil, nil
	}
	return &pricing.EffectiveDiscount{Adjustments: []pricing.Adjustment{
		{DiscountID: 11, Kind: pricing.KindPercentage, Value: 10},
	}}, nil
}

// tenPercentOnWidget discounts product 1 by 10%, everything else full price.
type tenPercentOnWidget struct{}

func (tenPercentOnWidget) Resolve(ctx context.Context, in pricing.ResolveInput) (*pricing.EffectiveDiscount, error) {
	if in.ProductID != 1 {
		return nil, nil
	}
	return &pricing.EffectiveDiscount{Adjustments: []pricing.Adjustment{
		{DiscountID: 11, Kind: pricing.KindPercentage, Value: 10},
	}}, nil
}

type capturingPublisher struct {
	events []BalanceChangeEvent
}

func (p *capturingPublisher) PublishBalanceChange(ctx context.Context, evt BalanceChangeEvent) error {
	p.events = append(p.events, evt)
	return nil
}

type staticPrefixes struct{}

func (staticPrefixes) InvoicePrefix(ctx context.Context, storeID string, kind sequence.Kind) (string, error) {
	switch kind {
	case sequence.KindInvoiceCash:
		return "CAS", nil
	case sequence.KindInvoiceField:
		return "FLD", nil
	}
	return "", sequence.ErrPrefixNotConfigured
}

func newTestService(repo *memoryRepo) (*Service, *capturingPublisher) {
	masterdata := fakeMasterData{customers: map[int64]CustomerRef{
		5: {ID: 5, GroupID: 2},
		6: {ID: 6, Wholesale: true},
	}}
	numbers := sequence.NewAllocator(sequence.NewMemoryCounterStore(), staticPrefixes{})
	publisher := &capturingPublisher{}
	service := NewService(repo, masterdata, tenPercentOnWidget{}, numbers, nil, publisher, nil)
	return service, publisher
}

func createTestInvoice(t *testing.T, service *Service) (SalesInvoice, []InvoiceLine) {
	t.Helper()
	inv, lines, err := service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 5,
		StoreID:    "SH01",
		Type:       TypeCash,
		Lines: []LineInput{
			{ProductID: 1, Quantity: 3, LineTaxRate: 0.15},
			{ProductID: 2, Quantity: 2, LineTaxRate: 0.15},
		},
	})
	require.NoError(t, err)
	return inv, lines
}

func TestCreateInvoicePricesCascade(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	inv, lines, err := service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 5, StoreID: "SH01", Type: TypeCash,
		Lines: []LineInput{{ProductID: 1, Quantity: 3, LineTaxRate: 0.15}},
	})
	require.NoError(t, err)

	require.Len(t, lines, 1)
	require.Equal(t, 100.00, lines[0].UnitPriceBeforeDiscount)
	require.Equal(t, 90.00, lines[0].UnitPriceAfterDiscount)
	require.Equal(t, 270.00, lines[0].LineSubtotal)
	require.Equal(t, 40.50, lines[0].LineTaxAmount)
	require.Equal(t, 310.50, lines[0].LineTotal)
	require.Equal(t, 60.00, lines[0].CostPriceAtSale)
	require.NotNil(t, lines[0].DiscountID)
	require.Equal(t, int64(11), *lines[0].DiscountID)

	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, 270.00, inv.Subtotal)
	require.Equal(t, 30.00, inv.TotalProductDiscountAmount)
	require.Equal(t, 40.50, inv.TaxAmount)
	require.Equal(t, 310.50, inv.GrandTotal)
	require.Equal(t, 310.50, inv.BalanceDue)
}

func TestCreateInvoiceNumberUsesStorePrefix(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service)
	require.Equal(t, "CAS"+sequence.Period(inv.InvoiceDate)+"0001", inv.Number)
}

func TestCreateInvoiceLaybyPrefixNotConfigured(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	_, _, err := service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 5, StoreID: "SH01", Type: TypeLayby,
		Lines: []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, sequence.ErrPrefixNotConfigured)
}

func TestCreateInvoiceWholesaleCustomerGetsWholesaleTier(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	_, lines, err := service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 6, StoreID: "SH01", Type: TypeCash,
		Lines: []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 80.00, lines[0].UnitPriceBeforeDiscount)
}

func TestCreateInvoiceFieldTypeUsesFieldTier(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	_, lines, err := service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 5, StoreID: "SH01", Type: TypeField,
		Lines: []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, 95.00, lines[0].UnitPriceBeforeDiscount)
}

func TestCreateInvoiceRejectsUnknownReferences(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())

	_, _, err := service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 99, StoreID: "SH01", Type: TypeCash,
		Lines: []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrReferenceNotFound)

	_, _, err = service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 5, StoreID: "XX99", Type: TypeCash,
		Lines: []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrReferenceNotFound)
}

func TestCreateInvoiceUnknownType(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	_, _, err := service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 5, StoreID: "SH01", Type: "CREDIT",
		Lines: []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.ErrorIs(t, err, ErrUnknownInvoiceType)
}

func TestUpdateLinesOnlyInDraft(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service)

	updated, lines, err := service.UpdateInvoiceLines(context.Background(), inv.ID, []LineInput{
		{ProductID: 2, Quantity: 1},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, 50.00, updated.GrandTotal)

	require.NoError(t, service.IssueInvoice(context.Background(), inv.ID))
	_, _, err = service.UpdateInvoiceLines(context.Background(), inv.ID, []LineInput{
		{ProductID: 2, Quantity: 2},
	})
	require.ErrorIs(t, err, ErrLinesImmutable)
}

func TestUpdateLinesKeepsCouponDiscount(t *testing.T) {
	repo := newMemoryRepo()
	masterdata := fakeMasterData{customers: map[int64]CustomerRef{5: {ID: 5, GroupID: 2}}}
	numbers := sequence.NewAllocator(sequence.NewMemoryCounterStore(), staticPrefixes{})
	service := NewService(repo, masterdata, couponTenPercent{}, numbers, nil, &capturingPublisher{}, nil)

	inv, lines, err := service.CreateInvoice(context.Background(), CreateInvoiceInput{
		CustomerID: 5, StoreID: "SH01", Type: TypeCash, CouponCode: "SAVE10",
		Lines: []LineInput{{ProductID: 1, Quantity: 1}},
	})
	require.NoError(t, err)
	require.Equal(t, "SAVE10", inv.CouponCode)
	require.Equal(t, 90.00, lines[0].UnitPriceAfterDiscount)

	// A quantity-only edit re-prices with the stored coupon, so the
	// gated discount survives the draft update.
	updated, lines, err := service.UpdateInvoiceLines(context.Background(), inv.ID, []LineInput{
		{ProductID: 1, Quantity: 2},
	})
	require.NoError(t, err)
	require.Equal(t, 90.00, lines[0].UnitPriceAfterDiscount)
	require.Equal(t, 180.00, updated.GrandTotal)
}

func TestIssuePublishesBalanceChange(t *testing.T) {
	service, publisher := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service)
	require.NoError(t, service.IssueInvoice(context.Background(), inv.ID))

	require.Len(t, publisher.events, 1)
	evt := publisher.events[0]
	require.Equal(t, inv.CustomerID, evt.CustomerID)
	require.Equal(t, inv.ID, evt.InvoiceID)
	require.Equal(t, inv.GrandTotal, evt.Delta)
}

func TestRegisterPaymentPartialThenSettled(t *testing.T) {
	service, publisher := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service) // grand total 425.50
	require.NoError(t, service.IssueInvoice(context.Background(), inv.ID))

	partial, err := service.RegisterPayment(context.Background(), inv.ID, 200)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, partial.Status)
	require.Equal(t, 200.00, partial.AmountPaid)
	require.Equal(t, 225.50, partial.BalanceDue)

	settled, err := service.RegisterPayment(context.Background(), inv.ID, 225.50)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, settled.Status)
	require.Equal(t, 0.00, settled.BalanceDue)

	require.Len(t, publisher.events, 3) // issue + two payments
	require.Equal(t, -200.00, publisher.events[1].Delta)
	require.Equal(t, -225.50, publisher.events[2].Delta)
}

func TestRegisterPaymentConsecutivePartials(t *testing.T) {
	service, publisher := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service) // grand total 425.50
	require.NoError(t, service.IssueInvoice(context.Background(), inv.ID))

	first, err := service.RegisterPayment(context.Background(), inv.ID, 100)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, first.Status)

	// A second payment that still leaves a balance keeps the invoice
	// partially paid instead of tripping the transition table.
	second, err := service.RegisterPayment(context.Background(), inv.ID, 100)
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyPaid, second.Status)
	require.Equal(t, 200.00, second.AmountPaid)
	require.Equal(t, 225.50, second.BalanceDue)

	require.Len(t, publisher.events, 3) // issue + two payments
	require.Equal(t, -100.00, publisher.events[1].Delta)
	require.Equal(t, -100.00, publisher.events[2].Delta)
}

func TestRegisterPaymentOverpaymentRejected(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service)
	require.NoError(t, service.IssueInvoice(context.Background(), inv.ID))

	_, err := service.RegisterPayment(context.Background(), inv.ID, 1000)
	var overpaid *OverpaymentError
	require.ErrorAs(t, err, &overpaid)

	// Rejected payment leaves the invoice untouched.
	stored, _, err := service.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusIssued, stored.Status)
	require.Equal(t, 0.00, stored.AmountPaid)
}

func TestRegisterPaymentRequiresIssuedInvoice(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service)

	_, err := service.RegisterPayment(context.Background(), inv.ID, 100)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestVoidIssuedInvoiceReversesBalance(t *testing.T) {
	service, publisher := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service)
	require.NoError(t, service.IssueInvoice(context.Background(), inv.ID))
	require.NoError(t, service.VoidInvoice(context.Background(), inv.ID))

	stored, _, err := service.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusVoid, stored.Status)

	require.Len(t, publisher.events, 2)
	require.Equal(t, -inv.GrandTotal, publisher.events[1].Delta)
}

func TestVoidPaidInvoiceRejected(t *testing.T) {
	service, _ := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service)
	require.NoError(t, service.IssueInvoice(context.Background(), inv.ID))
	_, err := service.RegisterPayment(context.Background(), inv.ID, inv.GrandTotal)
	require.NoError(t, err)

	err = service.VoidInvoice(context.Background(), inv.ID)
	var transition *shared.InvalidTransitionError
	require.ErrorAs(t, err, &transition)
}

func TestCancelDraftInvoice(t *testing.T) {
	service, publisher := newTestService(newMemoryRepo())
	inv, _ := createTestInvoice(t, service)
	require.NoError(t, service.CancelInvoice(context.Background(), inv.ID))

	stored, _, err := service.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, stored.Status)
	// Draft cancellation never touched the ledger.
	require.Empty(t, publisher.events)
}
