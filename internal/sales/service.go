package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-retail/atlas-erp/internal/pricing"
	"github.com/atlas-retail/atlas-erp/internal/sequence"
	"github.com/atlas-retail/atlas-erp/internal/shared"
)

// ProductRef is the read-only product projection invoicing needs.
type ProductRef struct {
	ID            int64
	SKU           string
	Name          string
	UnitOfMeasure string
	StandardCost  float64
	Tiers         pricing.PriceTiers
}

// CustomerRef carries the customer attributes that steer pricing.
type CustomerRef struct {
	ID        int64
	GroupID   int64 // zero when ungrouped
	Wholesale bool
}

// MasterDataPort resolves reference data. Every method fails with
// shared.ErrReferenceNotFound when the ID does not resolve.
type MasterDataPort interface {
	Product(ctx context.Context, id int64) (ProductRef, error)
	Customer(ctx context.Context, id int64) (CustomerRef, error)
	StoreExists(ctx context.Context, storeID string) error
}

// DiscountResolver yields the effective discount for a line, or nil.
type DiscountResolver interface {
	Resolve(ctx context.Context, in pricing.ResolveInput) (*pricing.EffectiveDiscount, error)
}

// NumberAllocator hands out store-scoped document numbers.
type NumberAllocator interface {
	Next(ctx context.Context, storeID string, kind sequence.Kind, asOf time.Time) (string, error)
}

// AuditPort records audit trail entries.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates the invoice flow: pricing, totals, numbering,
// lifecycle and ledger events.
type Service struct {
	repo       RepositoryPort
	masterdata MasterDataPort
	discounts  DiscountResolver
	numbers    NumberAllocator
	audit      AuditPort
	events     EventPublisher
	logger     *slog.Logger
}

// NewService constructs the sales service.
func NewService(repo RepositoryPort, masterdata MasterDataPort, discounts DiscountResolver, numbers NumberAllocator, audit AuditPort, events EventPublisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, masterdata: masterdata, discounts: discounts, numbers: numbers, audit: audit, events: events, logger: logger}
}

// LineInput describes one item to sell.
type LineInput struct {
	ProductID   int64
	Quantity    float64
	LineTaxRate float64
	Description string
}

// CreateInvoiceInput describes an invoice creation payload.
type CreateInvoiceInput struct {
	CustomerID            int64
	StoreID               string
	Type                  InvoiceType
	InvoiceDate           time.Time
	DueDate               *time.Time
	SalespersonID         int64
	CouponCode            string
	InvoiceDiscountAmount float64
	OverallTaxRate        float64
	ShippingCharges       float64
	OtherCharges          float64
	Notes                 string
	CreatedBy             int64
	Lines                 []LineInput
}

// sequenceKind maps the invoice type to its numbering series.
func sequenceKind(t InvoiceType) (sequence.Kind, error) {
	switch t {
	case TypeCash:
		return sequence.KindInvoiceCash, nil
	case TypeLayby:
		return sequence.KindInvoiceLayby, nil
	case TypeField:
		return sequence.KindInvoiceField, nil
	default:
		return "", ErrUnknownInvoiceType
	}
}

// channelFor picks the price tier channel. Wholesale customers buy at
// the wholesale tier regardless of invoice type; field invoices use the
// field tier; everything else sells at the shop price.
func channelFor(t InvoiceType, customer CustomerRef) pricing.Channel {
	if customer.Wholesale {
		return pricing.ChannelWholesale
	}
	if t == TypeField {
		return pricing.ChannelField
	}
	return pricing.ChannelShop
}

// CreateInvoice prices every line through the discount cascade,
// recomputes header totals, allocates the store-scoped number and
// persists header and lines in one transaction.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (SalesInvoice, []InvoiceLine, error) {
	if len(input.Lines) == 0 {
		return SalesInvoice{}, nil, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	kind, err := sequenceKind(input.Type)
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	if err := s.masterdata.StoreExists(ctx, input.StoreID); err != nil {
		return SalesInvoice{}, nil, err
	}
	customer, err := s.masterdata.Customer(ctx, input.CustomerID)
	if err != nil {
		return SalesInvoice{}, nil, err
	}

	invoiceDate := input.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = time.Now()
	}

	lines, err := s.priceLines(ctx, input, customer, invoiceDate)
	if err != nil {
		return SalesInvoice{}, nil, err
	}

	inv := SalesInvoice{
		CustomerID:            input.CustomerID,
		StoreID:               input.StoreID,
		Type:                  input.Type,
		Status:                StatusDraft,
		InvoiceDate:           invoiceDate,
		DueDate:               input.DueDate,
		SalespersonID:         input.SalespersonID,
		Notes:                 input.Notes,
		CouponCode:            input.CouponCode,
		CreatedBy:             input.CreatedBy,
		InvoiceDiscountAmount: input.InvoiceDiscountAmount,
		OverallTaxRate:        input.OverallTaxRate,
		ShippingCharges:       input.ShippingCharges,
		OtherCharges:          input.OtherCharges,
	}
	inv, err = RecomputeTotals(inv, lines)
	if err != nil {
		return SalesInvoice{}, nil, err
	}

	number, err := s.numbers.Next(ctx, input.StoreID, kind, invoiceDate)
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	inv.Number = number

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateInvoice(ctx, inv)
		if err != nil {
			return err
		}
		inv.ID = id
		for i := range lines {
			lines[i].InvoiceID = id
			lineID, err := tx.InsertLine(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = lineID
		}
		return nil
	})
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	s.recordAudit(ctx, "INVOICE_CREATE", inv.ID, map[string]any{"number": inv.Number, "grand_total": inv.GrandTotal})
	return inv, lines, nil
}

// priceLines runs every input line through discount resolution and the
// per-line price cascade.
func (s *Service) priceLines(ctx context.Context, input CreateInvoiceInput, customer CustomerRef, asOf time.Time) ([]InvoiceLine, error) {
	channel := channelFor(input.Type, customer)
	lines := make([]InvoiceLine, 0, len(input.Lines))
	for _, in := range input.Lines {
		if in.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity must be positive", ErrValidation)
		}
		if in.LineTaxRate < 0 {
			return nil, fmt.Errorf("%w: tax rate must not be negative", ErrValidation)
		}
		product, err := s.masterdata.Product(ctx, in.ProductID)
		if err != nil {
			return nil, err
		}

		var discount *pricing.EffectiveDiscount
		if s.discounts != nil {
			discount, err = s.discounts.Resolve(ctx, pricing.ResolveInput{
				ProductID:       in.ProductID,
				Quantity:        in.Quantity,
				StoreID:         input.StoreID,
				CustomerGroupID: customer.GroupID,
				AsOf:            asOf,
				CouponCode:      input.CouponCode,
			})
			if err != nil {
				return nil, err
			}
		}

		priced, err := pricing.PriceLine(product.Tiers, channel, in.Quantity, discount, in.LineTaxRate)
		if err != nil {
			return nil, err
		}

		description := in.Description
		if description == "" {
			description = product.Name
		}
		var discountID *int64
		if discount != nil && len(discount.Adjustments) > 0 {
			id := discount.Adjustments[0].DiscountID
			discountID = &id
		}
		lines = append(lines, InvoiceLine{
			ProductID:               in.ProductID,
			Description:             description,
			UnitOfMeasure:           product.UnitOfMeasure,
			Quantity:                in.Quantity,
			UnitPriceBeforeDiscount: priced.UnitPriceBeforeDiscount,
			UnitPriceAfterDiscount:  priced.UnitPriceAfterDiscount,
			DiscountID:              discountID,
			LineSubtotal:            priced.LineSubtotal,
			LineTaxRate:             priced.LineTaxRate,
			LineTaxAmount:           priced.LineTaxAmount,
			LineTotal:               priced.LineTotal,
			CostPriceAtSale:         product.StandardCost,
		})
	}
	return lines, nil
}

// UpdateInvoiceLines replaces the line set of a draft invoice and
// recomputes header totals. Lines are immutable past draft.
func (s *Service) UpdateInvoiceLines(ctx context.Context, invoiceID int64, inputs []LineInput) (SalesInvoice, []InvoiceLine, error) {
	if len(inputs) == 0 {
		return SalesInvoice{}, nil, fmt.Errorf("%w: at least one line required", ErrValidation)
	}
	inv, _, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	if inv.Status != StatusDraft {
		return SalesInvoice{}, nil, ErrLinesImmutable
	}
	customer, err := s.masterdata.Customer(ctx, inv.CustomerID)
	if err != nil {
		return SalesInvoice{}, nil, err
	}

	// Re-pricing must carry the coupon captured at creation or
	// coupon-gated discounts silently drop off the draft.
	repriceInput := CreateInvoiceInput{
		StoreID:    inv.StoreID,
		Type:       inv.Type,
		CouponCode: inv.CouponCode,
		Lines:      inputs,
	}
	lines, err := s.priceLines(ctx, repriceInput, customer, inv.InvoiceDate)
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	inv, err = RecomputeTotals(inv, lines)
	if err != nil {
		return SalesInvoice{}, nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteLines(ctx, invoiceID); err != nil {
			return err
		}
		for i := range lines {
			lines[i].InvoiceID = invoiceID
			lineID, err := tx.InsertLine(ctx, lines[i])
			if err != nil {
				return err
			}
			lines[i].ID = lineID
		}
		return tx.UpdateTotals(ctx, inv)
	})
	if err != nil {
		return SalesInvoice{}, nil, err
	}
	return inv, lines, nil
}

// IssueInvoice moves a draft invoice to issued and raises the customer's
// receivable balance by the grand total.
func (s *Service) IssueInvoice(ctx context.Context, invoiceID int64) error {
	inv, _, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if err := ValidateInvoiceTransition(inv.Status, StatusIssued); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, invoiceID, StatusIssued)
	})
	if err != nil {
		return err
	}
	s.publishBalanceChange(ctx, inv, "ISSUE", inv.GrandTotal)
	s.recordAudit(ctx, "INVOICE_ISSUE", invoiceID, map[string]any{"number": inv.Number})
	return nil
}

// RegisterPayment applies a payment against an issued invoice. The new
// cumulative amount paid may never exceed the grand total; a settled
// invoice moves to paid, anything else to partially paid. Reads and
// writes run inside one transaction so concurrent payments against the
// same invoice serialise.
func (s *Service) RegisterPayment(ctx context.Context, invoiceID int64, amount float64) (SalesInvoice, error) {
	if amount <= 0 {
		return SalesInvoice{}, fmt.Errorf("%w: payment amount must be positive", ErrValidation)
	}

	var inv SalesInvoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, lines, err := tx.GetInvoiceForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		current.AmountPaid = pricing.Round2(current.AmountPaid + amount)
		current, err = RecomputeTotals(current, lines)
		if err != nil {
			return err
		}
		target := StatusPartiallyPaid
		if current.BalanceDue == 0 {
			target = StatusPaid
		}
		// A further partial payment keeps the invoice partially paid;
		// only genuine status changes go through the transition table.
		if target != current.Status {
			if err := ValidateInvoiceTransition(current.Status, target); err != nil {
				return err
			}
		}
		current.Status = target
		if err := tx.UpdatePayment(ctx, invoiceID, current.AmountPaid, current.BalanceDue, target); err != nil {
			return err
		}
		inv = current
		return nil
	})
	if err != nil {
		return SalesInvoice{}, err
	}
	s.publishBalanceChange(ctx, inv, fmt.Sprintf("PAY:%.2f", inv.AmountPaid), -amount)
	s.recordAudit(ctx, "INVOICE_PAYMENT", invoiceID, map[string]any{"number": inv.Number, "amount": amount, "balance_due": inv.BalanceDue})
	return inv, nil
}

// VoidInvoice voids a draft or issued invoice. An issued invoice's open
// balance is reversed on the ledger.
func (s *Service) VoidInvoice(ctx context.Context, invoiceID int64) error {
	return s.retire(ctx, invoiceID, StatusVoid, "INVOICE_VOID")
}

// CancelInvoice cancels a draft or issued invoice.
func (s *Service) CancelInvoice(ctx context.Context, invoiceID int64) error {
	return s.retire(ctx, invoiceID, StatusCancelled, "INVOICE_CANCEL")
}

func (s *Service) retire(ctx context.Context, invoiceID int64, target InvoiceStatus, auditAction string) error {
	inv, _, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if err := ValidateInvoiceTransition(inv.Status, target); err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.UpdateStatus(ctx, invoiceID, target)
	})
	if err != nil {
		return err
	}
	if inv.Status == StatusIssued && inv.BalanceDue > 0 {
		s.publishBalanceChange(ctx, inv, string(target), -inv.BalanceDue)
	}
	s.recordAudit(ctx, auditAction, invoiceID, map[string]any{"number": inv.Number})
	return nil
}

// GetInvoice loads an invoice with its lines.
func (s *Service) GetInvoice(ctx context.Context, id int64) (SalesInvoice, []InvoiceLine, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices lists invoices by filter.
func (s *Service) ListInvoices(ctx context.Context, filters ListFilters) ([]SalesInvoice, error) {
	return s.repo.ListInvoices(ctx, filters)
}

func (s *Service) publishBalanceChange(ctx context.Context, inv SalesInvoice, cause string, delta float64) {
	if s.events == nil {
		return
	}
	refID := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("INV:%d:%s", inv.ID, cause)))
	evt := BalanceChangeEvent{
		RefID:         refID.String(),
		CustomerID:    inv.CustomerID,
		InvoiceID:     inv.ID,
		InvoiceNumber: inv.Number,
		Delta:         delta,
		OccurredAt:    time.Now(),
	}
	if err := s.events.PublishBalanceChange(ctx, evt); err != nil {
		s.logger.Error("publish balance change", slog.String("number", inv.Number), slog.Any("error", err))
	}
}

func (s *Service) recordAudit(ctx context.Context, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{Action: action, Entity: shared.EntitySales, EntityID: entityID, Meta: meta})
}
