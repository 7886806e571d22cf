package sales

import (
	"fmt"

	"github.com/atlas-retail/atlas-erp/internal/pricing"
)

// RecomputeTotals folds the line set into the header money cascade. It is
// a pure function over the current line state and idempotent: running it
// twice yields identical totals. The header-level invoice discount is
// applied after product-level line discounts. Tax comes either from the
// lines or from the header's overall rate, never both.
//
// Fails with *OverpaymentError when amountPaid exceeds the recomputed
// grand total; the prior header state stays untouched.
func RecomputeTotals(inv SalesInvoice, lines []InvoiceLine) (SalesInvoice, error) {
	if inv.InvoiceDiscountAmount < 0 || inv.ShippingCharges < 0 || inv.OtherCharges < 0 {
		return SalesInvoice{}, fmt.Errorf("%w: charges must not be negative", ErrValidation)
	}

	var subtotal, productDiscount, lineTax float64
	lineTaxed := false
	for _, line := range lines {
		subtotal += line.LineSubtotal
		productDiscount += pricing.Round2((line.UnitPriceBeforeDiscount - line.UnitPriceAfterDiscount) * line.Quantity)
		lineTax += line.LineTaxAmount
		if line.LineTaxRate != 0 {
			lineTaxed = true
		}
	}
	subtotal = pricing.Round2(subtotal)
	productDiscount = pricing.Round2(productDiscount)

	if lineTaxed && inv.OverallTaxRate != 0 {
		return SalesInvoice{}, ErrMixedTaxModes
	}
	if inv.InvoiceDiscountAmount > subtotal {
		return SalesInvoice{}, fmt.Errorf("%w: invoice discount exceeds subtotal", ErrValidation)
	}

	taxable := pricing.Round2(subtotal - inv.InvoiceDiscountAmount)
	var tax float64
	if lineTaxed {
		tax = pricing.Round2(lineTax)
	} else {
		tax = pricing.Round2(taxable * inv.OverallTaxRate)
	}

	grand := pricing.Round2(taxable + tax + inv.ShippingCharges + inv.OtherCharges)
	if inv.AmountPaid > grand {
		return SalesInvoice{}, &OverpaymentError{GrandTotal: grand, AmountPaid: inv.AmountPaid}
	}

	inv.Subtotal = subtotal
	inv.TotalProductDiscountAmount = productDiscount
	inv.TaxableAmount = taxable
	inv.TaxAmount = tax
	inv.GrandTotal = grand
	inv.BalanceDue = pricing.Round2(grand - inv.AmountPaid)
	return inv, nil
}
