package sales

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func taxedLine(qty, before, after, taxRate float64) InvoiceLine {
	subtotal := qty * after
	tax := subtotal * taxRate
	return InvoiceLine{
		Quantity:                qty,
		UnitPriceBeforeDiscount: before,
		UnitPriceAfterDiscount:  after,
		LineSubtotal:            subtotal,
		LineTaxRate:             taxRate,
		LineTaxAmount:           tax,
		LineTotal:               subtotal + tax,
	}
}

func TestRecomputeTotalsCascade(t *testing.T) {
	lines := []InvoiceLine{
		taxedLine(3, 100, 90, 0.15), // discounted: subtotal 270, tax 40.50
		taxedLine(2, 50, 50, 0.15),  // full price: subtotal 100, tax 15
	}
	inv, err := RecomputeTotals(SalesInvoice{ShippingCharges: 10}, lines)
	require.NoError(t, err)

	require.Equal(t, 370.00, inv.Subtotal)
	require.Equal(t, 30.00, inv.TotalProductDiscountAmount)
	require.Equal(t, 370.00, inv.TaxableAmount)
	require.Equal(t, 55.50, inv.TaxAmount)
	require.Equal(t, 435.50, inv.GrandTotal)
	require.Equal(t, 435.50, inv.BalanceDue)
}

func TestRecomputeTotalsIdempotent(t *testing.T) {
	lines := []InvoiceLine{taxedLine(3, 100, 90, 0.15)}
	header := SalesInvoice{InvoiceDiscountAmount: 20, ShippingCharges: 5, OtherCharges: 2.50}

	first, err := RecomputeTotals(header, lines)
	require.NoError(t, err)
	second, err := RecomputeTotals(first, lines)
	require.NoError(t, err)
	require.Equal(t, first.Subtotal, second.Subtotal)
	require.Equal(t, first.TaxableAmount, second.TaxableAmount)
	require.Equal(t, first.TaxAmount, second.TaxAmount)
	require.Equal(t, first.GrandTotal, second.GrandTotal)
	require.Equal(t, first.BalanceDue, second.BalanceDue)
}

func TestRecomputeTotalsInvoiceDiscountAfterProductDiscounts(t *testing.T) {
	lines := []InvoiceLine{taxedLine(4, 25, 20, 0)} // subtotal 80
	inv, err := RecomputeTotals(SalesInvoice{InvoiceDiscountAmount: 30, OverallTaxRate: 0.10}, lines)
	require.NoError(t, err)

	require.Equal(t, 80.00, inv.Subtotal)
	require.Equal(t, 20.00, inv.TotalProductDiscountAmount)
	require.Equal(t, 50.00, inv.TaxableAmount)
	require.Equal(t, 5.00, inv.TaxAmount)
	require.Equal(t, 55.00, inv.GrandTotal)
}

func TestRecomputeTotalsOverallTaxMode(t *testing.T) {
	lines := []InvoiceLine{taxedLine(2, 100, 100, 0)}
	inv, err := RecomputeTotals(SalesInvoice{OverallTaxRate: 0.15}, lines)
	require.NoError(t, err)
	require.Equal(t, 30.00, inv.TaxAmount)
	require.Equal(t, 230.00, inv.GrandTotal)
}

func TestRecomputeTotalsRejectsMixedTaxModes(t *testing.T) {
	lines := []InvoiceLine{taxedLine(1, 100, 100, 0.15)}
	_, err := RecomputeTotals(SalesInvoice{OverallTaxRate: 0.10}, lines)
	require.ErrorIs(t, err, ErrMixedTaxModes)
}

func TestRecomputeTotalsOverpayment(t *testing.T) {
	lines := []InvoiceLine{taxedLine(5, 100, 100, 0)} // grand total 500
	_, err := RecomputeTotals(SalesInvoice{AmountPaid: 600}, lines)

	var overpaid *OverpaymentError
	require.ErrorAs(t, err, &overpaid)
	require.Equal(t, 500.00, overpaid.GrandTotal)
	require.Equal(t, 600.00, overpaid.AmountPaid)
}

func TestRecomputeTotalsExactPaymentSettles(t *testing.T) {
	lines := []InvoiceLine{taxedLine(5, 100, 100, 0)}
	inv, err := RecomputeTotals(SalesInvoice{AmountPaid: 500}, lines)
	require.NoError(t, err)
	require.Equal(t, 0.00, inv.BalanceDue)
}

func TestRecomputeTotalsRejectsDiscountOverSubtotal(t *testing.T) {
	lines := []InvoiceLine{taxedLine(1, 10, 10, 0)}
	_, err := RecomputeTotals(SalesInvoice{InvoiceDiscountAmount: 11}, lines)
	require.ErrorIs(t, err, ErrValidation)
}

func TestRecomputeTotalsNegativeChargesRejected(t *testing.T) {
	_, err := RecomputeTotals(SalesInvoice{ShippingCharges: -1}, nil)
	require.ErrorIs(t, err, ErrValidation)
}

func TestLineIdentityProperties(t *testing.T) {
	line := taxedLine(3, 100, 90, 0.15)
	require.Equal(t, line.LineSubtotal+line.LineTaxAmount, line.LineTotal)
	require.Equal(t, line.Quantity*line.UnitPriceAfterDiscount, line.LineSubtotal)
}
