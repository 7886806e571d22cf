package procurement

import "github.com/atlas-retail/atlas-erp/internal/pricing"

// RecomputePOTotals folds line totals into the header. It is pure and
// idempotent; the service reruns it after every line edit in draft.
func RecomputePOTotals(po PurchaseOrder, lines []POLine) PurchaseOrder {
	var subtotal float64
	for _, line := range lines {
		subtotal += line.LineTotal
	}
	po.Subtotal = pricing.Round2(subtotal)
	po.TotalAmount = pricing.Round2(po.Subtotal + po.TaxAmount + po.ShippingCost + po.OtherCharges)
	return po
}

// priceLine fills the derived LineTotal on an order line.
func priceLine(line POLine) POLine {
	line.LineTotal = pricing.Round2(line.QuantityOrdered * line.UnitPrice)
	return line
}
