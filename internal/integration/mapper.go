package integration

import (
	"github.com/atlas-retail/atlas-erp/internal/procurement"
	"github.com/atlas-retail/atlas-erp/internal/sales"
	"github.com/atlas-retail/atlas-erp/jobs"
)

func stockIncreasePayload(evt procurement.GRNPostedEvent) jobs.StockIncreasePayload {
	lines := make([]jobs.StockLinePayload, 0, len(evt.Lines))
	for _, line := range evt.Lines {
		lines = append(lines, jobs.StockLinePayload{
			RefID:       line.RefID,
			ProductID:   line.ProductID,
			StoreID:     line.StoreID,
			Quantity:    line.Quantity,
			UnitCost:    line.UnitCost,
			BatchNumber: line.BatchNumber,
			ExpiryDate:  line.ExpiryDate,
		})
	}
	return jobs.StockIncreasePayload{
		GRNID:      evt.GRNID,
		Number:     evt.Number,
		StoreID:    evt.StoreID,
		SupplierID: evt.SupplierID,
		PostedAt:   evt.PostedAt,
		Lines:      lines,
	}
}

func balanceChangePayload(evt sales.BalanceChangeEvent) jobs.BalanceChangePayload {
	return jobs.BalanceChangePayload{
		RefID:         evt.RefID,
		CustomerID:    evt.CustomerID,
		InvoiceID:     evt.InvoiceID,
		InvoiceNumber: evt.InvoiceNumber,
		Delta:         evt.Delta,
		OccurredAt:    evt.OccurredAt,
	}
}
