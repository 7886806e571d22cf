package sales

import "github.com/atlas-retail/atlas-erp/internal/shared"

// invoiceMachine is the sales invoice transition table. Void and
// cancellation are reachable from draft and issued only; a paid invoice
// is corrected through a credit note, never a backward transition. The
// payment pair flips both ways because payment reversals can reopen a
// settled invoice.
var invoiceMachine = shared.StateMachine{
	Document: "sales_invoice",
	Transitions: map[string][]string{
		string(StatusDraft):         {string(StatusIssued), string(StatusVoid), string(StatusCancelled)},
		string(StatusIssued):        {string(StatusPartiallyPaid), string(StatusPaid), string(StatusVoid), string(StatusCancelled)},
		string(StatusPartiallyPaid): {string(StatusPaid)},
		string(StatusPaid):          {string(StatusPartiallyPaid)},
	},
}

// ValidateInvoiceTransition checks a sales invoice status change.
func ValidateInvoiceTransition(from, to InvoiceStatus) error {
	return invoiceMachine.Validate(string(from), string(to))
}
