package procurement

import "github.com/atlas-retail/atlas-erp/internal/shared"

// poMachine is the purchase order transition table. Cancellation is
// reachable from every state before goods have been fully received; the
// receiving pair may flip in both directions because over-receipt
// corrections can move an order back to partially received.
var poMachine = shared.StateMachine{
	Document: "purchase_order",
	Transitions: map[string][]string{
		string(POStatusDraft):             {string(POStatusPendingApproval), string(POStatusCancelled)},
		string(POStatusPendingApproval):   {string(POStatusApproved), string(POStatusCancelled)},
		string(POStatusApproved):          {string(POStatusSentToSupplier), string(POStatusCancelled)},
		string(POStatusSentToSupplier):    {string(POStatusPartiallyReceived), string(POStatusFullyReceived), string(POStatusCancelled)},
		string(POStatusPartiallyReceived): {string(POStatusFullyReceived), string(POStatusClosed), string(POStatusCancelled)},
		string(POStatusFullyReceived):     {string(POStatusPartiallyReceived), string(POStatusClosed)},
	},
}

// grnMachine: a posted GRN is immutable; reversal requires a compensating
// document, never a backward transition.
var grnMachine = shared.StateMachine{
	Document: "goods_receipt_note",
	Transitions: map[string][]string{
		string(GRNStatusDraft): {string(GRNStatusPosted), string(GRNStatusCancelled)},
	},
}

// ValidatePOTransition checks a purchase order status change.
func ValidatePOTransition(from, to POStatus) error {
	return poMachine.Validate(string(from), string(to))
}

// ValidateGRNTransition checks a goods receipt status change.
func ValidateGRNTransition(from, to GRNStatus) error {
	return grnMachine.Validate(string(from), string(to))
}
