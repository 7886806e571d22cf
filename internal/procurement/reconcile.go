package procurement

// qtyEpsilon absorbs float accumulation noise in quantity comparisons.
const qtyEpsilon = 1e-9

// LineDelta is the receipt increment applied to one PO line.
type LineDelta struct {
	POLineID    int64
	Delta       float64
	FromVersion int64
	OverReceipt bool
}

// ReconciliationResult reports the outcome of applying a receipt.
// OverReceipt is a warning, not a failure: suppliers may over-ship, and
// the caller routes flagged results to approval workflows.
type ReconciliationResult struct {
	OverReceipt      bool
	OverReceiptLines []int64
	Deltas           []LineDelta
	POStatus         POStatus
	POStatusChanged  bool
}

// ApplyReceipt validates a goods receipt against its optional purchase
// order and computes the quantity increments and resulting PO status.
// It is pure: callers persist the deltas under the document transaction.
func ApplyReceipt(po *PurchaseOrder, poLines []POLine, grnLines []GRNLine) (ReconciliationResult, error) {
	var result ReconciliationResult

	for _, line := range grnLines {
		if line.QuantityReceived <= 0 {
			return ReconciliationResult{}, ErrValidation
		}
		if line.QuantityAccepted < 0 || line.QuantityRejected < 0 {
			return ReconciliationResult{}, ErrValidation
		}
		if line.QuantityAccepted+line.QuantityRejected > line.QuantityReceived+qtyEpsilon {
			return ReconciliationResult{}, ErrInvalidAcceptRejectSplit
		}
	}

	if po == nil {
		return result, nil
	}

	byID := make(map[int64]*POLine, len(poLines))
	for i := range poLines {
		byID[poLines[i].ID] = &poLines[i]
	}

	received := make(map[int64]float64, len(poLines))
	for _, line := range grnLines {
		if line.POLineID == nil {
			continue
		}
		target, ok := byID[*line.POLineID]
		if !ok {
			return ReconciliationResult{}, ErrNotFound
		}
		received[target.ID] += line.QuantityReceived
	}

	// Walk PO lines in order so deltas come out deterministic.
	for i := range poLines {
		target := &poLines[i]
		delta, ok := received[target.ID]
		if !ok {
			continue
		}
		cumulative := target.QuantityReceived + delta
		over := cumulative > target.QuantityOrdered+qtyEpsilon
		result.Deltas = append(result.Deltas, LineDelta{
			POLineID:    target.ID,
			Delta:       delta,
			FromVersion: target.Version,
			OverReceipt: over,
		})
		if over {
			result.OverReceipt = true
			result.OverReceiptLines = append(result.OverReceiptLines, target.ID)
		}
		target.QuantityReceived = cumulative
	}

	result.POStatus = recomputePOStatus(po.Status, poLines)
	result.POStatusChanged = result.POStatus != po.Status
	return result, nil
}

// recomputePOStatus derives the receiving status from line state:
// fully received when every line satisfied, partially received when some
// quantity landed but not all lines are satisfied, otherwise unchanged.
func recomputePOStatus(current POStatus, lines []POLine) POStatus {
	if len(lines) == 0 {
		return current
	}
	allSatisfied := true
	anyReceived := false
	for _, line := range lines {
		if line.QuantityReceived > qtyEpsilon {
			anyReceived = true
		}
		if line.QuantityReceived+qtyEpsilon < line.QuantityOrdered {
			allSatisfied = false
		}
	}
	switch {
	case allSatisfied:
		return POStatusFullyReceived
	case anyReceived:
		return POStatusPartiallyReceived
	default:
		return current
	}
}
