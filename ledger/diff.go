/*
diff.go - Minimal submit payload and round-trip application

PURPOSE:
  A Diff carries only what changed relative to the baseline: items to
  create, baseline item ids to remove, and the payment create/update/
  delete sets, plus the resolved discount and total amount paid. The
  backend applies it instead of receiving the whole ledger again.

NO-OP SUPPRESSION:
  A discount or payment amount touched and reverted to its original
  value produces no entry in the diff; Empty() detects the fully
  reverted session so callers can skip the backend write entirely.

ROUND-TRIP:
  Apply(baseline, diff) reproduces the edited effective state. The
  SQLite store uses the same semantics inside a SQL transaction, and
  the property tests assert the round-trip exactly.

SEE ALSO:
  - reconciler.go: Emits diffs and validates them at submit time
  - store/sqlite: Persists diffs transactionally
*/
package ledger

// =============================================================================
// DIFF - The wire-bound change set
// =============================================================================

// Diff is the minimal payload synchronizing an edited ledger back to the
// source of truth. NewItems and NewPayments carry no ids; the backend
// assigns them and returns the canonical ledger.
type Diff struct {
	NewItems          []LineItem
	RemovedItemIDs    []ItemID
	NewPayments       []PaymentEntry
	UpdatedPayments   []PaymentEntry
	DeletedPaymentIDs []PaymentID

	// Resolved absolute discount and current amount paid, carried for
	// the backend's bill header row.
	Totals Totals
}

// Empty reports whether no item or payment change occurred. Discount or
// amounts touched and reverted to baseline values still count as empty.
func (d Diff) Empty() bool {
	return len(d.NewItems) == 0 &&
		len(d.RemovedItemIDs) == 0 &&
		len(d.NewPayments) == 0 &&
		len(d.UpdatedPayments) == 0 &&
		len(d.DeletedPaymentIDs) == 0
}

// =============================================================================
// EMIT - Build a diff from the two sub-models
// =============================================================================

// emitDiff assembles the payload from the item set, the payment
// classification, and the current totals. Temporary session ids on new
// items and session keys on new payments are stripped: nothing
// session-local crosses the diff boundary.
func emitDiff(items *LineItemSet, payments *PaymentLedger, totals Totals) Diff {
	d := Diff{
		RemovedItemIDs: items.RemovedIDs(),
		Totals:         totals,
	}

	for _, it := range items.AddedItems() {
		it.ID = ""
		d.NewItems = append(d.NewItems, it)
	}

	pd := payments.Classify()
	for _, e := range pd.Created {
		e.Key = ""
		d.NewPayments = append(d.NewPayments, e)
	}
	for _, e := range pd.Updated {
		e.Key = ""
		d.UpdatedPayments = append(d.UpdatedPayments, e)
	}
	d.DeletedPaymentIDs = pd.DeletedIDs

	return d
}

// =============================================================================
// APPLY - Round-trip a diff onto a baseline
// =============================================================================

// Apply produces the ledger state that results from applying diff to
// baseline: removed items dropped, new items appended (ids left to the
// backend), payment deletes/updates/creates applied, and the discount
// replaced with the resolved value. The input baseline is not mutated.
func Apply(baseline Baseline, diff Diff) Baseline {
	removed := make(map[ItemID]bool, len(diff.RemovedItemIDs))
	for _, id := range diff.RemovedItemIDs {
		removed[id] = true
	}

	out := Baseline{Discount: diff.Totals.Discount}

	for _, it := range baseline.Items {
		if !removed[it.ID] {
			out.Items = append(out.Items, it)
		}
	}
	out.Items = append(out.Items, diff.NewItems...)

	deleted := make(map[PaymentID]bool, len(diff.DeletedPaymentIDs))
	for _, id := range diff.DeletedPaymentIDs {
		deleted[id] = true
	}
	updated := make(map[PaymentID]PaymentEntry, len(diff.UpdatedPayments))
	for _, e := range diff.UpdatedPayments {
		updated[e.ID] = e
	}

	for _, e := range baseline.Payments {
		if deleted[e.ID] {
			continue
		}
		if u, ok := updated[e.ID]; ok {
			e.Method = u.Method
			e.Amount = u.Amount
		}
		out.Payments = append(out.Payments, e)
	}
	out.Payments = append(out.Payments, diff.NewPayments...)

	return out
}
