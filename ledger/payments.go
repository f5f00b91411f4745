/*
payments.go - Payment entries with baseline classification

PURPOSE:
  PaymentLedger owns the payment entries recorded against one bill and
  classifies every entry against the baseline for diffing: unchanged,
  created, updated, or deleted. Amount paid is always the sum of the
  visible entries, so it can never drift from entry contents.

INVARIANTS:
  1. Exactly one entry per method at a time; selecting a method already
     present edits that entry rather than duplicating it
  2. A baseline entry removed in session lands in the deletion set;
     a session-only entry removed in session is simply discarded
  3. An entry edited and then reverted to its baseline method+amount is
     NOT classified as updated (no redundant no-op writes)

SESSION KEYS:
  Entries carry a session-local UUID key for UI list identity. Keys are
  internal: they never appear in diffs and never reach the backend.

SEE ALSO:
  - diff.go: PaymentDiff consumed by the submit payload
  - totals.go: AmountPaid feeding balance due
*/
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// PAYMENT LEDGER
// =============================================================================

// PaymentLedger maintains payment entries for one bill.
type PaymentLedger struct {
	baseline map[PaymentID]PaymentEntry
	entries  []PaymentEntry // visible entries, one per method
	deleted  map[PaymentID]bool
	allowed  []Method // closed method set; empty = unrestricted
}

// NewPaymentLedger builds a ledger over the baseline payments. allowed is
// the externally configured method enumeration; pass nil to accept any
// method (used by tests and trusted callers).
func NewPaymentLedger(baseline []PaymentEntry, allowed []Method) *PaymentLedger {
	p := &PaymentLedger{
		baseline: make(map[PaymentID]PaymentEntry, len(baseline)),
		deleted:  make(map[PaymentID]bool),
		allowed:  allowed,
	}
	for _, e := range baseline {
		e.Key = uuid.NewString()
		p.baseline[e.ID] = e
		p.entries = append(p.entries, e)
	}
	return p
}

// SetMethods reconciles the visible entries against the desired method
// set from a multi-select control: entries for methods still present keep
// their amounts, entries for dropped methods are removed (baseline ids go
// to the deletion set), and newly selected methods get zero-amount
// entries. Idempotent under repeated identical input.
func (p *PaymentLedger) SetMethods(desired []Method) error {
	for _, m := range desired {
		if !p.methodAllowed(m) {
			return fmt.Errorf("%w: %s", ErrUnknownMethod, m)
		}
	}

	want := make(map[Method]bool, len(desired))
	for _, m := range desired {
		want[m] = true
	}

	// Drop entries whose method is no longer selected.
	kept := p.entries[:0]
	for _, e := range p.entries {
		if want[e.Method] {
			kept = append(kept, e)
			continue
		}
		if e.ID != "" {
			p.deleted[e.ID] = true
		}
	}
	p.entries = kept

	// Create zero-amount entries for newly selected methods.
	for _, m := range desired {
		if _, ok := p.find(m); !ok {
			p.entries = append(p.entries, PaymentEntry{
				Key:    uuid.NewString(),
				Method: m,
				Amount: decimal.Zero,
			})
		}
	}
	return nil
}

// SetAmount updates the entry for method. Negative amounts are rejected
// with InvalidAmountError before any state changes. Overshoot past net
// payable is not checked here: that is a totals-level flag the caller
// interprets (some flows tolerate transient overshoot while a discount
// adjustment is in progress).
func (p *PaymentLedger) SetAmount(method Method, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return &InvalidAmountError{Method: method, Amount: amount}
	}
	i, ok := p.find(method)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPaymentNotFound, method)
	}
	p.entries[i].Amount = amount
	return nil
}

// ChangeMethod moves an entry from one method to another, preserving its
// identity (and so its baseline id, if any). Rejected if the target
// method already has an entry or is outside the configured set.
func (p *PaymentLedger) ChangeMethod(from, to Method) error {
	if !p.methodAllowed(to) {
		return fmt.Errorf("%w: %s", ErrUnknownMethod, to)
	}
	if _, ok := p.find(to); ok {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, to)
	}
	i, ok := p.find(from)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPaymentNotFound, from)
	}
	p.entries[i].Method = to
	return nil
}

// RemoveEntry drops the entry for method. A baseline entry is recorded in
// the deletion set; a session-only entry is discarded without trace.
func (p *PaymentLedger) RemoveEntry(method Method) error {
	i, ok := p.find(method)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPaymentNotFound, method)
	}
	if id := p.entries[i].ID; id != "" {
		p.deleted[id] = true
	}
	p.entries = append(p.entries[:i], p.entries[i+1:]...)
	return nil
}

// Entries returns a copy of the visible entries in stable order.
func (p *PaymentLedger) Entries() []PaymentEntry {
	out := make([]PaymentEntry, len(p.entries))
	copy(out, p.entries)
	return out
}

// AmountPaid sums the visible entry amounts.
func (p *PaymentLedger) AmountPaid() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range p.entries {
		sum = sum.Add(e.Amount)
	}
	return sum
}

// =============================================================================
// CLASSIFICATION - created / updated / deleted vs. baseline
// =============================================================================

// PaymentDiff is the disjoint classification of the current entries
// against the baseline.
type PaymentDiff struct {
	Created    []PaymentEntry // no id yet
	Updated    []PaymentEntry // id present, method or amount differs
	DeletedIDs []PaymentID    // baseline ids removed in session
}

// Empty reports whether no payment change occurred.
func (d PaymentDiff) Empty() bool {
	return len(d.Created) == 0 && len(d.Updated) == 0 && len(d.DeletedIDs) == 0
}

// Classify compares the current entries with the baseline. An entry whose
// edited method and amount exactly match its baseline is excluded from
// Updated even if it was touched and reverted.
func (p *PaymentLedger) Classify() PaymentDiff {
	var d PaymentDiff
	for _, e := range p.entries {
		if e.ID == "" {
			d.Created = append(d.Created, e)
			continue
		}
		base := p.baseline[e.ID]
		if e.Method != base.Method || !e.Amount.Equal(base.Amount) {
			d.Updated = append(d.Updated, e)
		}
	}
	// Deletion set in baseline order for deterministic output.
	for _, base := range p.baselineOrdered() {
		if p.deleted[base.ID] {
			d.DeletedIDs = append(d.DeletedIDs, base.ID)
		}
	}
	return d
}

func (p *PaymentLedger) baselineOrdered() []PaymentEntry {
	out := make([]PaymentEntry, 0, len(p.baseline))
	for _, e := range p.baseline {
		out = append(out, e)
	}
	// Map iteration order is random; sort by id for stability.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].ID < out[j-1].ID; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func (p *PaymentLedger) find(method Method) (int, bool) {
	for i, e := range p.entries {
		if e.Method == method {
			return i, true
		}
	}
	return 0, false
}

func (p *PaymentLedger) methodAllowed(m Method) bool {
	if len(p.allowed) == 0 {
		return true
	}
	for _, a := range p.allowed {
		if a == m {
			return true
		}
	}
	return false
}
