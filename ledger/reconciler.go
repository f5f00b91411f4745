/*
reconciler.go - Per-session billing reconciliation engine

PURPOSE:
  A Reconciler owns one bill-editing session: the baseline snapshot, the
  line item set, the payment ledger, and the resolved discount. Every
  dialog that amends a bill (lab registration, lab amendment, OPD
  registration, patient edit) holds exactly one Reconciler; no state is
  shared across instances.

DATA FLOW:
  user action -> mutation -> totals recompute -> fresh Totals returned.
  Every mutating method returns the recomputed Totals so callers render
  without a second query. Snapshot() gives a deep-copied view for diff
  rendering.

SUBMIT CONTRACT:
  - SubmitPayload() may be called repeatedly; with no intervening
    mutation it returns identical output.
  - A failed submit leaves the session untouched: the user retries
    without re-entering anything.
  - After a successful submit the caller passes the server's canonical
    ledger to Commit(), which replaces the baseline and clears every
    pending-removal and classification set.

OVERSHOOT MODES:
  By default, amount paid exceeding net payable only raises the
  AmountExceedsPayable flag; nothing is clamped. WithClampPaidToNet
  enables the variant where raising the discount caps payments down to
  the net payable (used by OPD registration).

SEE ALSO:
  - items.go, payments.go, totals.go, diff.go: The cooperating parts
  - labs/, opd/: Domain wrappers constructing configured Reconcilers
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// OPTIONS
// =============================================================================

type config struct {
	catalog   PriceLookup
	methods   []Method
	clampPaid bool
}

// Option configures a Reconciler at construction.
type Option func(*config)

// WithCatalog supplies the price-by-name lookup used to default prices of
// session-added items.
func WithCatalog(c PriceLookup) Option {
	return func(cfg *config) { cfg.catalog = c }
}

// WithMethods restricts payments to a closed, externally configured
// method set. Without it any method string is accepted.
func WithMethods(methods []Method) Option {
	return func(cfg *config) { cfg.methods = methods }
}

// WithClampPaidToNet enables the clamping overshoot mode: when a discount
// change pushes amount paid above net payable, payment entries are capped
// down (last entry first) until paid equals net.
func WithClampPaidToNet() Option {
	return func(cfg *config) { cfg.clampPaid = true }
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconciler is the engine for one isolated bill-editing session.
type Reconciler struct {
	baseline Baseline
	items    *LineItemSet
	payments *PaymentLedger
	discount decimal.Decimal // always resolved absolute
	cfg      config
}

// New builds a Reconciler over the baseline ledger snapshot.
func New(baseline Baseline, opts ...Option) *Reconciler {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	r := &Reconciler{cfg: cfg}
	r.reset(baseline)
	return r
}

func (r *Reconciler) reset(baseline Baseline) {
	r.baseline = baseline
	r.items = NewLineItemSet(baseline.Items, r.cfg.catalog)
	r.payments = NewPaymentLedger(baseline.Payments, r.cfg.methods)
	r.discount = baseline.Discount
	if r.discount.IsNegative() {
		r.discount = decimal.Zero
	}
}

// Totals recomputes the derived amounts for the current state.
func (r *Reconciler) Totals() Totals {
	return computeResolved(r.items.EffectiveItems(), r.discount, r.payments.Entries())
}

// Snapshot returns a deep-copied immutable view of the current state.
func (r *Reconciler) Snapshot() Snapshot {
	return Snapshot{
		Items:    r.items.EffectiveItems(),
		Payments: r.payments.Entries(),
		Totals:   r.Totals(),
	}
}

// =============================================================================
// ITEM OPERATIONS
// =============================================================================

// AddItem adds a session item and returns the recomputed totals.
func (r *Reconciler) AddItem(c ItemCandidate) (Totals, error) {
	if _, err := r.items.AddItem(c); err != nil {
		return r.Totals(), err
	}
	return r.Totals(), nil
}

// RemoveItem marks a baseline item for removal (or discards a session
// item). Locked items are rejected with LockedItemError.
func (r *Reconciler) RemoveItem(id ItemID) (Totals, error) {
	if err := r.items.RemoveItem(id); err != nil {
		return r.Totals(), err
	}
	return r.Totals(), nil
}

// UndoRemove reverses a pending removal. No-op for ids not pending.
func (r *Reconciler) UndoRemove(id ItemID) Totals {
	r.items.UndoRemove(id)
	return r.Totals()
}

// EffectiveItems exposes the rendered item list.
func (r *Reconciler) EffectiveItems() []LineItem {
	return r.items.EffectiveItems()
}

// =============================================================================
// PAYMENT OPERATIONS
// =============================================================================

// SetMethods reconciles payment entries against the desired method set.
func (r *Reconciler) SetMethods(methods []Method) (Totals, error) {
	if err := r.payments.SetMethods(methods); err != nil {
		return r.Totals(), err
	}
	return r.Totals(), nil
}

// SetAmount updates the amount for a method's entry. Overshoot past net
// payable is reported via the AmountExceedsPayable flag on the returned
// totals, not rejected.
func (r *Reconciler) SetAmount(method Method, amount decimal.Decimal) (Totals, error) {
	if err := r.payments.SetAmount(method, amount); err != nil {
		return r.Totals(), err
	}
	return r.Totals(), nil
}

// ChangeMethod moves an entry to a different method, preserving its
// baseline identity.
func (r *Reconciler) ChangeMethod(from, to Method) (Totals, error) {
	if err := r.payments.ChangeMethod(from, to); err != nil {
		return r.Totals(), err
	}
	return r.Totals(), nil
}

// RemovePayment drops the entry for a method.
func (r *Reconciler) RemovePayment(method Method) (Totals, error) {
	if err := r.payments.RemoveEntry(method); err != nil {
		return r.Totals(), err
	}
	return r.Totals(), nil
}

// Payments exposes the visible payment entries.
func (r *Reconciler) Payments() []PaymentEntry {
	return r.payments.Entries()
}

// =============================================================================
// DISCOUNT
// =============================================================================

// SetDiscount resolves the input ("150" or "10%") against the current
// gross and stores the absolute amount. In clamping mode, payments are
// capped down to the new net payable; otherwise overshoot only raises
// the AmountExceedsPayable flag.
func (r *Reconciler) SetDiscount(input string) Totals {
	gross := r.items.Gross()
	r.discount = ResolveDiscount(input, gross)

	if r.cfg.clampPaid {
		r.clampPaidToNet()
	}
	return r.Totals()
}

// clampPaidToNet reduces payment entries, last entry first, until amount
// paid no longer exceeds net payable.
func (r *Reconciler) clampPaidToNet() {
	t := r.Totals()
	excess := t.AmountPaid.Sub(t.Net)
	if !excess.IsPositive() {
		return
	}

	entries := r.payments.Entries()
	for i := len(entries) - 1; i >= 0 && excess.IsPositive(); i-- {
		cut := decimal.Min(entries[i].Amount, excess)
		// SetAmount cannot fail here: the clamped amount is >= 0.
		_ = r.payments.SetAmount(entries[i].Method, entries[i].Amount.Sub(cut))
		excess = excess.Sub(cut)
	}
}

// =============================================================================
// DIFF & SUBMIT
// =============================================================================

// Diff emits the current change set without submit-time validation.
// Calling it twice with no intervening mutation yields identical output.
func (r *Reconciler) Diff() Diff {
	return emitDiff(r.items, r.payments, r.Totals())
}

// SubmitPayload validates and emits the diff for submission:
//   - ErrAllItemsRemoved if the pending removals would leave zero
//     effective items (blocks submission entirely)
//   - ErrEmptyChange if neither items nor payments changed
//
// Overshoot and over-discount conditions stay on the Totals flags; the
// calling flow decides whether they block.
func (r *Reconciler) SubmitPayload() (Diff, error) {
	if len(r.items.EffectiveItems()) == 0 {
		return Diff{}, ErrAllItemsRemoved
	}
	d := r.Diff()
	if d.Empty() {
		return Diff{}, ErrEmptyChange
	}
	return d, nil
}

// Commit replaces the baseline with the server's canonical ledger after a
// successful submit and clears all pending-removal and classification
// state. The session continues against the new baseline.
func (r *Reconciler) Commit(canonical Baseline) {
	r.reset(canonical)
}

// Baseline returns the current diff reference point.
func (r *Reconciler) Baseline() Baseline {
	return r.baseline
}
