/*
Package ledger provides the core billing reconciliation engine.

PURPOSE:
  This package contains domain-agnostic types and algorithms for amending
  a bill: a set of billable line items (lab tests, procedures, products)
  plus the payments recorded against them. Whether the bill belongs to a
  lab order or an OPD visit, the same engine handles running totals,
  pending-removal bookkeeping, and minimal create/update/delete diffs
  against the last server-confirmed state.

KEY CONCEPTS IN THIS FILE (types.go):
  - LineItem: A priced billable entry (test, procedure, product)
  - PaymentEntry: A recorded payment, one per payment method
  - Baseline: The last server-confirmed ledger state (the diff reference)
  - Totals: Derived amounts (gross, discount, net, paid, balance due)
  - ItemID/PaymentID/Method: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Soft deletes: Removals are marked, reversible until submit
  3. Minimal writes: Diffs carry only what actually changed
  4. Type Safety: Strong typing prevents mixing item and payment ids

USAGE:
  rec := ledger.New(baseline, ledger.WithCatalog(catalog))
  totals, err := rec.AddItem(ledger.ItemCandidate{Name: "LFT"})
  diff, err := rec.SubmitPayload()

SEE ALSO:
  - items.go: Line item collection with add/remove/undo
  - payments.go: Payment entries and baseline classification
  - totals.go: Pure totals calculation
  - diff.go: Diff payload and round-trip application
  - reconciler.go: The per-session engine tying it together
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ItemID identifies a line item. Baseline items carry ids assigned by the
// backend; items added during an editing session carry temporary ids that
// never cross the diff boundary.
type ItemID string

// PaymentID identifies a persisted payment entry. Session-created entries
// have an empty PaymentID until the backend confirms them.
type PaymentID string

// Method is a payment method ("Cash", "UPI", ...). The engine treats the
// method list as an opaque finite set configured by the caller; it bakes in
// no method names of its own.
type Method string

// =============================================================================
// LINE ITEM - One billable entry on the bill
// =============================================================================

type LineItem struct {
	ID    ItemID
	Name  string
	Price decimal.Decimal

	// Locked marks items whose downstream state forbids removal,
	// e.g. a lab test whose report is already completed.
	Locked bool
}

// ItemCandidate is the input to AddItem. When Price is nil the price is
// defaulted from the catalog lookup, or zero if the catalog has no entry.
type ItemCandidate struct {
	Name  string
	Price *decimal.Decimal
}

// =============================================================================
// PAYMENT ENTRY - One payment per method
// =============================================================================

type PaymentEntry struct {
	// ID is set for baseline (persisted) payments and empty for entries
	// created in this session.
	ID PaymentID

	// Key is a session-local identity for UI list rendering. It is
	// assigned internally (UUID) and never emitted past the diff boundary.
	Key string

	Method Method
	Amount decimal.Decimal
}

// =============================================================================
// BASELINE - Last server-confirmed ledger state
// =============================================================================

// Baseline is the diff reference point: the ledger as the backend last
// confirmed it. It is supplied when a dialog opens and replaced wholesale
// with the canonical server response after a successful submit.
type Baseline struct {
	Items    []LineItem
	Payments []PaymentEntry
	Discount decimal.Decimal
}

// =============================================================================
// TOTALS - Derived amounts, recomputed on every mutation
// =============================================================================

// Totals is a pure value derived from the current state. It cannot fail;
// questionable states are reported through the validation flags, never by
// silently clamping amounts.
type Totals struct {
	Gross      decimal.Decimal
	Discount   decimal.Decimal
	Net        decimal.Decimal
	AmountPaid decimal.Decimal
	BalanceDue decimal.Decimal

	// DiscountExceedsGross is set when the resolved discount is greater
	// than the gross total. Net is floored at zero but the discount is
	// not truncated.
	DiscountExceedsGross bool

	// AmountExceedsPayable is set when amount paid exceeds net payable
	// (equivalently: balance due is negative). Non-fatal during editing;
	// the caller decides whether it blocks submission.
	AmountExceedsPayable bool
}

// =============================================================================
// SNAPSHOT - Immutable view of an editing session
// =============================================================================

// Snapshot is a deep-copied view of the current effective state, safe to
// hold across further mutations. UI layers diff successive snapshots to
// re-render cheaply.
type Snapshot struct {
	Items    []LineItem
	Payments []PaymentEntry
	Totals   Totals
}

// =============================================================================
// CATALOG LOOKUP - Price defaulting for new items
// =============================================================================

// PriceLookup resolves a default price for an item name. Call sites supply
// their own catalog (lab test price list, OPD service list).
type PriceLookup interface {
	// PriceFor returns the catalog price for name and whether the name
	// is known. Lookups are case-insensitive.
	PriceFor(name string) (decimal.Decimal, bool)
}

// PriceFunc adapts a function to the PriceLookup interface.
type PriceFunc func(name string) (decimal.Decimal, bool)

func (f PriceFunc) PriceFor(name string) (decimal.Decimal, bool) { return f(name) }
