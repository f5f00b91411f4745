/*
Package labs adapts the billing reconciliation engine to lab orders.

PURPOSE:
  Wraps the generic ledger engine with the lab-specific rules used by the
  registration and amendment dialogs:

  INVARIANT: A test whose report is already completed cannot be removed
  from the order. The report exists; the charge stands.

  The generic engine knows nothing about reports. It only understands a
  "locked" line item; this package decides which tests are locked based
  on their report status.

OVERSHOOT:
  Lab flows use the default (non-clamping) mode: if a discount change
  leaves payments above net payable, the dialog shows the flag and the
  cashier adjusts payments by hand.

USAGE:
  rec := labs.NewAmendment(order, catalog, methods)
  totals, err := rec.AddItem(ledger.ItemCandidate{Name: "LFT"})

SEE ALSO:
  - ledger: The underlying engine
  - opd: The clamping variant used by OPD registration
*/
package labs

import (
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// REPORT STATUS
// =============================================================================

// ReportStatus is the downstream processing state of one lab test.
type ReportStatus string

const (
	ReportPending   ReportStatus = "pending"   // ordered, sample not yet taken
	ReportSampled   ReportStatus = "sampled"   // sample collected, result pending
	ReportCompleted ReportStatus = "completed" // result published; test is immutable
)

// Removable reports whether a test in this state may still be taken off
// the order.
func (s ReportStatus) Removable() bool {
	return s != ReportCompleted
}

// =============================================================================
// LAB ORDER
// =============================================================================

// LabTest is one ordered test with its billing price and report state.
type LabTest struct {
	ID     ledger.ItemID
	Name   string
	Price  decimal.Decimal
	Status ReportStatus
}

// Order is a lab order as loaded from the backend: the diff baseline for
// an amendment session.
type Order struct {
	ID        string
	PatientID string
	Tests     []LabTest
	Payments  []ledger.PaymentEntry
	Discount  decimal.Decimal
}

// Baseline maps the order to a ledger baseline. Completed tests become
// locked line items.
func (o Order) Baseline() ledger.Baseline {
	b := ledger.Baseline{Discount: o.Discount}
	for _, tst := range o.Tests {
		b.Items = append(b.Items, ledger.LineItem{
			ID:     tst.ID,
			Name:   tst.Name,
			Price:  tst.Price,
			Locked: !tst.Status.Removable(),
		})
	}
	b.Payments = append(b.Payments, o.Payments...)
	return b
}

// =============================================================================
// SESSION CONSTRUCTORS
// =============================================================================

// NewRegistration starts a session for a brand-new lab order: empty
// baseline, every item and payment will be a create.
func NewRegistration(catalog ledger.PriceLookup, methods []ledger.Method) *ledger.Reconciler {
	return ledger.New(ledger.Baseline{},
		ledger.WithCatalog(catalog),
		ledger.WithMethods(methods),
	)
}

// NewAmendment starts a session amending an existing order.
func NewAmendment(o Order, catalog ledger.PriceLookup, methods []ledger.Method) *ledger.Reconciler {
	return ledger.New(o.Baseline(),
		ledger.WithCatalog(catalog),
		ledger.WithMethods(methods),
	)
}
