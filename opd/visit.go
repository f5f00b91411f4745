/*
Package opd adapts the billing reconciliation engine to OPD visits.

PURPOSE:
  Out-patient registration and patient-edit dialogs amend the same kind
  of ledger as the lab dialogs, with two differences:

  1. Line items are visit charges (consultation, procedures). A charge
     already receipted to accounts is locked.
  2. The flow clamps: when a discount change pushes amount paid above
     net payable, payments are capped down to net instead of only
     raising a flag. Front-desk staff expect the paid figure to follow
     the discount here.

SEE ALSO:
  - ledger: The underlying engine and the WithClampPaidToNet option
  - labs: The non-clamping variant
*/
package opd

import (
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
)

// =============================================================================
// VISIT
// =============================================================================

// Charge is one billed service on a visit.
type Charge struct {
	ID    ledger.ItemID
	Name  string
	Price decimal.Decimal

	// Receipted charges have been posted to accounts and cannot be
	// removed from the visit.
	Receipted bool
}

// Visit is an OPD visit as loaded from the backend.
type Visit struct {
	ID        string
	PatientID string
	Charges   []Charge
	Payments  []ledger.PaymentEntry
	Discount  decimal.Decimal
}

// Baseline maps the visit to a ledger baseline. Receipted charges become
// locked line items.
func (v Visit) Baseline() ledger.Baseline {
	b := ledger.Baseline{Discount: v.Discount}
	for _, c := range v.Charges {
		b.Items = append(b.Items, ledger.LineItem{
			ID:     c.ID,
			Name:   c.Name,
			Price:  c.Price,
			Locked: c.Receipted,
		})
	}
	b.Payments = append(b.Payments, v.Payments...)
	return b
}

// =============================================================================
// SESSION CONSTRUCTORS
// =============================================================================

// NewRegistration starts a session for a new OPD visit.
func NewRegistration(catalog ledger.PriceLookup, methods []ledger.Method) *ledger.Reconciler {
	return ledger.New(ledger.Baseline{},
		ledger.WithCatalog(catalog),
		ledger.WithMethods(methods),
		ledger.WithClampPaidToNet(),
	)
}

// NewAmendment starts a session editing an existing visit (the patient
// edit dialog uses the same construction).
func NewAmendment(v Visit, catalog ledger.PriceLookup, methods []ledger.Method) *ledger.Reconciler {
	return ledger.New(v.Baseline(),
		ledger.WithCatalog(catalog),
		ledger.WithMethods(methods),
		ledger.WithClampPaidToNet(),
	)
}
