/*
totals.go - Pure totals calculation

PURPOSE:
  Derives gross, discount, net, amount paid, and balance due from the
  current items and payments. Pure arithmetic over small collections:
  cheap enough to recompute on every keystroke, no I/O, no mutation,
  cannot fail. Questionable states (discount over gross, paid over net)
  surface as flags on the Totals value, never as silent clamping.

DISCOUNT INPUT:
  The discount is entered either as an absolute amount ("150") or as a
  percentage ("10%"). Percentages are resolved against the gross at the
  moment of entry and stored as an absolute amount from then on -
  percentage is an input mode, not persisted state. A later change to
  gross does not re-resolve an earlier percentage entry.

SEE ALSO:
  - reconciler.go: Resolves and stores the absolute discount
*/
package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// =============================================================================
// DISCOUNT RESOLUTION
// =============================================================================

// ResolveDiscount turns a discount input string into an absolute amount.
// "10%" resolves to gross * 10 / 100 rounded to 2 places; any other input
// is parsed as an absolute amount. Unparseable or negative input resolves
// to zero.
func ResolveDiscount(input string, gross decimal.Decimal) decimal.Decimal {
	s := strings.TrimSpace(input)
	if s == "" {
		return decimal.Zero
	}

	if strings.HasSuffix(s, "%") {
		pct, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(s, "%")))
		if err != nil || pct.IsNegative() {
			return decimal.Zero
		}
		return gross.Mul(pct).Div(hundred).Round(2)
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// TOTALS CALCULATION
// =============================================================================

// Compute derives totals from an effective item list, a discount input
// string, and the visible payment entries.
func Compute(items []LineItem, discountInput string, payments []PaymentEntry) Totals {
	gross := decimal.Zero
	for _, it := range items {
		gross = gross.Add(it.Price)
	}
	return computeResolved(items, ResolveDiscount(discountInput, gross), payments)
}

// computeResolved is the engine-internal variant over an already resolved
// absolute discount.
func computeResolved(items []LineItem, discount decimal.Decimal, payments []PaymentEntry) Totals {
	gross := decimal.Zero
	for _, it := range items {
		gross = gross.Add(it.Price)
	}

	paid := decimal.Zero
	for _, e := range payments {
		paid = paid.Add(e.Amount)
	}

	net := gross.Sub(discount)
	if net.IsNegative() {
		net = decimal.Zero
	}

	return Totals{
		Gross:                gross,
		Discount:             discount,
		Net:                  net,
		AmountPaid:           paid,
		BalanceDue:           net.Sub(paid),
		DiscountExceedsGross: discount.GreaterThan(gross),
		AmountExceedsPayable: paid.GreaterThan(net),
	}
}
