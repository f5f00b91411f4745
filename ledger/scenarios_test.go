package ledger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/ledger"
)

// End-to-end session scenarios exercising the engine the way the
// front-desk dialogs drive it.

func TestScenario_AddTestToExistingOrder(t *testing.T) {
	// Baseline: one CBC at 300, no payments, no discount.
	// Adding LFT at 500 yields gross 800 and a diff with exactly one new
	// item and no removals.
	base := ledger.Baseline{
		Items: []ledger.LineItem{item("1", "CBC", 300)},
	}
	r := ledger.New(base, ledger.WithCatalog(testCatalog))

	totals, err := r.AddItem(ledger.ItemCandidate{Name: "LFT"})
	require.NoError(t, err)

	assert.True(t, totals.Gross.Equal(amt(800)))
	assert.True(t, totals.Net.Equal(amt(800)))

	d, err := r.SubmitPayload()
	require.NoError(t, err)
	require.Len(t, d.NewItems, 1)
	assert.Equal(t, "LFT", d.NewItems[0].Name)
	assert.True(t, d.NewItems[0].Price.Equal(amt(500)))
	assert.Empty(t, d.RemovedItemIDs)
}

func TestScenario_EditPaymentAndRevert(t *testing.T) {
	// Baseline payment Cash 200; setAmount 250 then back to 200 leaves
	// the updated classification empty.
	base := ledger.Baseline{
		Items:    []ledger.LineItem{item("1", "CBC", 300)},
		Payments: []ledger.PaymentEntry{payment("p1", "Cash", 200)},
	}
	r := ledger.New(base)

	_, err := r.SetAmount("Cash", amt(250))
	require.NoError(t, err)
	_, err = r.SetAmount("Cash", amt(200))
	require.NoError(t, err)

	d := r.Diff()
	assert.Empty(t, d.UpdatedPayments)
	assert.True(t, d.Empty())
}

func TestScenario_LockedOnlyItemBlocksRemoval(t *testing.T) {
	// The only item has a completed report: removal fails and the item
	// stays effective, so the order cannot be emptied through the lock.
	base := ledger.Baseline{
		Items: []ledger.LineItem{lockedItem("1", "CBC", 300)},
	}
	r := ledger.New(base)

	_, err := r.RemoveItem("1")
	assert.ErrorIs(t, err, ledger.ErrLockedItem)

	eff := r.EffectiveItems()
	require.Len(t, eff, 1)
	assert.Equal(t, ledger.ItemID("1"), eff[0].ID)
}

func TestScenario_SettledBillGoesNegativeAfterItemRemoval(t *testing.T) {
	// Fully settled bill (gross 1000, paid 1000, due 0); dropping an item
	// worth 200 without adjusting payments flags the overshoot, and the
	// flow blocks submission until the user resolves it.
	base := ledger.Baseline{
		Items: []ledger.LineItem{
			item("1", "CBC", 300),
			item("2", "MRI", 500),
			item("3", "X-Ray", 200),
		},
		Payments: []ledger.PaymentEntry{payment("p1", "Cash", 1000)},
	}
	r := ledger.New(base)

	totals := r.Totals()
	require.True(t, totals.BalanceDue.IsZero())
	require.False(t, totals.AmountExceedsPayable)

	totals, err := r.RemoveItem("3")
	require.NoError(t, err)

	assert.True(t, totals.BalanceDue.Equal(amt(-200)), "balance stays negative, never silently clamped")
	assert.True(t, totals.AmountExceedsPayable)

	// Resolving by lowering the payment clears the flag.
	totals, err = r.SetAmount("Cash", amt(800))
	require.NoError(t, err)
	assert.True(t, totals.BalanceDue.IsZero())
	assert.False(t, totals.AmountExceedsPayable)

	d, err := r.SubmitPayload()
	require.NoError(t, err)
	assert.Equal(t, []ledger.ItemID{"3"}, d.RemovedItemIDs)
	require.Len(t, d.UpdatedPayments, 1)
	assert.True(t, d.UpdatedPayments[0].Amount.Equal(amt(800)))
}

func TestScenario_PercentageDiscountResolvedAtEntry(t *testing.T) {
	// "10%" on gross 1000 resolves to 100 immediately; a later item
	// addition does not re-resolve the stored absolute amount.
	base := ledger.Baseline{
		Items: []ledger.LineItem{item("1", "MRI", 1000)},
	}
	r := ledger.New(base)

	totals := r.SetDiscount("10%")
	assert.True(t, totals.Discount.Equal(amt(100)))
	assert.True(t, totals.Net.Equal(amt(900)))

	totals, err := r.AddItem(ledger.ItemCandidate{Name: "CBC", Price: amtPtr(300)})
	require.NoError(t, err)
	assert.True(t, totals.Discount.Equal(amt(100)), "stored discount is absolute, not a live percentage")
	assert.True(t, totals.Net.Equal(amt(1200)))
}

func TestScenario_ClampModeCapsPaymentsOnDiscountIncrease(t *testing.T) {
	// The clamping variant: raising the discount caps payments down to
	// the new net payable instead of only flagging.
	base := ledger.Baseline{
		Items: []ledger.LineItem{item("1", "Consultation", 500)},
		Payments: []ledger.PaymentEntry{
			payment("p1", "Cash", 300),
			payment("p2", "UPI", 200),
		},
	}
	r := ledger.New(base, ledger.WithClampPaidToNet())

	totals := r.SetDiscount("100")

	assert.True(t, totals.Net.Equal(amt(400)))
	assert.True(t, totals.AmountPaid.Equal(amt(400)), "paid capped to net")
	assert.False(t, totals.AmountExceedsPayable)

	// The cap trims the last entry first.
	entries := r.Payments()
	require.Len(t, entries, 2)
	assert.True(t, entries[0].Amount.Equal(amt(300)))
	assert.True(t, entries[1].Amount.Equal(amt(100)))
}

func TestScenario_DefaultModeOnlyFlagsOnDiscountIncrease(t *testing.T) {
	base := ledger.Baseline{
		Items:    []ledger.LineItem{item("1", "Consultation", 500)},
		Payments: []ledger.PaymentEntry{payment("p1", "Cash", 500)},
	}
	r := ledger.New(base)

	totals := r.SetDiscount("100")

	assert.True(t, totals.AmountPaid.Equal(amt(500)), "default mode never touches payments")
	assert.True(t, totals.AmountExceedsPayable)
}

func TestScenario_FailedSubmitLeavesSessionIntact(t *testing.T) {
	// The submit boundary is external: if it fails, the session still
	// holds every pending edit and emits the same payload on retry.
	base := baselineFixture()
	r := ledger.New(base)

	_, err := r.AddItem(ledger.ItemCandidate{Name: "KFT", Price: amtPtr(450)})
	require.NoError(t, err)
	_, err = r.RemoveItem("1")
	require.NoError(t, err)

	first, err := r.SubmitPayload()
	require.NoError(t, err)

	// Pretend the network call failed; nothing was committed.
	second, err := r.SubmitPayload()
	require.NoError(t, err)
	assert.Equal(t, first, second, "retry emits the identical payload")
}
