package labs_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/labs"
	"github.com/warp/billing-engine/ledger"
)

var methods = []ledger.Method{"Cash", "UPI", "Card"}

var catalog = ledger.PriceFunc(func(name string) (decimal.Decimal, bool) {
	if name == "LFT" {
		return decimal.NewFromInt(500), true
	}
	return decimal.Decimal{}, false
})

func order() labs.Order {
	return labs.Order{
		ID:        "order-1",
		PatientID: "pat-9",
		Tests: []labs.LabTest{
			{ID: "t1", Name: "CBC", Price: decimal.NewFromInt(300), Status: labs.ReportCompleted},
			{ID: "t2", Name: "KFT", Price: decimal.NewFromInt(450), Status: labs.ReportPending},
		},
		Payments: []ledger.PaymentEntry{
			{ID: "p1", Method: "Cash", Amount: decimal.NewFromInt(200)},
		},
	}
}

func TestBaseline_CompletedReportLocksTest(t *testing.T) {
	b := order().Baseline()

	require.Len(t, b.Items, 2)
	assert.True(t, b.Items[0].Locked, "completed report locks the test")
	assert.False(t, b.Items[1].Locked)
}

func TestAmendment_CannotRemoveCompletedTest(t *testing.T) {
	rec := labs.NewAmendment(order(), catalog, methods)

	_, err := rec.RemoveItem("t1")
	assert.ErrorIs(t, err, ledger.ErrLockedItem)

	_, err = rec.RemoveItem("t2")
	assert.NoError(t, err, "pending report may still be removed")
}

func TestAmendment_DiscountOvershootIsFlaggedNotClamped(t *testing.T) {
	rec := labs.NewAmendment(order(), catalog, methods)

	_, err := rec.SetAmount("Cash", decimal.NewFromInt(750))
	require.NoError(t, err)

	totals := rec.SetDiscount("200")
	assert.True(t, totals.AmountExceedsPayable)
	assert.True(t, totals.AmountPaid.Equal(decimal.NewFromInt(750)), "lab flow never clamps")
}

func TestRegistration_RequiresAtLeastOneTest(t *testing.T) {
	rec := labs.NewRegistration(catalog, methods)

	_, err := rec.SubmitPayload()
	assert.ErrorIs(t, err, ledger.ErrAllItemsRemoved)

	_, err = rec.AddItem(ledger.ItemCandidate{Name: "LFT"})
	require.NoError(t, err)

	d, err := rec.SubmitPayload()
	require.NoError(t, err)
	require.Len(t, d.NewItems, 1)
	assert.True(t, d.NewItems[0].Price.Equal(decimal.NewFromInt(500)), "price defaulted from catalog")
}

func TestRegistration_MethodsOutsideEnumerationRejected(t *testing.T) {
	rec := labs.NewRegistration(catalog, methods)

	_, err := rec.SetMethods([]ledger.Method{"Cheque"})
	assert.ErrorIs(t, err, ledger.ErrUnknownMethod)
}
