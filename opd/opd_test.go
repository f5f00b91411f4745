package opd_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/opd"
)

var methods = []ledger.Method{"Cash", "UPI", "Card"}

func visit() opd.Visit {
	return opd.Visit{
		ID:        "visit-1",
		PatientID: "pat-4",
		Charges: []opd.Charge{
			{ID: "c1", Name: "Consultation", Price: decimal.NewFromInt(400), Receipted: true},
			{ID: "c2", Name: "Dressing", Price: decimal.NewFromInt(150)},
		},
		Payments: []ledger.PaymentEntry{
			{ID: "p1", Method: "Cash", Amount: decimal.NewFromInt(550)},
		},
	}
}

func TestBaseline_ReceiptedChargeIsLocked(t *testing.T) {
	b := visit().Baseline()

	require.Len(t, b.Items, 2)
	assert.True(t, b.Items[0].Locked)
	assert.False(t, b.Items[1].Locked)
}

func TestAmendment_DiscountChangeClampsPaidToNet(t *testing.T) {
	// Visit fully settled at 550; a 100 discount brings net to 450 and
	// the OPD flow caps the payment down with it.
	rec := opd.NewAmendment(visit(), nil, methods)

	totals := rec.SetDiscount("100")

	assert.True(t, totals.Net.Equal(decimal.NewFromInt(450)))
	assert.True(t, totals.AmountPaid.Equal(decimal.NewFromInt(450)), "paid follows the discount")
	assert.False(t, totals.AmountExceedsPayable)
	assert.True(t, totals.BalanceDue.IsZero())
}

func TestAmendment_ClampEmitsPaymentUpdate(t *testing.T) {
	rec := opd.NewAmendment(visit(), nil, methods)
	rec.SetDiscount("100")

	d, err := rec.SubmitPayload()
	require.NoError(t, err)
	require.Len(t, d.UpdatedPayments, 1)
	assert.Equal(t, ledger.PaymentID("p1"), d.UpdatedPayments[0].ID)
	assert.True(t, d.UpdatedPayments[0].Amount.Equal(decimal.NewFromInt(450)))
}

func TestAmendment_CannotRemoveReceiptedCharge(t *testing.T) {
	rec := opd.NewAmendment(visit(), nil, methods)

	_, err := rec.RemoveItem("c1")
	assert.ErrorIs(t, err, ledger.ErrLockedItem)
}
