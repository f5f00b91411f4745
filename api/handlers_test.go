/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Bill creation (catalog defaulting, validation)
- Preview (diff + blockers without persistence)
- Submit (diff application, validation failures)
- Catalog endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/store/sqlite"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	catalog, err := factory.ParseCatalog(factory.DefaultCatalogJSON())
	require.NoError(t, err)

	return NewRouter(NewHandler(store, catalog))
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), "body: %s", rr.Body.String())
	return v
}

func createBill(t *testing.T, router http.Handler, req CreateBillRequest) BillDTO {
	t.Helper()
	rr := doJSON(t, router, http.MethodPost, "/api/bills", req)
	require.Equal(t, http.StatusCreated, rr.Code, "body: %s", rr.Body.String())
	return decode[BillDTO](t, rr)
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreateBill_CatalogDefaultsAndTotals(t *testing.T) {
	router := newTestRouter(t)

	bill := createBill(t, router, CreateBillRequest{
		PatientID: "pat-1",
		Items:     []EditItemDTO{{Name: "CBC"}, {Name: "LFT"}},
		Payments:  []EditPaymentDTO{{Method: "Cash", Amount: 200}},
		Discount:  "10%",
	})

	assert.NotEmpty(t, bill.ID)
	assert.Equal(t, "lab", bill.Kind)
	require.Len(t, bill.Items, 2)
	for _, it := range bill.Items {
		assert.NotEmpty(t, it.ID, "store assigns item ids")
	}

	assert.Equal(t, 800.0, bill.Totals.Gross)
	assert.Equal(t, 80.0, bill.Totals.Discount, "percentage resolved at creation")
	assert.Equal(t, 720.0, bill.Totals.Net)
	assert.Equal(t, 200.0, bill.Totals.AmountPaid)
	assert.Equal(t, 520.0, bill.Totals.BalanceDue)
}

func TestCreateBill_RejectsUnknownPaymentMethod(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/bills", CreateBillRequest{
		PatientID: "pat-1",
		Items:     []EditItemDTO{{Name: "CBC"}},
		Payments:  []EditPaymentDTO{{Method: "Cheque", Amount: 100}},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateBill_RejectsEmptyItems(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/bills", CreateBillRequest{PatientID: "pat-1"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateBill_RejectsUnknownKind(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/bills", CreateBillRequest{
		PatientID: "pat-1",
		Kind:      "pharmacy",
		Items:     []EditItemDTO{{Name: "CBC"}},
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGetBill_NotFound(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/api/bills/no-such-bill", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =============================================================================
// PREVIEW
// =============================================================================

func editState(bill BillDTO) EditStateRequest {
	var req EditStateRequest
	for _, it := range bill.Items {
		price := it.Price
		req.Items = append(req.Items, EditItemDTO{ID: it.ID, Name: it.Name, Price: &price})
	}
	for _, p := range bill.Payments {
		req.Payments = append(req.Payments, EditPaymentDTO{ID: p.ID, Method: p.Method, Amount: p.Amount})
	}
	return req
}

func TestPreview_UntouchedStateCannotSubmit(t *testing.T) {
	router := newTestRouter(t)
	bill := createBill(t, router, CreateBillRequest{
		PatientID: "pat-1",
		Items:     []EditItemDTO{{Name: "CBC"}},
	})

	rr := doJSON(t, router, http.MethodPost, "/api/bills/"+bill.ID+"/preview", editState(bill))
	require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())

	preview := decode[PreviewResponse](t, rr)
	assert.False(t, preview.CanSubmit)
	assert.NotEmpty(t, preview.Blockers)
	assert.Empty(t, preview.Diff.NewItems)
	assert.Empty(t, preview.Diff.RemovedItemIDs)
}

func TestPreview_AddedItemShowsInDiffWithoutPersisting(t *testing.T) {
	router := newTestRouter(t)
	bill := createBill(t, router, CreateBillRequest{
		PatientID: "pat-1",
		Items:     []EditItemDTO{{Name: "CBC"}},
	})

	state := editState(bill)
	state.Items = append(state.Items, EditItemDTO{Name: "LFT"})

	rr := doJSON(t, router, http.MethodPost, "/api/bills/"+bill.ID+"/preview", state)
	require.Equal(t, http.StatusOK, rr.Code)

	preview := decode[PreviewResponse](t, rr)
	assert.True(t, preview.CanSubmit)
	require.Len(t, preview.Diff.NewItems, 1)
	assert.Equal(t, "LFT", preview.Diff.NewItems[0].Name)
	assert.Empty(t, preview.Diff.NewItems[0].ID, "session items carry no id on the wire")
	assert.Equal(t, 800.0, preview.Totals.Gross)

	// Preview never persists.
	rr = doJSON(t, router, http.MethodGet, "/api/bills/"+bill.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stored := decode[BillDTO](t, rr)
	assert.Len(t, stored.Items, 1)
}

func TestPreview_OverpaymentBlocksSubmit(t *testing.T) {
	router := newTestRouter(t)
	bill := createBill(t, router, CreateBillRequest{
		PatientID: "pat-1",
		Items:     []EditItemDTO{{Name: "CBC"}}, // 300
	})

	state := editState(bill)
	state.Payments = append(state.Payments, EditPaymentDTO{Method: "Cash", Amount: 500})

	rr := doJSON(t, router, http.MethodPost, "/api/bills/"+bill.ID+"/preview", state)
	require.Equal(t, http.StatusOK, rr.Code)

	preview := decode[PreviewResponse](t, rr)
	assert.True(t, preview.Totals.AmountExceedsPayable)
	assert.False(t, preview.CanSubmit)
	assert.Contains(t, preview.Blockers, "amount paid exceeds net payable")
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_AppliesDiffAndReturnsCanonical(t *testing.T) {
	router := newTestRouter(t)
	bill := createBill(t, router, CreateBillRequest{
		PatientID: "pat-1",
		Items:     []EditItemDTO{{Name: "CBC"}, {Name: "LFT"}},
		Payments:  []EditPaymentDTO{{Method: "Cash", Amount: 100}},
	})

	// Remove LFT, add KFT, bump the cash payment.
	state := editState(bill)
	kept := state.Items[:0]
	for _, it := range state.Items {
		if it.Name != "LFT" {
			kept = append(kept, it)
		}
	}
	state.Items = append(kept, EditItemDTO{Name: "KFT"})
	state.Payments[0].Amount = 250

	rr := doJSON(t, router, http.MethodPost, "/api/bills/"+bill.ID+"/submit", state)
	require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())

	updated := decode[BillDTO](t, rr)
	require.Len(t, updated.Items, 2)
	names := []string{updated.Items[0].Name, updated.Items[1].Name}
	assert.Contains(t, names, "CBC")
	assert.Contains(t, names, "KFT")
	assert.Equal(t, 750.0, updated.Totals.Gross)
	assert.Equal(t, 250.0, updated.Totals.AmountPaid)

	// The stored ledger matches what submit returned.
	rr = doJSON(t, router, http.MethodGet, "/api/bills/"+bill.ID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	stored := decode[BillDTO](t, rr)
	assert.Equal(t, updated.Totals, stored.Totals)
}

func TestSubmit_EmptyChangeRejected(t *testing.T) {
	router := newTestRouter(t)
	bill := createBill(t, router, CreateBillRequest{
		PatientID: "pat-1",
		Items:     []EditItemDTO{{Name: "CBC"}},
	})

	rr := doJSON(t, router, http.MethodPost, "/api/bills/"+bill.ID+"/submit", editState(bill))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	resp := decode[ErrorResponse](t, rr)
	assert.Equal(t, "validation_failed", resp.Code)
}

func TestSubmit_AllItemsRemovedRejected(t *testing.T) {
	router := newTestRouter(t)
	bill := createBill(t, router, CreateBillRequest{
		PatientID: "pat-1",
		Items:     []EditItemDTO{{Name: "CBC"}},
	})

	state := editState(bill)
	state.Items = nil

	rr := doJSON(t, router, http.MethodPost, "/api/bills/"+bill.ID+"/submit", state)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestSubmit_BillNotFound(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodPost, "/api/bills/ghost/submit", EditStateRequest{})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =============================================================================
// OPD CLAMPING
// =============================================================================

func TestOPDBill_DiscountClampsRecordedPayments(t *testing.T) {
	router := newTestRouter(t)
	bill := createBill(t, router, CreateBillRequest{
		PatientID: "pat-2",
		Kind:      "opd",
		Items:     []EditItemDTO{{Name: "Consultation"}}, // 400
		Payments:  []EditPaymentDTO{{Method: "Cash", Amount: 400}},
	})
	require.Equal(t, 0.0, bill.Totals.BalanceDue)

	discount := "100"
	state := editState(bill)
	state.Discount = &discount

	rr := doJSON(t, router, http.MethodPost, "/api/bills/"+bill.ID+"/preview", state)
	require.Equal(t, http.StatusOK, rr.Code, "body: %s", rr.Body.String())

	preview := decode[PreviewResponse](t, rr)
	assert.Equal(t, 300.0, preview.Totals.Net)
	assert.Equal(t, 300.0, preview.Totals.AmountPaid, "clamp trims the payment instead of flagging")
	assert.False(t, preview.Totals.AmountExceedsPayable)
	assert.True(t, preview.CanSubmit)
	require.Len(t, preview.Diff.UpdatedPayments, 1)
	assert.Equal(t, 300.0, preview.Diff.UpdatedPayments[0].Amount)
}

// =============================================================================
// CATALOG
// =============================================================================

func TestGetCatalog_GroupsByCategory(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	catalog := decode[map[string][]CatalogItemDTO](t, rr)
	require.NotEmpty(t, catalog["lab"])

	var found bool
	for _, it := range catalog["lab"] {
		if it.Name == "CBC" {
			found = true
			assert.Equal(t, 300.0, it.Price)
		}
	}
	assert.True(t, found, "CBC should be in the lab pick list")
}

func TestGetPaymentMethods(t *testing.T) {
	router := newTestRouter(t)

	rr := doJSON(t, router, http.MethodGet, "/api/payment-methods", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[map[string][]string](t, rr)
	assert.Contains(t, resp["payment_methods"], "Cash")
	assert.Contains(t, resp["payment_methods"], "UPI")
}
