/*
handlers.go - HTTP API handlers for the billing reconciliation service

PURPOSE:
  Exposes the billing ledger engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the ledger
  engine and the SQLite store.

ENDPOINTS:
  Bills:
    GET    /api/bills               Worklist of bill headers
    POST   /api/bills               Create a bill with its baseline
    GET    /api/bills/{id}          Canonical ledger for one bill
    POST   /api/bills/{id}/preview  Dry-run an edit state (totals + diff)
    POST   /api/bills/{id}/submit   Validate, apply the diff, return canonical

  Catalog:
    GET    /api/catalog             Priced pick-list entries
    GET    /api/payment-methods     Configured payment method enumeration

REQUEST FLOW:
  A dialog posts its whole current edit state; the handler replays it
  through a fresh Reconciler against the stored baseline. The engine
  classifies changes and emits the minimal diff; only /submit persists.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, rejected edit operations
  - 404: Bill not found
  - 409: Stale diff (baseline changed under the session)
  - 422: Submit-time validation (empty change, all items removed, flags)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - ledger/reconciler.go: The engine driven here
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/factory"
	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Catalog *factory.Catalog
}

// NewHandler creates a new handler with the given store and catalog.
func NewHandler(store *sqlite.Store, catalog *factory.Catalog) *Handler {
	return &Handler{Store: store, Catalog: catalog}
}

// =============================================================================
// BILL HANDLERS
// =============================================================================

// ListBills returns the worklist.
func (h *Handler) ListBills(w http.ResponseWriter, r *http.Request) {
	bills, err := h.Store.ListBills(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list bills", err)
		return
	}

	dtos := make([]BillSummaryDTO, len(bills))
	for i, b := range bills {
		dtos[i] = BillSummaryDTO{
			ID:        b.ID,
			PatientID: b.PatientID,
			Kind:      b.Kind,
			CreatedAt: b.CreatedAt.Format(time.RFC3339),
			UpdatedAt: b.UpdatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBill returns the canonical ledger for one bill.
func (h *Handler) GetBill(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	bill, baseline, err := h.Store.GetBill(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get bill", err)
		return
	}
	if bill == nil {
		writeError(w, http.StatusNotFound, "Bill not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTO(*bill, baseline))
}

// CreateBill seeds a new bill from a registration session.
func (h *Handler) CreateBill(w http.ResponseWriter, r *http.Request) {
	var req CreateBillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Items) == 0 {
		writeError(w, http.StatusBadRequest, "A bill needs at least one item", nil)
		return
	}

	kind := req.Kind
	if kind == "" {
		kind = "lab"
	}
	if kind != "lab" && kind != "opd" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Unknown bill kind %q", kind), nil)
		return
	}

	// Run the registration through the engine so catalog defaulting,
	// duplicate rejection, and method validation all apply.
	rec := ledger.New(ledger.Baseline{}, h.sessionOptions(kind)...)
	if err := h.replayEdits(rec, ledger.Baseline{}, EditStateRequest{
		Items:    req.Items,
		Payments: req.Payments,
		Discount: &req.Discount,
	}); err != nil {
		writeLedgerError(w, err)
		return
	}

	// The diff over an empty baseline is the full bill, with session ids
	// already stripped; the store assigns the real row ids.
	diff := rec.Diff()
	bill, canonical, err := h.Store.CreateBill(r.Context(), sqlite.Bill{
		PatientID: req.PatientID,
		Kind:      kind,
	}, ledger.Baseline{
		Items:    diff.NewItems,
		Payments: diff.NewPayments,
		Discount: diff.Totals.Discount,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create bill", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBillDTO(bill, canonical))
}

// PreviewBill dry-runs an edit state: totals, flags, and the would-be
// diff, with no persistence.
func (h *Handler) PreviewBill(w http.ResponseWriter, r *http.Request) {
	rec, _, ok := h.reconcilerFromRequest(w, r)
	if !ok {
		return
	}

	totals := rec.Totals()
	resp := PreviewResponse{
		Totals: toTotalsDTO(totals),
		Diff:   toDiffDTO(rec.Diff()),
	}
	resp.Blockers = submitBlockers(rec, totals)
	resp.CanSubmit = len(resp.Blockers) == 0
	writeJSON(w, http.StatusOK, resp)
}

// SubmitBill validates the edit state, applies the diff transactionally,
// and returns the refreshed canonical ledger.
func (h *Handler) SubmitBill(w http.ResponseWriter, r *http.Request) {
	rec, billID, ok := h.reconcilerFromRequest(w, r)
	if !ok {
		return
	}

	totals := rec.Totals()
	if blockers := submitBlockers(rec, totals); len(blockers) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Submit blocked",
			Code:    "validation_failed",
			Details: blockers,
		})
		return
	}

	diff, err := rec.SubmitPayload()
	if err != nil {
		// Unreachable after the blocker check, but keep the mapping.
		writeError(w, http.StatusUnprocessableEntity, "Submit blocked", err)
		return
	}

	canonical, err := h.Store.ApplyDiff(r.Context(), billID, diff)
	if err != nil {
		switch {
		case errors.Is(err, sqlite.ErrBillNotFound):
			writeError(w, http.StatusNotFound, "Bill not found", err)
		case errors.Is(err, sqlite.ErrStaleDiff):
			writeError(w, http.StatusConflict, "Bill changed since it was loaded; reload and retry", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to apply changes", err)
		}
		return
	}

	bill, _, err := h.Store.GetBill(r.Context(), billID)
	if err != nil || bill == nil {
		writeError(w, http.StatusInternalServerError, "Failed to reload bill", err)
		return
	}
	writeJSON(w, http.StatusOK, toBillDTO(*bill, canonical))
}

// =============================================================================
// CATALOG HANDLERS
// =============================================================================

// GetCatalog returns the priced pick-list grouped by category.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]CatalogItemDTO)
	for _, cat := range []string{"lab", "opd", "pharmacy"} {
		for _, name := range h.Catalog.Names(cat) {
			price, _ := h.Catalog.PriceFor(name)
			out[cat] = append(out[cat], CatalogItemDTO{Name: name, Price: toFloat(price)})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// GetPaymentMethods returns the configured method enumeration.
func (h *Handler) GetPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods := h.Catalog.Methods()
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment_methods": out})
}

// =============================================================================
// SESSION RECONSTRUCTION
// =============================================================================

func (h *Handler) sessionOptions(kind string) []ledger.Option {
	opts := []ledger.Option{
		ledger.WithCatalog(h.Catalog),
		ledger.WithMethods(h.Catalog.Methods()),
	}
	if kind == "opd" {
		opts = append(opts, ledger.WithClampPaidToNet())
	}
	return opts
}

// reconcilerFromRequest loads the bill, decodes the edit state, and
// replays it through a fresh Reconciler. Writes the error response and
// returns ok=false on any failure.
func (h *Handler) reconcilerFromRequest(w http.ResponseWriter, r *http.Request) (*ledger.Reconciler, string, bool) {
	id := chi.URLParam(r, "id")

	bill, baseline, err := h.Store.GetBill(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get bill", err)
		return nil, "", false
	}
	if bill == nil {
		writeError(w, http.StatusNotFound, "Bill not found", nil)
		return nil, "", false
	}

	var req EditStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, "", false
	}

	rec := ledger.New(baseline, h.sessionOptions(bill.Kind)...)
	if err := h.replayEdits(rec, baseline, req); err != nil {
		writeLedgerError(w, err)
		return nil, "", false
	}
	return rec, id, true
}

// replayEdits drives the engine from a baseline to the posted edit state:
// baseline items absent from the state are removed, id-less items added,
// payment method changes applied by id, then the method set and amounts
// reconciled, and finally the discount input resolved.
func (h *Handler) replayEdits(rec *ledger.Reconciler, baseline ledger.Baseline, req EditStateRequest) error {
	present := make(map[ledger.ItemID]bool)
	for _, it := range req.Items {
		if it.ID != "" {
			present[ledger.ItemID(it.ID)] = true
		}
	}
	for _, it := range baseline.Items {
		if !present[it.ID] {
			if _, err := rec.RemoveItem(it.ID); err != nil {
				return err
			}
		}
	}

	for _, it := range req.Items {
		if it.ID != "" {
			continue
		}
		c := ledger.ItemCandidate{Name: it.Name}
		if it.Price != nil {
			p := decimal.NewFromFloat(*it.Price)
			c.Price = &p
		}
		if _, err := rec.AddItem(c); err != nil {
			return err
		}
	}

	// Method changes on persisted entries keep their identity.
	baseMethod := make(map[ledger.PaymentID]ledger.Method)
	for _, e := range baseline.Payments {
		baseMethod[e.ID] = e.Method
	}
	for _, p := range req.Payments {
		if p.ID == "" {
			continue
		}
		from, ok := baseMethod[ledger.PaymentID(p.ID)]
		if !ok {
			return fmt.Errorf("%w: id %s", ledger.ErrPaymentNotFound, p.ID)
		}
		if from != ledger.Method(p.Method) {
			if _, err := rec.ChangeMethod(from, ledger.Method(p.Method)); err != nil {
				return err
			}
		}
	}

	desired := make([]ledger.Method, 0, len(req.Payments))
	for _, p := range req.Payments {
		desired = append(desired, ledger.Method(p.Method))
	}
	if _, err := rec.SetMethods(desired); err != nil {
		return err
	}
	for _, p := range req.Payments {
		if _, err := rec.SetAmount(ledger.Method(p.Method), decimal.NewFromFloat(p.Amount)); err != nil {
			return err
		}
	}

	if req.Discount != nil && *req.Discount != "" {
		rec.SetDiscount(*req.Discount)
	}
	return nil
}

// submitBlockers lists what currently prevents submission. Empty means
// the payload would be accepted.
func submitBlockers(rec *ledger.Reconciler, totals ledger.Totals) []string {
	var blockers []string
	if _, err := rec.SubmitPayload(); err != nil {
		blockers = append(blockers, err.Error())
	}
	if totals.DiscountExceedsGross {
		blockers = append(blockers, "discount exceeds gross total")
	}
	if totals.AmountExceedsPayable {
		blockers = append(blockers, "amount paid exceeds net payable")
	}
	return blockers
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeLedgerError maps engine errors onto HTTP statuses.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case ledger.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid edit", err)
	case ledger.IsSubmitError(err):
		writeError(w, http.StatusUnprocessableEntity, "Submit blocked", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
