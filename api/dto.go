/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal ledger model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS ON THE WIRE:
  Amounts cross the API as JSON numbers; internally everything is
  decimal.Decimal. The conversion happens only here, at the boundary.

SEE ALSO:
  - handlers.go: Uses these types
  - ledger: The internal model these types mirror
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/billing-engine/ledger"
	"github.com/warp/billing-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LineItemDTO represents a line item in API responses.
type LineItemDTO struct {
	ID     string  `json:"id,omitempty"`
	Name   string  `json:"name"`
	Price  float64 `json:"price"`
	Locked bool    `json:"locked,omitempty"`
}

// PaymentDTO represents a payment entry in API responses.
type PaymentDTO struct {
	ID     string  `json:"id,omitempty"`
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
}

// TotalsDTO carries the derived amounts and validation flags.
type TotalsDTO struct {
	Gross                float64 `json:"gross"`
	Discount             float64 `json:"discount"`
	Net                  float64 `json:"net"`
	AmountPaid           float64 `json:"amount_paid"`
	BalanceDue           float64 `json:"balance_due"`
	DiscountExceedsGross bool    `json:"discount_exceeds_gross,omitempty"`
	AmountExceedsPayable bool    `json:"amount_exceeds_payable,omitempty"`
}

// BillDTO is the full canonical ledger for one bill.
type BillDTO struct {
	ID        string        `json:"id"`
	PatientID string        `json:"patient_id"`
	Kind      string        `json:"kind"`
	Items     []LineItemDTO `json:"items"`
	Payments  []PaymentDTO  `json:"payments"`
	Totals    TotalsDTO     `json:"totals"`
	CreatedAt string        `json:"created_at,omitempty"`
	UpdatedAt string        `json:"updated_at,omitempty"`
}

// BillSummaryDTO is the worklist row.
type BillSummaryDTO struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	Kind      string `json:"kind"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// EditItemDTO is one item row of an edit state: baseline rows carry ids,
// session-added rows don't. A nil price asks the catalog to default it.
type EditItemDTO struct {
	ID    string   `json:"id,omitempty"`
	Name  string   `json:"name"`
	Price *float64 `json:"price,omitempty"`
}

// EditPaymentDTO is one payment row of an edit state.
type EditPaymentDTO struct {
	ID     string  `json:"id,omitempty"`
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
}

// EditStateRequest is the dialog's current state: the engine replays it
// against the stored baseline to reconstruct the editing session.
type EditStateRequest struct {
	Items    []EditItemDTO    `json:"items"`
	Payments []EditPaymentDTO `json:"payments"`
	Discount *string          `json:"discount,omitempty"` // "150" or "10%"
}

// CreateBillRequest seeds a new bill.
type CreateBillRequest struct {
	PatientID string           `json:"patient_id"`
	Kind      string           `json:"kind,omitempty"` // lab (default) or opd
	Items     []EditItemDTO    `json:"items"`
	Payments  []EditPaymentDTO `json:"payments,omitempty"`
	Discount  string           `json:"discount,omitempty"`
}

// DiffDTO mirrors ledger.Diff for preview responses.
type DiffDTO struct {
	NewItems          []LineItemDTO `json:"new_items,omitempty"`
	RemovedItemIDs    []string      `json:"removed_item_ids,omitempty"`
	NewPayments       []PaymentDTO  `json:"new_payments,omitempty"`
	UpdatedPayments   []PaymentDTO  `json:"updated_payments,omitempty"`
	DeletedPaymentIDs []string      `json:"deleted_payment_ids,omitempty"`
	Discount          float64       `json:"discount"`
	AmountPaid        float64       `json:"amount_paid"`
}

// PreviewResponse is the dry-run result of an edit state.
type PreviewResponse struct {
	Totals    TotalsDTO `json:"totals"`
	Diff      DiffDTO   `json:"diff"`
	CanSubmit bool      `json:"can_submit"`
	Blockers  []string  `json:"blockers,omitempty"`
}

// CatalogItemDTO is one pick-list entry.
type CatalogItemDTO struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toLineItemDTO(it ledger.LineItem) LineItemDTO {
	return LineItemDTO{
		ID:     string(it.ID),
		Name:   it.Name,
		Price:  toFloat(it.Price),
		Locked: it.Locked,
	}
}

func toLineItemDTOs(items []ledger.LineItem) []LineItemDTO {
	dtos := make([]LineItemDTO, len(items))
	for i, it := range items {
		dtos[i] = toLineItemDTO(it)
	}
	return dtos
}

func toPaymentDTO(e ledger.PaymentEntry) PaymentDTO {
	return PaymentDTO{
		ID:     string(e.ID),
		Method: string(e.Method),
		Amount: toFloat(e.Amount),
	}
}

func toPaymentDTOs(entries []ledger.PaymentEntry) []PaymentDTO {
	dtos := make([]PaymentDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toPaymentDTO(e)
	}
	return dtos
}

func toTotalsDTO(t ledger.Totals) TotalsDTO {
	return TotalsDTO{
		Gross:                toFloat(t.Gross),
		Discount:             toFloat(t.Discount),
		Net:                  toFloat(t.Net),
		AmountPaid:           toFloat(t.AmountPaid),
		BalanceDue:           toFloat(t.BalanceDue),
		DiscountExceedsGross: t.DiscountExceedsGross,
		AmountExceedsPayable: t.AmountExceedsPayable,
	}
}

func toDiffDTO(d ledger.Diff) DiffDTO {
	dto := DiffDTO{
		Discount:   toFloat(d.Totals.Discount),
		AmountPaid: toFloat(d.Totals.AmountPaid),
	}
	for _, it := range d.NewItems {
		dto.NewItems = append(dto.NewItems, toLineItemDTO(it))
	}
	for _, id := range d.RemovedItemIDs {
		dto.RemovedItemIDs = append(dto.RemovedItemIDs, string(id))
	}
	for _, e := range d.NewPayments {
		dto.NewPayments = append(dto.NewPayments, toPaymentDTO(e))
	}
	for _, e := range d.UpdatedPayments {
		dto.UpdatedPayments = append(dto.UpdatedPayments, toPaymentDTO(e))
	}
	for _, id := range d.DeletedPaymentIDs {
		dto.DeletedPaymentIDs = append(dto.DeletedPaymentIDs, string(id))
	}
	return dto
}

func toBillDTO(bill sqlite.Bill, baseline ledger.Baseline) BillDTO {
	totals := ledger.Compute(baseline.Items, baseline.Discount.String(), baseline.Payments)
	return BillDTO{
		ID:        bill.ID,
		PatientID: bill.PatientID,
		Kind:      bill.Kind,
		Items:     toLineItemDTOs(baseline.Items),
		Payments:  toPaymentDTOs(baseline.Payments),
		Totals:    toTotalsDTO(totals),
		CreatedAt: bill.CreatedAt.Format(time.RFC3339),
		UpdatedAt: bill.UpdatedAt.Format(time.RFC3339),
	}
}
