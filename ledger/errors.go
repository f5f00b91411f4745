/*
errors.go - Centralized error types for the reconciliation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every error here is validation-class and locally recoverable: the
  operation is rejected with state unchanged, and the user can correct
  the input and retry. Nothing in this package is fatal to the process.

ERROR CATEGORIES:
  1. Edit-time errors  - Rejected mutations (locked item, negative amount)
  2. Submit-time errors - Raised only when building the submit payload
     (empty change, all items removed), never mid-edit

USAGE:
  Call sites branch on sentinels:

    if errors.Is(err, ledger.ErrLockedItem) {
        // show blocking message, do not retry
    }

SEE ALSO:
  - items.go: LockedItemError, DuplicateItemError
  - payments.go: InvalidAmountError
  - reconciler.go: Submit-time validation
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrLockedItem is returned when removing an item whose downstream
	// state forbids removal (e.g. a completed lab report).
	ErrLockedItem = errors.New("item is locked and cannot be removed")

	// ErrDuplicateItem is returned when adding an item whose name is
	// already present among non-removed items (case-insensitive).
	ErrDuplicateItem = errors.New("item already present")

	// ErrItemNotFound is returned when an item id is unknown to the set.
	ErrItemNotFound = errors.New("item not found")

	// ErrInvalidAmount is returned for a negative payment amount.
	// The mutation is rejected before any state changes.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrUnknownMethod is returned when a payment method is not in the
	// configured method set.
	ErrUnknownMethod = errors.New("unknown payment method")

	// ErrDuplicateMethod is returned when a method change would collide
	// with an existing entry. One entry per method at a time.
	ErrDuplicateMethod = errors.New("payment method already in use")

	// ErrPaymentNotFound is returned when no entry exists for a method.
	ErrPaymentNotFound = errors.New("payment entry not found")

	// ErrEmptyChange is returned at submit time when neither items nor
	// payments changed and the flow requires at least one change.
	ErrEmptyChange = errors.New("no changes to submit")

	// ErrAllItemsRemoved is returned at submit time when applying the
	// pending removals would leave zero effective items. This blocks
	// submission entirely.
	ErrAllItemsRemoved = errors.New("cannot remove all items from bill")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// LockedItemError identifies which item blocked a removal.
type LockedItemError struct {
	ItemID ItemID
	Name   string
}

func (e *LockedItemError) Error() string {
	return fmt.Sprintf("item %q (%s) is locked and cannot be removed", e.Name, e.ItemID)
}

func (e *LockedItemError) Unwrap() error { return ErrLockedItem }

// DuplicateItemError identifies the name collision on AddItem.
type DuplicateItemError struct {
	Name     string
	Existing ItemID
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("item %q already present (id: %s)", e.Name, e.Existing)
}

func (e *DuplicateItemError) Unwrap() error { return ErrDuplicateItem }

// InvalidAmountError carries the offending method and amount.
type InvalidAmountError struct {
	Method Method
	Amount decimal.Decimal
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s for method %s: amounts must be non-negative", e.Amount, e.Method)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid user input
// during editing. Surfaced as a message; the operation was rejected with
// state unchanged.
func IsClientError(err error) bool {
	return errors.Is(err, ErrLockedItem) ||
		errors.Is(err, ErrDuplicateItem) ||
		errors.Is(err, ErrItemNotFound) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnknownMethod) ||
		errors.Is(err, ErrDuplicateMethod) ||
		errors.Is(err, ErrPaymentNotFound)
}

// IsSubmitError returns true for errors raised only by submit-time
// validation. The user is never blocked mid-edit by these.
func IsSubmitError(err error) bool {
	return errors.Is(err, ErrEmptyChange) ||
		errors.Is(err, ErrAllItemsRemoved)
}
