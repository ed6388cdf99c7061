/*
errors.go - Centralized error types for the credit line engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Every failure in this package is a rejected operation, never a
  process-ending fault. The engine fails fast and lets the caller
  decide presentation; it never logs, retries, or suppresses.

ERROR CATEGORIES:
  1. Not-found errors - Unknown credit line id
  2. Transition errors - Illegal lifecycle state machine edge
  3. Validation errors - Malformed filter/pagination/amount input
  4. Duplicate errors - Re-creating an existing id, or a ledger id collision

USAGE:
  Callers match with errors.Is/errors.As:

    if errors.Is(err, creditline.ErrInvalidTransition) {
        // render a 409 with the current status
    }

SEE ALSO:
  - engine.go: Produces NotFoundError, InvalidTransitionError, DuplicateIDError
  - ledger.go: Produces ValidationError for query input
*/
package creditline

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced credit line doesn't exist.
	ErrNotFound = errors.New("credit line not found")

	// ErrInvalidTransition is returned when a lifecycle transition is not
	// permitted by the state machine.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrValidation is returned for malformed filter, pagination, or amount
	// input.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateID is returned when creating a credit line whose id already
	// exists. Re-creation is rejected rather than silently replacing the
	// prior record and its ledger history.
	ErrDuplicateID = errors.New("credit line id already exists")

	// ErrDuplicateTransactionID is returned by stores when a ledger append
	// would overwrite an existing transaction. The ledger is append-only.
	ErrDuplicateTransactionID = errors.New("transaction id already exists")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies the missing credit line.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("credit line %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidTransitionError carries the current status and the attempted action
// so callers can render a precise conflict message.
type InvalidTransitionError struct {
	Current   Status
	Requested string // "suspend" or "close"
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a credit line in status %q", e.Requested, e.Current)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// DuplicateIDError identifies the already-existing credit line.
type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("credit line %q already exists", e.ID)
}

func (e *DuplicateIDError) Unwrap() error { return ErrDuplicateID }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing credit line.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error maps to client-facing conflict
// semantics (illegal transition or duplicate id).
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrDuplicateID)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || IsNotFound(err) || IsConflict(err)
}
