/*
errors.go - Centralized error types for the engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages return these (or wrap them with fmt.Errorf("...: %w"))
  so the API layer can map every failure with errors.Is / errors.As.

ERROR TAXONOMY:
  ErrInvalidTransition       Illegal state-machine move (payrun, termination,
                             leave request). State is left unchanged.
  ErrInsufficientBalance     Leave reservation would drive a balance negative
                             on a type that does not allow it.
  ErrInvalidLineModification Attempt to skip or remove a required earning or
                             deduction.
  ErrValidationFailed        One or more blocking rule errors; carries codes.

  Validation WARNINGS are never errors. They travel alongside successful
  results (see validation.Result).

SEE ALSO:
  - validation/validation.go: Produces ValidationFailedError
  - api/handlers.go: HTTP status mapping
*/
package generic

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when a state-machine move is not
	// permitted from the current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrInsufficientBalance is returned when a reservation exceeds the
	// available balance and the leave type disallows negative balances.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidLineModification is returned when a required payslip line
	// would be skipped or removed.
	ErrInvalidLineModification = errors.New("invalid line modification")

	// ErrValidationFailed is returned when blocking validation errors exist.
	ErrValidationFailed = errors.New("validation failed")

	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrConcurrentModification is returned when optimistic locking detects a conflict.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError names the aggregate, its current state and the move
// that was refused.
type TransitionError struct {
	Aggregate string // "payrun", "termination", "leave_request"
	ID        string
	From      string
	Action    string
	Reason    string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("invalid transition: cannot %s %s %s in status %s", e.Action, e.Aggregate, e.ID, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EntityID  EntityID
	PolicyID  PolicyID
	Available Amount
	Requested Amount
	Shortfall Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: available %v, requested %v, shortfall %v",
		e.Available.Value, e.Requested.Value, e.Shortfall.Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// LineModificationError names the payslip line that cannot be changed.
type LineModificationError struct {
	Code   string
	Action string // "skip", "remove"
}

func (e *LineModificationError) Error() string {
	return fmt.Sprintf("invalid line modification: cannot %s required line %q", e.Action, e.Code)
}

func (e *LineModificationError) Unwrap() error {
	return ErrInvalidLineModification
}

// ValidationFailedError carries the codes of every blocking rule error.
type ValidationFailedError struct {
	Codes    []string
	Messages []string
}

func (e *ValidationFailedError) Error() string {
	return "validation failed: " + strings.Join(e.Codes, ", ")
}

func (e *ValidationFailedError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationFailed builds a ValidationFailedError for a single code.
func NewValidationFailed(code, message string) *ValidationFailedError {
	return &ValidationFailedError{Codes: []string{code}, Messages: []string{message}}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsClientError returns true if the error is due to invalid client input
// or a refused business operation.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidLineModification) ||
		errors.Is(err, ErrValidationFailed) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
