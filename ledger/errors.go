/*
errors.go - Centralized error types for the cash-flow engine

ERROR CATEGORIES (spec.md §7):
  NotFound           - referenced account/subscription/transaction missing
  InvalidRequest     - validation failure, no state change
  InvariantViolation - duplicate allocation row or corrupt budget formula;
                       fatal at the engine boundary, treat as a bug
  StoreError         - underlying persistence failure

SEE ALSO:
  - store GetBudgetAllocation: raises InvariantViolation on duplicate
    allocations, which budget/recalculate.go passes on to its caller
  - controller: raises InvalidRequest on malformed mutations
*/
package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrInvariantViolation = errors.New("invariant violation")
	ErrStoreFailure       = errors.New("store failure")
)

// NotFoundError names the missing referenced entity.
type NotFoundError struct {
	Kind string // "account", "subscription", "transaction", "category"
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found: %s", e.Kind, e.ID) }
func (e *NotFoundError) Unwrap() error  { return ErrNotFound }

// InvalidRequestError carries a human-readable validation failure reason.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string { return "invalid request: " + e.Reason }
func (e *InvalidRequestError) Unwrap() error  { return ErrInvalidRequest }

// InvariantViolationError signals that a §4.3 budget formula could not be
// satisfied — this indicates corrupt state, not user error.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string { return "invariant violation: " + e.Reason }
func (e *InvariantViolationError) Unwrap() error  { return ErrInvariantViolation }

// StoreFailureError wraps an underlying persistence error.
type StoreFailureError struct {
	Op  string
	Err error
}

func (e *StoreFailureError) Error() string { return fmt.Sprintf("store failure during %s: %v", e.Op, e.Err) }
func (e *StoreFailureError) Unwrap() error  { return e.Err }
func (e *StoreFailureError) Is(target error) bool { return target == ErrStoreFailure }

func IsNotFound(err error) bool           { return errors.Is(err, ErrNotFound) }
func IsInvalidRequest(err error) bool     { return errors.Is(err, ErrInvalidRequest) }
func IsInvariantViolation(err error) bool { return errors.Is(err, ErrInvariantViolation) }
func IsStoreFailure(err error) bool       { return errors.Is(err, ErrStoreFailure) }
