/*
errors.go - Centralized error types for the attendance engine

PURPOSE:
  All error categories in one place for consistency and discoverability.
  Domain packages return these directly or wrap them with context.

ERROR CATEGORIES:
  1. Validation errors  - bad input from the submitting user, always recoverable
  2. Quota errors       - casual leave over the monthly allowance
  3. Not-found errors   - unknown request id, unresolvable member
  4. Permission errors  - self-approval, insufficient hierarchy
  5. Storage errors     - document unreadable/unwritable; surfaced, never swallowed

USAGE:
  The boundary layer maps categories to responses:

    if core.IsClientError(err) { respond 4xx with err.Error() }
    else                       { respond 500, log }

SEE ALSO:
  - api/handlers.go: maps these onto HTTP statuses
*/
package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the root of all recoverable input failures. These are
	// reported verbatim to the submitting user, never logged as system faults.
	ErrValidation = errors.New("validation failed")

	// ErrQuotaExceeded is returned when casual leave exceeds the monthly
	// allowance for the member's tier.
	ErrQuotaExceeded = errors.New("casual leave quota exceeded")

	// ErrNotFound is returned for unknown request ids and unresolvable members.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied is returned for self-approval and for approvers
	// without a strictly higher hierarchy level than the requester.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrStorage is returned when a document cannot be loaded or saved. The
	// operation must not be treated as succeeded when this is returned.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports a recoverable input failure. Message is written
// for the submitting user and is safe to return verbatim.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }
func (e *ValidationError) Unwrap() error { return ErrValidation }

// QuotaExceededError carries the remaining-days detail reported to the user.
type QuotaExceededError struct {
	Used      int
	Allowed   int
	Requested int
}

func (e *QuotaExceededError) Remaining() int {
	if r := e.Allowed - e.Used; r > 0 {
		return r
	}
	return 0
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("casual leave limit exceeded: %d days remaining this month (requested: %d, allowed: %d)",
		e.Remaining(), e.Requested, e.Allowed)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

// NotFoundError identifies what could not be resolved.
type NotFoundError struct {
	Kind string // "request", "member"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s no longer exists", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps a persistence failure with the document it hit.
// The generic denial message deliberately carries no role-level detail.
type StorageError struct {
	Document string
	Op       string // "load", "save"
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for document %q: %v", e.Op, e.Document, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorage }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// or a policy rejection, i.e. safe to report back to the user.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPermissionDenied)
}

// IsNotFound returns true if the error indicates a missing record or member.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsStorage returns true if the error indicates a persistence failure.
func IsStorage(err error) bool { return errors.Is(err, ErrStorage) }
