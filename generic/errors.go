/*
errors.go - Centralized error types for the allocation ledger

PURPOSE:
  All error kinds in one place. Every failure the core reports is a
  business-rule violation that will not succeed on retry without different
  input, so nothing here is retried internally.

ERROR CATEGORIES:
  1. Input errors - ValidationError, RateUnavailable
  2. Lock errors - SettlementLocked (edit/delete of a settled leg)
  3. Batch errors - EmptySelection, SubjectMismatch, SettlementConflict
  4. Lookup errors - allocation / batch not found

USAGE:
  Callers branch with errors.Is on the sentinels and errors.As on the
  structured types for detail:

    if errors.Is(err, generic.ErrSettlementConflict) {
        var conflict *generic.SettlementConflictError
        errors.As(err, &conflict)
    }

SEE ALSO:
  - api/handlers.go: Maps these errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRateUnavailable is returned when no rate is configured to default an amount.
	ErrRateUnavailable = errors.New("rate unavailable")

	// ErrValidation is returned for non-positive or missing amounts, dates or references.
	ErrValidation = errors.New("validation error")

	// ErrSettlementLocked is returned when an edit or delete touches a settled leg.
	ErrSettlementLocked = errors.New("settlement locked")

	// ErrEmptySelection is returned when a batch is requested with no allocations.
	ErrEmptySelection = errors.New("empty selection")

	// ErrSubjectMismatch is returned when a selected allocation belongs to another subject.
	ErrSubjectMismatch = errors.New("subject mismatch")

	// ErrSettlementConflict is returned when a selected leg is no longer PENDING.
	ErrSettlementConflict = errors.New("settlement conflict")

	// ErrAllocationNotFound is returned when a referenced allocation doesn't exist.
	ErrAllocationNotFound = errors.New("allocation not found")

	// ErrBatchNotFound is returned when a referenced batch doesn't exist.
	ErrBatchNotFound = errors.New("batch not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RateUnavailableError names the subject whose rate is missing.
type RateUnavailableError struct {
	SubjectType SubjectType
	SubjectID   string
	PeriodType  PeriodType
}

func (e *RateUnavailableError) Error() string {
	if e.PeriodType != "" {
		return fmt.Sprintf("rate unavailable: %s %s (%s)", e.SubjectType, e.SubjectID, e.PeriodType)
	}
	return fmt.Sprintf("rate unavailable: %s %s", e.SubjectType, e.SubjectID)
}

func (e *RateUnavailableError) Unwrap() error { return ErrRateUnavailable }

// SettlementLockedError names the allocation and the settled leg.
type SettlementLockedError struct {
	AllocationID AllocationID
	Leg          Leg
	Op           string // "update" or "delete"
}

func (e *SettlementLockedError) Error() string {
	return fmt.Sprintf("settlement locked: cannot %s allocation %s, %s leg is settled", e.Op, e.AllocationID, e.Leg)
}

func (e *SettlementLockedError) Unwrap() error { return ErrSettlementLocked }

// SettlementConflictError names the allocation whose leg was already settled.
type SettlementConflictError struct {
	AllocationID AllocationID
	Leg          Leg
}

func (e *SettlementConflictError) Error() string {
	return fmt.Sprintf("settlement conflict: allocation %s %s leg is not pending", e.AllocationID, e.Leg)
}

func (e *SettlementConflictError) Unwrap() error { return ErrSettlementConflict }

// SubjectMismatchError names the allocation that belongs elsewhere.
type SubjectMismatchError struct {
	AllocationID AllocationID
	SubjectType  SubjectType
	Expected     string
	Actual       string
}

func (e *SubjectMismatchError) Error() string {
	return fmt.Sprintf("subject mismatch: allocation %s belongs to %s %s, not %s",
		e.AllocationID, e.SubjectType, e.Actual, e.Expected)
}

func (e *SubjectMismatchError) Unwrap() error { return ErrSubjectMismatch }

// NotFoundError wraps ErrAllocationNotFound or ErrBatchNotFound with the id.
type NotFoundError struct {
	Kind error
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%v: %s", e.Kind, e.ID) }

func (e *NotFoundError) Unwrap() error { return e.Kind }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrRateUnavailable) ||
		errors.Is(err, ErrEmptySelection) ||
		errors.Is(err, ErrSubjectMismatch)
}

// IsConflict returns true if the error is a settlement state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSettlementLocked) ||
		errors.Is(err, ErrSettlementConflict)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAllocationNotFound) ||
		errors.Is(err, ErrBatchNotFound)
}
