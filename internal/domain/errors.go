// Package domain – error taxonomy.
//
// This file centralizes the typed failures surfaced by the repository and
// service layers so callers can branch on error kind without string
// matching. Every operation either returns a value or exactly one of these
// errors; a caller never observes a partially applied mutation. Cache-store
// failures are the single exception to the taxonomy: they are swallowed and
// logged inside the cache coordinator and never surface as request failures.
package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an entity is absent, soft-deleted, or outside
// the caller's tenant partition. The three cases are deliberately
// indistinguishable so existence of other tenants' records never leaks.
var ErrNotFound = errors.New("entity not found")

// ValidationError reports malformed caller input: a bad ID format,
// out-of-range pagination, or a failed field-level check. It is a caller
// error and is never retried by the core.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %q: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// VersionConflictError reports an optimistic-concurrency failure: the caller
// updated against a version that is no longer current. The caller must
// re-fetch and retry; the core never retries on its behalf.
type VersionConflictError struct {
	EntityName string
	EntityID   string
	Expected   int64
	Actual     int64
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("version conflict on %s %s: expected %d, stored %d",
		e.EntityName, e.EntityID, e.Expected, e.Actual)
}

// PermissionError reports a missing capability for the attempted operation.
type PermissionError struct {
	Permission string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("missing permission %q", e.Permission)
}

// BusinessRuleError reports a domain-specific precondition failure, such as
// deleting a record in a protected state.
type BusinessRuleError struct {
	Rule   string
	Reason string
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %q violated: %s", e.Rule, e.Reason)
}

// StoreUnavailableError reports a transaction or connection failure against
// the system of record. Unlike the caller errors above it is retryable
// infrastructure failure; the wrapped cause is preserved for logging.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// IsCallerError reports whether err is attributable to the caller (invalid
// input, missing permission, stale version, violated rule, absent entity) as
// opposed to infrastructure failure. Controllers use it to pick 4xx vs 5xx.
func IsCallerError(err error) bool {
	var (
		validation *ValidationError
		conflict   *VersionConflictError
		permission *PermissionError
		rule       *BusinessRuleError
	)
	return errors.Is(err, ErrNotFound) ||
		errors.As(err, &validation) ||
		errors.As(err, &conflict) ||
		errors.As(err, &permission) ||
		errors.As(err, &rule)
}
