/*
errors.go - Centralized error types for IT/PEI records

PURPOSE:
  All error types in one place so the reconciler, the stores and the HTTP
  layer agree on what a failure means.

ERROR CATEGORIES:
  1. Validation - missing required field, malformed period, "Emitido"
     prerequisites unmet, frozen column in an update. Raised before any
     store call and never persisted.
  2. Conflict   - the store rejected a write on a uniqueness constraint.
     The caller must change its inputs and resubmit.
  3. NotFound   - an update targeted an ID that does not exist.
  4. Store      - any other store failure, carrying the driver message.

  None of them are retried automatically.

USAGE:
  if errors.Is(err, record.ErrConflict) {
      // duplicate natural key
  }

  var verrs record.ValidationErrors
  if errors.As(err, &verrs) {
      for _, v := range verrs { ... v.Field ... }
  }

SEE ALSO:
  - store/sqlstore/store.go: Maps driver errors onto these types
  - api/handlers.go: Maps these types onto HTTP status codes
*/
package record

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input breaks a record invariant.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflicting record")

	// ErrNotFound is returned when the target record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrStore is returned for any other persistence failure.
	ErrStore = errors.New("store failure")
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
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ValidationErrors collects every failed check of one submission.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error {
	return ErrValidation
}

// Err returns nil when nothing failed.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// Fields lists the offending fields in order.
func (v ValidationErrors) Fields() []string {
	fields := make([]string, len(v))
	for i, e := range v {
		fields[i] = e.Field
	}
	return fields
}

// ConflictError wraps a uniqueness violation reported by the store.
type ConflictError struct {
	Constraint string
	Err        error
}

func (e *ConflictError) Error() string {
	if e.Constraint == "" {
		return fmt.Sprintf("duplicate record: %v", e.Err)
	}
	return fmt.Sprintf("duplicate record (%s): %v", e.Constraint, e.Err)
}

func (e *ConflictError) Unwrap() []error {
	return []error{ErrConflict, e.Err}
}

// NotFoundError reports a missing update target.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record %d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// StoreError wraps any other driver failure with the operation name.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrStore, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the caller can fix the input and resubmit.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }
