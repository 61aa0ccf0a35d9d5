/*
errors.go - Centralized error types for the opportunity engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers should wrap these errors with additional context.

ERROR CATEGORIES:
  1. Data-quality conditions - Non-fatal, deterministic, counted in
     diagnostics (missing price). Never retried.
  2. Fatal run errors - Abort the batch before any output is produced
     (missing input table, schema validation).
  3. Collaborator errors - The external validator call failed or timed
     out; treated as a rejection by default.

USAGE:
    if errors.Is(err, assortment.ErrMissingInputTable) {
        // abort the run, nothing was persisted
    }
*/
package assortment

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoValidPrice is returned when no level of the price fallback
	// chain resolves a positive unit price. This is a normal, expected
	// outcome for a candidate, not a run failure.
	ErrNoValidPrice = errors.New("no valid price")

	// ErrMissingInputTable is returned when a required input table is
	// absent or empty. Fatal: the run aborts before any output exists.
	ErrMissingInputTable = errors.New("required input table missing or empty")

	// ErrSchemaValidation is returned when an output table fails its
	// schema check (e.g., a negative quantity). Fatal: no partial output
	// is ever persisted.
	ErrSchemaValidation = errors.New("output schema validation failed")

	// ErrValidatorUnavailable is returned by validator adapters that are
	// configured but cannot reach their backend.
	ErrValidatorUnavailable = errors.New("sell-through validator unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// MissingPriceError identifies the candidate that failed price resolution.
type MissingPriceError struct {
	StoreID    StoreID
	FeatureKey FeatureKey
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no valid price for store %s feature %s", e.StoreID, e.FeatureKey)
}

func (e *MissingPriceError) Unwrap() error { return ErrNoValidPrice }

// MissingInputTableError names the absent table.
type MissingInputTableError struct {
	Table string
}

func (e *MissingInputTableError) Error() string {
	return fmt.Sprintf("input table %q is missing or empty", e.Table)
}

func (e *MissingInputTableError) Unwrap() error { return ErrMissingInputTable }

// SchemaValidationError names the offending table and the violated rule.
type SchemaValidationError struct {
	Table  string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed for %s: %s", e.Table, e.Reason)
}

func (e *SchemaValidationError) Unwrap() error { return ErrSchemaValidation }

// ExternalValidatorError wraps a failed or timed-out validator call.
type ExternalValidatorError struct {
	StoreID    StoreID
	FeatureKey FeatureKey
	Err        error
}

func (e *ExternalValidatorError) Error() string {
	return fmt.Sprintf("validator call failed for store %s feature %s: %v", e.StoreID, e.FeatureKey, e.Err)
}

func (e *ExternalValidatorError) Unwrap() error { return e.Err }
