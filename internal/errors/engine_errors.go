package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/LASER-IDEA/white-paper-sub000/pkg/contracts/domain"
)

// MissingColumnError is fatal: a required canonical field could not be resolved.
// No dataset and no index results are produced when it is returned.
type MissingColumnError struct {
	Fields []string `json:"fields"`
}

// MissingRequiredFieldError is the name the schema normalizer reports under
type MissingRequiredFieldError = MissingColumnError

// Error implements the error interface
func (e *MissingColumnError) Error() string {
	if len(e.Fields) == 1 {
		return fmt.Sprintf("missing required column: %s", e.Fields[0])
	}
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Fields, ", "))
}

// NewMissingColumnError creates a missing column error for the given canonical fields
func NewMissingColumnError(fields ...string) *MissingColumnError {
	return &MissingColumnError{Fields: fields}
}

// DataQualityWarning is a non-fatal repair recorded in the validation report
type DataQualityWarning = domain.DataQualityWarning

// ComputationError is scoped to a single index; the rest of the batch still runs
type ComputationError struct {
	IndexID string
	Reason  string
	Cause   error
}

// Error implements the error interface
func (e *ComputationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("index %s: %s: %v", e.IndexID, e.Reason, e.Cause)
	}
	return fmt.Sprintf("index %s: %s", e.IndexID, e.Reason)
}

// Unwrap allows errors.Is and errors.As to reach the cause
func (e *ComputationError) Unwrap() error {
	return e.Cause
}

// NewComputationError creates a computation error for an index
func NewComputationError(indexID, reason string, cause error) *ComputationError {
	return &ComputationError{IndexID: indexID, Reason: reason, Cause: cause}
}

// OutputShapeError means a reducer produced data its declared chart shape cannot hold
type OutputShapeError struct {
	IndexID string
	Shape   string
	Got     string
}

// Error implements the error interface
func (e *OutputShapeError) Error() string {
	return fmt.Sprintf("index %s: shape %s cannot be built from %s output", e.IndexID, e.Shape, e.Got)
}

// NewOutputShapeError creates an output shape error
func NewOutputShapeError(indexID, shape, got string) *OutputShapeError {
	return &OutputShapeError{IndexID: indexID, Shape: shape, Got: got}
}

// TimeoutError means a reducer exceeded its time budget and was omitted
type TimeoutError struct {
	IndexID string
	Budget  time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("index %s exceeded time budget of %s", e.IndexID, e.Budget)
}

// IsFatal reports whether err must abort the whole run
func IsFatal(err error) bool {
	var missing *MissingColumnError
	return errors.As(err, &missing)
}

// FailureKind classifies a per-index error for the failure list
func FailureKind(err error) string {
	var shapeErr *OutputShapeError
	var timeoutErr *TimeoutError
	switch {
	case errors.As(err, &shapeErr):
		return domain.FailureOutputShape
	case errors.As(err, &timeoutErr):
		return domain.FailureTimeout
	default:
		return domain.FailureComputation
	}
}
