// Package faults defines the error taxonomy of the inference pipeline.
//
// Four classes cover every failure mode: LoadError (startup artifact,
// fatal), ValidationError (malformed request field, request rejected),
// InvalidParameterError (neighbor count out of range, request rejected),
// and SchemaMismatchError (feature vector does not match the model, a bug
// rather than bad input). There is no transient class: the pipeline is
// synchronous and deterministic, so nothing is ever retried.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// LoadError reports a startup artifact that is missing or corrupt.
// It aborts startup; the process never serves with partial state.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError wraps an artifact load failure with the artifact path.
func NewLoadError(path string, err error) *LoadError {
	return &LoadError{Path: path, Err: err}
}

// IsLoad returns true if the error (or any error in its chain) is a LoadError.
func IsLoad(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// ValidationError rejects a request whose named field is missing or cannot
// be coerced to its declared type. The request fails; the process continues.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %s: %s", e.Field, e.Reason)
}

// NewValidationError reports a bad request field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation returns true if the error chain contains a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ValidationField returns the offending field name carried by a
// ValidationError in the chain, or "" if there is none.
func ValidationField(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

// InvalidParameterError rejects a parameter value outside its allowed range.
type InvalidParameterError struct {
	Name  string
	Value int
	Min   int
	Max   int
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("parameter %s = %d out of range [%d, %d]", e.Name, e.Value, e.Min, e.Max)
}

// NewInvalidParameterError reports an out-of-range parameter.
func NewInvalidParameterError(name string, value, min, max int) *InvalidParameterError {
	return &InvalidParameterError{Name: name, Value: value, Min: min, Max: max}
}

// IsInvalidParameter returns true if the error chain contains an
// InvalidParameterError.
func IsInvalidParameter(err error) bool {
	var ipe *InvalidParameterError
	return errors.As(err, &ipe)
}

// SchemaMismatchError reports a feature vector whose key set differs from
// the model's feature list. It indicates a bug in feature assembly or a
// stale artifact pair, not bad input, and is logged distinctly from
// validation failures.
type SchemaMismatchError struct {
	Missing []string
	Extra   []string
}

func (e *SchemaMismatchError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing features: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Extra) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected features: %s", strings.Join(e.Extra, ", ")))
	}
	if len(parts) == 0 {
		return "feature vector does not match model schema"
	}
	return "feature vector does not match model schema: " + strings.Join(parts, "; ")
}

// NewSchemaMismatchError reports the features absent from and surplus to
// the model schema.
func NewSchemaMismatchError(missing, extra []string) *SchemaMismatchError {
	return &SchemaMismatchError{Missing: missing, Extra: extra}
}

// IsSchemaMismatch returns true if the error chain contains a
// SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var sme *SchemaMismatchError
	return errors.As(err, &sme)
}
