// Package errors provides the structured error type used across corax.
// Every error carries a code, a category matching the expansion failure
// taxonomy, and an optional cause for errors.Is/Unwrap chains.
package errors

import (
	"errors"
	"fmt"
)

// CoraxError is the structured error type for corax.
type CoraxError struct {
	// Code is the unique error code (e.g. "ERR_201_POSTING_READ").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Structural, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *CoraxError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *CoraxError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *CoraxError) Is(target error) bool {
	if t, ok := target.(*CoraxError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *CoraxError) WithDetail(key, value string) *CoraxError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new CoraxError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *CoraxError {
	return &CoraxError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new CoraxError with a formatted message.
func Newf(code string, format string, args ...any) *CoraxError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates a CoraxError from an existing error.
// The error's message becomes the CoraxError message.
func Wrap(code string, err error) *CoraxError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *CoraxError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// IOError creates an I/O-related error.
func IOError(message string, cause error) *CoraxError {
	return New(ErrCodeIndexRead, message, cause)
}

// StructuralError creates an index-shape precondition error.
func StructuralError(message string) *CoraxError {
	return New(ErrCodeNoDirectIndex, message, nil)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *CoraxError {
	return New(ErrCodeInternal, message, cause)
}

// IsCategory reports whether err is, or wraps, a CoraxError in the
// given category.
func IsCategory(err error, cat Category) bool {
	var ce *CoraxError
	if errors.As(err, &ce) {
		return ce.Category == cat
	}
	return false
}

// GetCode extracts the error code from a CoraxError anywhere in the
// chain. Returns empty string if there is none.
func GetCode(err error) string {
	var ce *CoraxError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
