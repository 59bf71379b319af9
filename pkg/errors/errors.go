// Package errors provides structured error types for keyforge.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI and the HTTP server
//   - Machine-readable error codes for programmatic handling
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow a hierarchical naming convention:
//   - INVALID_*: Input validation failures (keyboards, layouts, models, pins)
//   - NOT_FOUND: Unknown names or stored runs
//   - INCONSISTENT_STATE: Optimizer bookkeeping diverged from a recomputation
//   - INTERNAL_*: Unexpected internal errors
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidPin, "cannot pin %s", pin)
//	if errors.Is(err, errors.ErrCodeInvalidPin) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeInvalidModel, origErr, "load model %s", name)
//
// Violations of internal invariants, such as a model lacking data for a
// button the keyboard defines, are not returned as errors. They panic with
// an [*IntegrityError], since continuing would silently produce wrong
// efforts.
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput    Code = "INVALID_INPUT"
	ErrCodeInvalidKeyboard Code = "INVALID_KEYBOARD"
	ErrCodeInvalidLayout   Code = "INVALID_LAYOUT"
	ErrCodeInvalidModel    Code = "INVALID_MODEL"
	ErrCodeInvalidPin      Code = "INVALID_PIN"
	ErrCodeInvalidPath     Code = "INVALID_PATH"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

	// Storage and network errors
	ErrCodeNetwork Code = "NETWORK_ERROR"
	ErrCodeTimeout Code = "TIMEOUT"

	// Internal errors
	ErrCodeInternal          Code = "INTERNAL_ERROR"
	ErrCodeInconsistentState Code = "INCONSISTENT_STATE"
	ErrCodeUnsupported       Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}

// IntegrityError reports a broken internal invariant. It is raised with
// panic, never returned.
type IntegrityError struct {
	Message string
}

// Error implements the error interface.
func (e *IntegrityError) Error() string {
	return "integrity violation: " + e.Message
}

// Code returns the error code for this error type.
func (e *IntegrityError) Code() Code {
	return ErrCodeInconsistentState
}

// Integrity panics with an *IntegrityError built from the formatted message.
func Integrity(format string, args ...any) {
	panic(&IntegrityError{Message: fmt.Sprintf(format, args...)})
}

// RecoverIntegrity converts a recovered *IntegrityError into an error coded
// INCONSISTENT_STATE. Any other panic value is re-raised. Use it in a
// deferred function at API boundaries:
//
//	defer errors.RecoverIntegrity(&err)
func RecoverIntegrity(errp *error) {
	r := recover()
	if r == nil {
		return
	}
	if ie, ok := r.(*IntegrityError); ok {
		*errp = Wrap(ErrCodeInconsistentState, ie, "internal invariant violated")
		return
	}
	panic(r)
}
