// Package apperrors provides the application error type with machine-readable
// codes and HTTP status mapping. Clients only ever see the message string and
// the status; codes stay server-side for logging and tests.
package apperrors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a machine-readable error code.
type ErrorCode string

const (
	// ErrCodeNotFound indicates the requested resource was not found.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidInput indicates the input is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrCodeMissingField indicates a required field is missing.
	ErrCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrCodeInternal indicates an internal server error.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrCodeDatabase indicates a database error.
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	// ErrCodeExternalService indicates an error from an external service.
	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is the unified application error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode
	// Message is the human-readable message exposed to clients.
	Message string
	// HTTPStatus is the HTTP status code for this error.
	HTTPStatus int
	// Cause is the underlying error, logged server-side only.
	Cause error
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// --- Common error constructors ---

// NotFound creates an AppError for a resource that was not found.
// The message matches the wire contract: "Session not found".
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// InvalidInput creates an AppError for a rejected request.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// MissingField creates an AppError for a missing required field.
func MissingField(field string) *AppError {
	return &AppError{
		Code:       ErrCodeMissingField,
		Message:    fmt.Sprintf("%s is required", field),
		HTTPStatus: http.StatusBadRequest,
	}
}

// Internal creates an AppError wrapping an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       ErrCodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// Database creates an AppError for a persistence failure.
func Database(cause error) *AppError {
	return &AppError{
		Code:       ErrCodeDatabase,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// External creates an AppError for an upstream service failure.
func External(service string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeExternalService,
		Message:    fmt.Sprintf("%s request failed", service),
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}
