package apperrors

import (
	stderrors "errors"
)

// Response is the flat JSON error body sent to clients.
// This API exposes only an HTTP status and a string, never the code.
type Response struct {
	Error string `json:"error"`
}

// ToResponse converts an AppError to its client-facing body.
func (e *AppError) ToResponse() Response {
	return Response{Error: e.Message}
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
