package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestNotFound_Message tests the client-facing wording
func TestNotFound_Message(t *testing.T) {
	err := NotFound("Session")
	if err.Message != "Session not found" {
		t.Errorf("Message = %q, want %q", err.Message, "Session not found")
	}
	if err.HTTPStatus != http.StatusNotFound {
		t.Errorf("HTTPStatus = %d, want 404", err.HTTPStatus)
	}
}

// TestMissingField_Message tests the required-field wording
func TestMissingField_Message(t *testing.T) {
	err := MissingField("audio file")
	if err.Message != "audio file is required" {
		t.Errorf("Message = %q, want %q", err.Message, "audio file is required")
	}
	if err.HTTPStatus != http.StatusBadRequest {
		t.Errorf("HTTPStatus = %d, want 400", err.HTTPStatus)
	}
}

// TestInternal_HidesCause tests that causes never reach the client body
func TestInternal_HidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal(cause)

	resp := err.ToResponse()
	if resp.Error != "Internal server error" {
		t.Errorf("Response.Error = %q, want the generic message", resp.Error)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false, want the cause wrapped")
	}
}

// TestAsAppError tests unwrapping through fmt wrapping
func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NotFound("Transcript"))

	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("AsAppError() ok = false, want true")
	}
	if appErr.Code != ErrCodeNotFound {
		t.Errorf("Code = %q, want %q", appErr.Code, ErrCodeNotFound)
	}

	if _, ok := AsAppError(errors.New("plain")); ok {
		t.Error("AsAppError(plain) ok = true, want false")
	}
}
