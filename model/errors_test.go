package model

import (
	"fmt"
	"testing"
)

func TestErrorEnvelope_Error(t *testing.T) {
	e := &ErrorEnvelope{Code: ErrNotFound, Message: "Employee not found"}
	want := "NOT_FOUND: Employee not found"
	if got := e.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestErrorEnvelope_implements_error(t *testing.T) {
	var _ error = (*ErrorEnvelope)(nil)
}

func TestNewApplicationError_keeps_message(t *testing.T) {
	e := NewApplicationError(400, "Mã nhân viên đã tồn tại")
	if e.Code != ErrApplicationError {
		t.Errorf("Code = %q, want %q", e.Code, ErrApplicationError)
	}
	if e.Message != "Mã nhân viên đã tồn tại" {
		t.Errorf("Message = %q, want verbatim backend message", e.Message)
	}
	if e.Status != 400 {
		t.Errorf("Status = %d, want 400", e.Status)
	}
}

func TestNewValidationError(t *testing.T) {
	details := []FieldError{
		{Field: "email", Code: "REQUIRED", Message: "Email is required"},
	}
	e := NewValidationError("", details)
	if e.Code != ErrValidationError {
		t.Errorf("Code = %q, want %q", e.Code, ErrValidationError)
	}
	if e.Message == "" {
		t.Error("Message should default to a generic summary")
	}
	if len(e.Details) != 1 || e.Details[0].Field != "email" {
		t.Errorf("Details = %+v", e.Details)
	}
}

func TestAsErrorEnvelope_wrapped(t *testing.T) {
	err := fmt.Errorf("listing employees: %w", NewUnauthorizedError("session expired"))
	env, ok := AsErrorEnvelope(err)
	if !ok {
		t.Fatal("AsErrorEnvelope() should unwrap")
	}
	if env.Code != ErrUnauthorized {
		t.Errorf("Code = %q, want %q", env.Code, ErrUnauthorized)
	}
	if !IsUnauthorized(err) {
		t.Error("IsUnauthorized() = false, want true")
	}
	if IsUnauthorized(fmt.Errorf("plain")) {
		t.Error("IsUnauthorized(plain) = true, want false")
	}
}

func TestBackendErrors(t *testing.T) {
	if NewBackendUnavailableError().Code != ErrBackendUnavailable {
		t.Error("unexpected code for unavailable")
	}
	if NewBackendTimeoutError().Code != ErrBackendTimeout {
		t.Error("unexpected code for timeout")
	}
	if NewInternalError().Code != ErrInternalError {
		t.Error("unexpected code for internal")
	}
}
