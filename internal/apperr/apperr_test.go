package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code     Code
		expected int
	}{
		{CodeConfig, http.StatusInternalServerError},
		{CodeValidation, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeInvalidStatus, http.StatusConflict},
		{CodePaystack, http.StatusBadGateway},
		{CodeAmountMismatch, http.StatusUnprocessableEntity},
		{CodeDuplicate, http.StatusConflict},
		{CodeUserMismatch, http.StatusForbidden},
		{Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := HTTPStatus(tt.code); got != tt.expected {
				t.Errorf("HTTPStatus(%s) = %d, want %d", tt.code, got, tt.expected)
			}
		})
	}
}

func TestCodeOfWrapped(t *testing.T) {
	base := New(CodeAmountMismatch, "paid 900, expected 1000")
	wrapped := fmt.Errorf("capture: %w", base)

	if got := CodeOf(wrapped); got != CodeAmountMismatch {
		t.Errorf("CodeOf = %s, want %s", got, CodeAmountMismatch)
	}
	if !HasCode(wrapped, CodeAmountMismatch) {
		t.Error("HasCode should find the wrapped code")
	}
	if !errors.Is(wrapped, New(CodeAmountMismatch, "")) {
		t.Error("errors.Is should match on code")
	}
	if errors.Is(wrapped, New(CodeDuplicate, "")) {
		t.Error("errors.Is should not match a different code")
	}
	if got := CodeOf(errors.New("boom")); got != CodeInternal {
		t.Errorf("CodeOf(plain) = %s, want %s", got, CodeInternal)
	}
}

func TestPublicMessage(t *testing.T) {
	if got := PublicMessage(errors.New("pq: connection refused")); got != "internal error" {
		t.Errorf("plain error leaked: %q", got)
	}
	if got := PublicMessage(NotFound("transaction")); got != "transaction not found" {
		t.Errorf("PublicMessage = %q", got)
	}
}
