package apierr

import (
	"errors"
	"net/http"
	"testing"
)

func TestError_MessagePrecedence(t *testing.T) {
	wrapped := errors.New("read failed")

	if got := New(http.StatusBadRequest, "sheet_url is required", nil).Error(); got != "sheet_url is required" {
		t.Fatalf("message form = %q", got)
	}
	if got := New(http.StatusInternalServerError, "", wrapped).Error(); got != "read failed" {
		t.Fatalf("wrapped form = %q", got)
	}
	// Message wins even when both are set.
	if got := New(http.StatusBadRequest, "bad input", wrapped).Error(); got != "bad input" {
		t.Fatalf("precedence = %q", got)
	}
	if got := New(http.StatusInternalServerError, "", nil).Error(); got != "api error (500)" {
		t.Fatalf("status-only form = %q", got)
	}
}

func TestError_Unwrap(t *testing.T) {
	wrapped := errors.New("read failed")
	if !errors.Is(New(http.StatusInternalServerError, "", wrapped), wrapped) {
		t.Fatal("wrapped error must be reachable through errors.Is")
	}
}
