package core

import (
	"errors"
	"strings"
	"testing"
)

func TestError_MessageFormatting(t *testing.T) {
	t.Parallel()

	err := NewAPIError("upload rejected", "file_too_large")
	if !strings.Contains(err.Error(), "upload rejected") {
		t.Fatalf("error=%q, expected message", err.Error())
	}
	if !strings.Contains(err.Error(), "file_too_large") {
		t.Fatalf("error=%q, expected code", err.Error())
	}
}

func TestError_UnwrapAndRetryable(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := NewTransportError("dial failed", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the cause")
	}
	if !err.IsRetryable() {
		t.Fatalf("transport errors must be retryable")
	}
	if NewPermissionError("mic denied", nil).IsRetryable() {
		t.Fatalf("permission errors must not be retryable")
	}
}
