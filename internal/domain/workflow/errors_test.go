package workflow

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainErrorWrapping(t *testing.T) {
	cause := errors.New("boom")
	err := NewError(ErrCodeProvider, "submit failed", cause, map[string]interface{}{"step_id": "a"})
	wrapped := fmt.Errorf("outer: %w", err)

	if !errors.Is(wrapped, cause) {
		t.Fatal("expected cause in chain")
	}
	if CodeOf(wrapped) != ErrCodeProvider {
		t.Fatalf("unexpected code %s", CodeOf(wrapped))
	}
	if got := err.Error(); got != "PROVIDER_ERROR: submit failed: boom" {
		t.Fatalf("unexpected message %q", got)
	}

	enriched := err.WithContext(map[string]interface{}{"attempt": 2})
	if enriched.Context["step_id"] != "a" || enriched.Context["attempt"] != 2 {
		t.Fatalf("context not merged: %v", enriched.Context)
	}
	if _, ok := err.Context["attempt"]; ok {
		t.Fatal("WithContext mutated the original")
	}
}

func TestAsDomainError(t *testing.T) {
	plain := errors.New("plain")
	derr := AsDomainError(plain, ErrCodeExecution)
	if derr.Code != ErrCodeExecution || derr.Cause != plain {
		t.Fatalf("unexpected conversion %+v", derr)
	}
	if AsDomainError(nil, ErrCodeExecution) != nil {
		t.Fatal("nil should stay nil")
	}
	timeout := NewError(ErrCodeTimeout, "late", nil, nil)
	if AsDomainError(fmt.Errorf("x: %w", timeout), ErrCodeExecution) != timeout {
		t.Fatal("existing domain error should be returned as-is")
	}
	if !errors.Is(timeout, ErrTimeout) {
		t.Fatal("sentinel should match by code")
	}
}
