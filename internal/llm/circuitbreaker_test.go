package llm

import (
	"errors"
	"testing"
	"time"

	"srg/internal/apperr"
)

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute)
	failing := errors.New("boom")

	for i := 0; i < 3; i++ {
		if err := b.Call(func() error { return failing }); !errors.Is(err, failing) {
			t.Fatalf("call %d: expected underlying error, got %v", i, err)
		}
	}

	called := false
	err := b.Call(func() error { called = true; return nil })
	if called {
		t.Fatal("breaker should fail fast without invoking fn once open")
	}
	e, ok := apperr.As(err)
	if !ok || e.Code != apperr.CodeCircuitBreakerOpen {
		t.Fatalf("expected CIRCUIT_BREAKER_OPEN, got %v", err)
	}
	if b.State() != "open" {
		t.Fatalf("expected state open, got %s", b.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond)

	if err := b.Call(func() error { return errors.New("boom") }); err == nil {
		t.Fatal("expected failure")
	}
	if b.State() != "open" {
		t.Fatalf("expected open after 1 failure, got %s", b.State())
	}

	time.Sleep(15 * time.Millisecond)

	if err := b.Call(func() error { return nil }); err != nil {
		t.Fatalf("half-open probe should have been allowed: %v", err)
	}
	if b.State() != "closed" {
		t.Fatalf("expected closed after successful probe, got %s", b.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond)
	_ = b.Call(func() error { return errors.New("boom") })
	time.Sleep(15 * time.Millisecond)

	if err := b.Call(func() error { return errors.New("still broken") }); err == nil {
		t.Fatal("expected failure")
	}
	if b.State() != "open" {
		t.Fatalf("expected reopened state, got %s", b.State())
	}
}
