package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 5, time.Millisecond, 2, func() error {
		attempts++
		return errors.New("semantic error, not retryable")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for a non-retryable error, got %d", attempts)
	}
}

func TestWithRetry_RetriesTimeouts(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 3, time.Millisecond, 2, func() error {
		attempts++
		if attempts < 3 {
			return Retryable(errors.New("timeout"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithRetry_GivesUpAfterMax(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), 2, time.Millisecond, 2, func() error {
		attempts++
		return Retryable(errors.New("always times out"))
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestL2Normalize(t *testing.T) {
	v := []float32{3, 4}
	l2Normalize(v)
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	if diff := sumSq - 1.0; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected unit norm, got sum of squares %v", sumSq)
	}
}
