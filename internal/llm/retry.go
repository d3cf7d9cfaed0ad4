package llm

import (
	"context"
	"errors"
	"time"

	"srg/internal/apperr"
)

// retryableError marks errors that withRetry should back off and retry —
// transport timeouts, not semantic failures (spec.md §4.A: "on timeouts
// only — not on semantic errors"), mirroring flow.Client.withRetry's
// gRPC-code classification but generalized to a plain error predicate since
// the local HTTP provider doesn't speak gRPC status codes.
type retryableError struct{ cause error }

func (e *retryableError) Error() string { return e.cause.Error() }
func (e *retryableError) Unwrap() error { return e.cause }

// Retryable wraps err so withRetry treats it as a transient timeout.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &retryableError{cause: err}
}

func isRetryable(err error) bool {
	var re *retryableError
	return errors.As(err, &re) || errors.Is(err, context.DeadlineExceeded)
}

// withRetry attempts fn up to maxRetries times with exponential backoff
// (initialDelay * multiplier^n) between attempts, stopping early on a
// non-retryable error or context cancellation.
func withRetry(ctx context.Context, maxRetries int, initialDelay time.Duration, multiplier float64, fn func() error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	delay := initialDelay

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxRetries-1 {
			break
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay = time.Duration(float64(delay) * multiplier)
	}

	return apperr.Wrap(apperr.CodeLLMTimeout, "model provider call timed out after retries",
		"the provider may be overloaded; retry later", lastErr)
}
