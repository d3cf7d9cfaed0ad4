package llm

import (
	"sync"
	"time"

	"srg/internal/apperr"
)

// breakerState is one of Closed, Open, Half-open (spec.md §4.A).
type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// CircuitBreaker wraps every outbound provider call. It is per-process,
// guarded by a mutex (spec.md §5 "contention is negligible"), mirroring the
// teacher's per-node disabledUntil timestamps but collapsed to a single
// three-state machine since there is one upstream provider, not a pool.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            breakerState
	failures         int
	failureThreshold int
	cooldown         time.Duration
	openedAt         time.Time
}

// NewCircuitBreaker builds a breaker with the given failure threshold and
// cooldown (spec.md defaults: 3 failures, 60s cooldown).
func NewCircuitBreaker(failureThreshold int, cooldown time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	return &CircuitBreaker{failureThreshold: failureThreshold, cooldown: cooldown}
}

// allow reports whether a call may proceed right now, and whether this call
// is the Half-open probe (in which case a subsequent recordFailure reopens
// immediately without waiting for the full threshold).
func (b *CircuitBreaker) allow() (ok bool, isProbe bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateClosed:
		return true, false
	case stateOpen:
		if time.Since(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return true, true
		}
		return false, false
	case stateHalfOpen:
		// Only one probe in flight at a time would require extra bookkeeping
		// this breaker doesn't need: spec.md says "the first call probes",
		// but concurrent callers racing here just means more than one probe
		// may occur, each independently recorded below. Harmless.
		return true, true
	}
	return false, false
}

func (b *CircuitBreaker) recordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.failures = 0
}

func (b *CircuitBreaker) recordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == stateHalfOpen {
		b.state = stateOpen
		b.openedAt = time.Now()
		return
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.state = stateOpen
		b.openedAt = time.Now()
	}
}

// Call executes fn, updating breaker state. If the breaker is Open, fn is
// never invoked and CIRCUIT_BREAKER_OPEN is returned immediately.
func (b *CircuitBreaker) Call(fn func() error) error {
	ok, _ := b.allow()
	if !ok {
		return apperr.New(apperr.CodeCircuitBreakerOpen, "model provider circuit breaker is open",
			"retry after the cooldown window")
	}

	err := fn()
	if err != nil {
		b.recordFailure()
		return err
	}
	b.recordSuccess()
	return nil
}

// State returns a human-readable breaker state, for health endpoints.
func (b *CircuitBreaker) State() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
