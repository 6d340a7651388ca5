package errors

import (
	"errors"
	"sync"
	"time"
)

const (
	// FailureThreshold consecutive failures open the circuit.
	FailureThreshold = 5
	// OpenCooldown is how long the circuit stays open before one probe call
	// is let through.
	OpenCooldown = 30 * time.Second
)

// ErrRelayUnavailable is returned for calls rejected while the circuit is
// open. Callers treat it like any other delivery failure: the event is
// dropped and logged.
var ErrRelayUnavailable = errors.New("notification relay unavailable")

// CircuitBreaker shields the outbound notification relay. When the relay
// keeps failing, tier-change and report events are rejected immediately
// instead of stalling the activity handlers that produced them; delivery is
// at-least-once and future activity re-converges state, so dropped events
// are acceptable.
//
// Closed: calls pass through, consecutive failures are counted. Open: calls
// are rejected until the cooldown elapses. After the cooldown a single probe
// call runs; its outcome closes or re-opens the circuit.
type CircuitBreaker struct {
	mu       sync.Mutex
	failures int
	openedAt time.Time
	probing  bool

	now func() time.Time
}

// NewCircuitBreaker returns a closed breaker.
func NewCircuitBreaker() *CircuitBreaker {
	return &CircuitBreaker{now: time.Now}
}

// Call runs fn unless the circuit is open. The error from fn is returned
// as-is so callers can log the real cause.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if fn == nil {
		return nil
	}

	if !cb.admit() {
		return ErrRelayUnavailable
	}

	err := fn()
	cb.observe(err)
	return err
}

// Open reports whether the breaker is currently rejecting calls.
func (cb *CircuitBreaker) Open() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures >= FailureThreshold && cb.now().Sub(cb.openedAt) < OpenCooldown
}

func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.failures < FailureThreshold {
		return true
	}

	if cb.now().Sub(cb.openedAt) < OpenCooldown {
		return false
	}

	// Cooldown elapsed: admit exactly one probe at a time.
	if cb.probing {
		return false
	}
	cb.probing = true
	return true
}

func (cb *CircuitBreaker) observe(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false

	if err == nil {
		cb.failures = 0
		return
	}

	cb.failures++
	if cb.failures >= FailureThreshold {
		cb.openedAt = cb.now()
	}
}
