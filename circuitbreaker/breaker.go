// Package circuitbreaker provides failure isolation for the remote cache
// tier: after enough consecutive failures, calls are rejected locally for
// a cooldown period instead of hitting the unreliable dependency.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the current state of the circuit breaker
type State int

const (
	// StateClosed means the circuit breaker is closed and allowing requests through
	StateClosed State = iota
	// StateOpen means the circuit breaker is open and rejecting requests
	StateOpen
	// StateHalfOpen means the circuit breaker is probing whether the dependency has recovered
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ResetPolicy selects how the failure counter recovers when a half-open
// probe succeeds.
type ResetPolicy int

const (
	// ResetToZero clears the failure counter outright.
	ResetToZero ResetPolicy = iota
	// ResetDecrement lowers the counter by one instead of zeroing it, so
	// a dependency that keeps flapping re-opens the circuit after a
	// single further failure.
	ResetDecrement
)

// ErrOpen is returned by Execute when the circuit rejects the call locally.
var ErrOpen = errors.New("circuit breaker is open")

// Config holds the configuration for a circuit breaker
type Config struct {
	// FailureThreshold is the number of failures that opens the circuit
	FailureThreshold int
	// ResetTimeout is how long the circuit stays open before a probe call is allowed
	ResetTimeout time.Duration
	// Policy selects the recovery behavior of the failure counter
	Policy ResetPolicy
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		Policy:           ResetToZero,
	}
}

// CircuitBreaker implements the circuit breaker pattern with a single
// probe call in half-open state.
type CircuitBreaker struct {
	name   string
	config Config

	mu          sync.Mutex
	state       State
	failures    int
	lastFailure time.Time
	probing     bool

	onStateChange func(name string, from, to State)

	// now is swappable for tests
	now func() time.Time
}

// New creates a circuit breaker with the given name and configuration.
func New(name string, config Config) *CircuitBreaker {
	if config.FailureThreshold < 1 {
		config.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = DefaultConfig().ResetTimeout
	}
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// OnStateChange sets a callback invoked whenever the breaker changes state.
func (cb *CircuitBreaker) OnStateChange(fn func(name string, from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Allow reports whether a call may proceed. In the open state it starts
// returning true again once the cooldown since the last failure has
// elapsed, letting a single probe through.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.config.ResetTimeout {
			cb.setState(StateHalfOpen)
			cb.probing = true
			return true
		}
		return false
	case StateHalfOpen:
		// One probe at a time.
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	}

	return false
}

// Success records a successful call.
func (cb *CircuitBreaker) Success() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.probing = false
		if cb.config.Policy == ResetDecrement {
			if cb.failures > 0 {
				cb.failures--
			}
		} else {
			cb.failures = 0
		}
		cb.setState(StateClosed)
	}
}

// Failure records a failed call.
func (cb *CircuitBreaker) Failure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.config.FailureThreshold {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		cb.probing = false
		cb.setState(StateOpen)
	}
}

// Execute runs fn when the breaker allows it, recording the outcome.
// It returns ErrOpen when the call is rejected locally.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return ErrOpen
	}

	if err := fn(); err != nil {
		cb.Failure()
		return err
	}

	cb.Success()
	return nil
}

// Reset closes the circuit and zeroes the failure counter, regardless of
// policy. The remote health probe calls this on a successful ping.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.probing = false
	cb.setState(StateClosed)
}

// State returns the current state of the circuit breaker
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns statistics about the circuit breaker
type Stats struct {
	Name        string     `json:"name"`
	State       string     `json:"state"`
	Failures    int        `json:"failures"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
}

// Snapshot returns the current statistics
func (cb *CircuitBreaker) Snapshot() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	stats := Stats{
		Name:     cb.name,
		State:    cb.state.String(),
		Failures: cb.failures,
	}
	if !cb.lastFailure.IsZero() {
		lf := cb.lastFailure
		stats.LastFailure = &lf
	}
	return stats
}

// Failures returns the current failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// LastFailure returns the time of the most recent failure, zero if none.
func (cb *CircuitBreaker) LastFailure() time.Time {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.lastFailure
}

// SetNowFunc replaces the breaker's clock. Test helper.
func (cb *CircuitBreaker) SetNowFunc(now func() time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.now = now
}

// setState changes state and fires the hook. Called with the lock held;
// the hook runs on its own goroutine to avoid deadlocks.
func (cb *CircuitBreaker) setState(newState State) {
	oldState := cb.state
	cb.state = newState

	if cb.onStateChange != nil && oldState != newState {
		go cb.onStateChange(cb.name, oldState, newState)
	}
}
