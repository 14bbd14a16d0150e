/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package ai

import (
	"context"
	"errors"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // healthy, calls pass through
	CircuitOpen                         // tripped, calls rejected immediately
	CircuitHalfOpen                     // probing, one call allowed
)

// String returns the string representation of a CircuitState.
func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops a session from hammering a provider that keeps
// failing. After failureThreshold consecutive failed completions the circuit
// opens and queries fail fast; after resetTimeout one probe completion is let
// through (half-open) and its outcome closes or re-opens the circuit.
type CircuitBreaker struct {
	mu                  sync.Mutex
	state               CircuitState
	consecutiveFailures int
	failureThreshold    int
	resetTimeout        time.Duration
	lastFailureTime     time.Time
	nowFunc             func() time.Time
	onStateChange       func(from, to CircuitState)
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithNowFunc injects a clock function for testing.
func WithNowFunc(f func() time.Time) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.nowFunc = f
	}
}

// WithOnStateChange sets a callback for state transitions. It is invoked
// outside the breaker's lock.
func WithOnStateChange(f func(from, to CircuitState)) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.onStateChange = f
	}
}

// NewCircuitBreaker creates a circuit breaker with the given failure threshold
// and reset timeout. A threshold below 1 is treated as 1.
func NewCircuitBreaker(threshold int, timeout time.Duration, opts ...CircuitBreakerOption) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	cb := &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: threshold,
		resetTimeout:     timeout,
		nowFunc:          time.Now,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Allow reports whether a completion call may proceed. An open circuit whose
// reset timeout has elapsed moves to half-open and admits exactly one probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	var transition *stateTransition
	allowed := false
	switch cb.state {
	case CircuitClosed:
		allowed = true
	case CircuitOpen:
		if cb.nowFunc().Sub(cb.lastFailureTime) >= cb.resetTimeout {
			transition = cb.setStateLocked(CircuitHalfOpen)
			allowed = true
		}
	}
	cb.mu.Unlock()
	transition.fire()
	return allowed
}

// Record classifies the outcome of a completion call. A nil error is a
// success; a provider 429 only delays the next probe; a cancellation by the
// caller says nothing about the provider and is ignored; anything else is a
// failure.
func (cb *CircuitBreaker) Record(err error) {
	var apiErr *APIError
	switch {
	case err == nil:
		cb.RecordSuccess()
	case errors.As(err, &apiErr) && apiErr.RateLimited():
		cb.RecordRateLimit()
	case errors.Is(err, context.Canceled):
		cb.releaseProbe()
	default:
		cb.RecordFailure()
	}
}

// RecordSuccess resets the failure counter and closes a half-open circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	cb.consecutiveFailures = 0
	var transition *stateTransition
	if cb.state == CircuitHalfOpen {
		transition = cb.setStateLocked(CircuitClosed)
	}
	cb.mu.Unlock()
	transition.fire()
}

// RecordFailure counts a failed call. It opens the circuit when the
// threshold is reached, and re-opens a half-open circuit immediately.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	cb.consecutiveFailures++
	cb.lastFailureTime = cb.nowFunc()
	var transition *stateTransition
	if cb.state == CircuitHalfOpen || cb.consecutiveFailures >= cb.failureThreshold {
		transition = cb.setStateLocked(CircuitOpen)
	}
	cb.mu.Unlock()
	transition.fire()
}

// RecordRateLimit restarts the reset timer without counting a failure. A
// throttled probe sends the circuit back to open.
func (cb *CircuitBreaker) RecordRateLimit() {
	cb.mu.Lock()
	cb.lastFailureTime = cb.nowFunc()
	var transition *stateTransition
	if cb.state == CircuitHalfOpen {
		transition = cb.setStateLocked(CircuitOpen)
	}
	cb.mu.Unlock()
	transition.fire()
}

// releaseProbe returns a half-open circuit to open without restarting the
// timer, so the next call can probe again straight away.
func (cb *CircuitBreaker) releaseProbe() {
	cb.mu.Lock()
	var transition *stateTransition
	if cb.state == CircuitHalfOpen {
		transition = cb.setStateLocked(CircuitOpen)
	}
	cb.mu.Unlock()
	transition.fire()
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// stateTransition captures a pending callback to invoke outside the lock.
type stateTransition struct {
	from, to CircuitState
	callback func(from, to CircuitState)
}

func (t *stateTransition) fire() {
	if t != nil {
		t.callback(t.from, t.to)
	}
}

// setStateLocked records the state change and returns the transition to fire
// once the lock is released, or nil. Caller MUST hold cb.mu.
func (cb *CircuitBreaker) setStateLocked(newState CircuitState) *stateTransition {
	old := cb.state
	cb.state = newState
	if cb.onStateChange != nil && old != newState {
		return &stateTransition{from: old, to: newState, callback: cb.onStateChange}
	}
	return nil
}
