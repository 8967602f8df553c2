package resilience

import (
	"context"
	"errors"
)

// Sentinel errors for guarded calls.
var (
	// ErrCircuitOpen is returned without calling the operation while the
	// breaker is open.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrAttemptsExhausted wraps the last failure once every retry attempt
	// has been used.
	ErrAttemptsExhausted = errors.New("resilience: retry attempts exhausted")

	// ErrTimeout is returned when a single attempt exceeds its deadline.
	ErrTimeout = errors.New("resilience: operation timed out")
)

// Permanent reports whether retrying err is pointless: the caller gave up
// or the breaker refused the call.
func Permanent(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled)
}
