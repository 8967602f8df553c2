package hooks

import (
	"errors"
	"fmt"
	"strings"
)

// Registration errors.
var (
	// ErrInvalidName indicates an empty collaborator name.
	ErrInvalidName = errors.New("hooks: collaborator name is required")

	// ErrDuplicateName indicates the name is already registered on the chain.
	ErrDuplicateName = errors.New("hooks: collaborator already registered")

	// ErrNilCallback indicates a nil callback was registered.
	ErrNilCallback = errors.New("hooks: callback is nil")
)

// ErrCallbackPanic indicates a collaborator panicked. Panics are recovered
// so the remaining collaborators still run.
var ErrCallbackPanic = errors.New("hooks: collaborator panicked")

// CallbackError records the failure of a single collaborator.
type CallbackError struct {
	Point Point
	Name  string
	Err   error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("hooks: %s collaborator %q: %v", e.Point, e.Name, e.Err)
}

func (e *CallbackError) Unwrap() error {
	return e.Err
}

// ChainError aggregates every collaborator failure of one chain invocation.
type ChainError struct {
	Point  Point
	Errors []*CallbackError
}

func (e *ChainError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ce := range e.Errors {
		msgs[i] = fmt.Sprintf("%q: %v", ce.Name, ce.Err)
	}
	return fmt.Sprintf("hooks: %d collaborator(s) failed at %s: %s",
		len(e.Errors), e.Point, strings.Join(msgs, "; "))
}

// Unwrap exposes the individual failures to errors.Is and errors.As.
func (e *ChainError) Unwrap() []error {
	errs := make([]error, len(e.Errors))
	for i, ce := range e.Errors {
		errs[i] = ce
	}
	return errs
}

// Failed returns the names of the failing collaborators in invocation order.
func (e *ChainError) Failed() []string {
	names := make([]string, len(e.Errors))
	for i, ce := range e.Errors {
		names[i] = ce.Name
	}
	return names
}
