package invalidate

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBackendFailed is matched by every *BackendError.
var ErrBackendFailed = errors.New("invalidate: backend failed")

// BackendError records the failure of one backend.
type BackendError struct {
	// Backend is the name the backend was registered under.
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("invalidate: backend %q: %v", e.Backend, e.Err)
}

// Unwrap exposes both ErrBackendFailed and the underlying cause.
func (e *BackendError) Unwrap() []error {
	return []error{ErrBackendFailed, e.Err}
}

// DispatchError aggregates every backend failure of one invalidation, in
// backend registration order.
type DispatchError struct {
	Failures []*BackendError
}

func (e *DispatchError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = fmt.Sprintf("%q: %v", f.Backend, f.Err)
	}
	return fmt.Sprintf("invalidate: %d backend(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *DispatchError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Backends returns the names of the failing backends.
func (e *DispatchError) Backends() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Backend
	}
	return names
}
