package hooks

import "fmt"

// Run invokes call for every entry in order. Failures and recovered panics
// are collected; the remaining entries still run. It returns nil or a
// *ChainError.
func Run[F any](point Point, entries []Entry[F], call func(F) error) error {
	var failures []*CallbackError
	for _, e := range entries {
		if err := Call(func() error { return call(e.Fn) }); err != nil {
			failures = append(failures, &CallbackError{Point: point, Name: e.Name, Err: err})
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return &ChainError{Point: point, Errors: failures}
}

// Call runs fn, converting a panic into an error wrapping ErrCallbackPanic.
func Call(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", ErrCallbackPanic, rec)
		}
	}()
	return fn()
}
