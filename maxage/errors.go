package maxage

import "errors"

// Sentinel errors for max-age operations.
var (
	// ErrInvalidMaxAge indicates a negative value other than Permanent.
	ErrInvalidMaxAge = errors.New("maxage: value is invalid")

	// ErrInvalidSentinel indicates a permanence sentinel that is not negative.
	ErrInvalidSentinel = errors.New("maxage: sentinel must be negative")

	// ErrAlreadyFinalized indicates Finalize was called twice, or a value was
	// proposed after finalization.
	ErrAlreadyFinalized = errors.New("maxage: reconciler already finalized")

	// ErrNotFinalized indicates Emit was called before Finalize.
	ErrNotFinalized = errors.New("maxage: reconciler not finalized")

	// ErrAlreadyEmitted indicates Emit was called twice.
	ErrAlreadyEmitted = errors.New("maxage: max-age already emitted")
)
