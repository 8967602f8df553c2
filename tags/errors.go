package tags

import "errors"

// Sentinel errors for tag operations.
var (
	// ErrInvalidTag indicates an empty or malformed tag.
	ErrInvalidTag = errors.New("tags: tag is invalid")

	// ErrAlreadyFinalized indicates Finalize was called twice, or a tag was
	// added after finalization.
	ErrAlreadyFinalized = errors.New("tags: accumulator already finalized")

	// ErrNotFinalized indicates Emit was called before Finalize.
	ErrNotFinalized = errors.New("tags: accumulator not finalized")

	// ErrAlreadyEmitted indicates Emit was called twice.
	ErrAlreadyEmitted = errors.New("tags: tags already emitted")
)
