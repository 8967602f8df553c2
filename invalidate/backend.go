package invalidate

import (
	"context"

	"github.com/herbdool/d8cache/tags"
)

// Backend purges cached content carrying any of the given tags.
//
// Contract:
// - Concurrency: Invalidate may be called concurrently for different
//   invalidations.
// - Ownership: the set is the backend's own copy.
// - Idempotency: under WithRetry a failed call is repeated with the same
//   tags; purging twice must be harmless.
// - Context: implementations should honor cancellation; the invalidator
//   stops waiting at the deadline either way.
type Backend interface {
	Name() string
	Invalidate(ctx context.Context, set tags.Set) error
}

type backendFunc struct {
	name string
	fn   func(context.Context, tags.Set) error
}

// NewBackendFunc adapts a function to Backend.
func NewBackendFunc(name string, fn func(ctx context.Context, set tags.Set) error) Backend {
	return backendFunc{name: name, fn: fn}
}

func (b backendFunc) Name() string { return b.name }

func (b backendFunc) Invalidate(ctx context.Context, set tags.Set) error {
	return b.fn(ctx, set)
}
