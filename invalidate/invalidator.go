package invalidate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/herbdool/d8cache/hooks"
	"github.com/herbdool/d8cache/observe"
	"github.com/herbdool/d8cache/resilience"
	"github.com/herbdool/d8cache/tags"
)

// Defaults for New.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultMaxConcurrent = 8
)

// Result describes one invalidation.
type Result struct {
	// ID identifies the invalidation in logs and spans.
	ID string
	// Tags is the set after the alter phase.
	Tags tags.Set
	// Dispatched lists the backends that were called, in registration
	// order.
	Dispatched []string
	// Failed lists the backends that failed, in registration order.
	Failed []string
	// Skipped reports that the final set was empty and no backend was
	// called.
	Skipped bool
}

// Invalidator runs the alter and dispatch phases.
//
// Contract:
// - Concurrency: safe for concurrent use. Each call reads one snapshot of
//   each collaborator chain, so registration changes apply to later calls.
type Invalidator struct {
	alters   *hooks.Chain[tags.AlterFunc]
	backends *hooks.Chain[Backend]

	timeout       time.Duration
	maxConcurrent int
	retry         *resilience.Retry
	breakers      *resilience.Breakers
	mw            *observe.Middleware
	newID         func() string
}

// Option configures an Invalidator.
type Option func(*Invalidator)

// WithTimeout bounds each backend attempt. A non-positive d disables the
// bound.
func WithTimeout(d time.Duration) Option {
	return func(inv *Invalidator) {
		inv.timeout = d
	}
}

// WithMaxConcurrent limits how many backends run at once. A non-positive n
// removes the limit.
func WithMaxConcurrent(n int) Option {
	return func(inv *Invalidator) {
		inv.maxConcurrent = n
	}
}

// WithRetry retries failed backend calls. Without it every backend
// receives the final set exactly once. With it a failing backend receives
// the same set again on each retry, each time as a fresh copy, so backends
// must purge idempotently.
func WithRetry(r *resilience.Retry) Option {
	return func(inv *Invalidator) {
		inv.retry = r
	}
}

// WithBreakers guards each backend with the breaker registered under its
// name.
func WithBreakers(b *resilience.Breakers) Option {
	return func(inv *Invalidator) {
		inv.breakers = b
	}
}

// WithMiddleware instruments invalidations and backend calls.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(inv *Invalidator) {
		if mw != nil {
			inv.mw = mw
		}
	}
}

// WithIDGenerator replaces the UUID generator used for Result.ID.
func WithIDGenerator(fn func() string) Option {
	return func(inv *Invalidator) {
		if fn != nil {
			inv.newID = fn
		}
	}
}

// New creates an Invalidator reading collaborators from the given chains.
// Nil chains behave as empty.
func New(alters *hooks.Chain[tags.AlterFunc], backends *hooks.Chain[Backend], opts ...Option) *Invalidator {
	if alters == nil {
		alters = &hooks.Chain[tags.AlterFunc]{}
	}
	if backends == nil {
		backends = &hooks.Chain[Backend]{}
	}
	inv := &Invalidator{
		alters:        alters,
		backends:      backends,
		timeout:       DefaultTimeout,
		maxConcurrent: DefaultMaxConcurrent,
		mw:            observe.NopMiddleware(),
		newID:         uuid.NewString,
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

// Invalidate purges content carrying any of the given tags.
//
// Invalid input tags are rejected with tags.ErrInvalidTag before any
// collaborator runs. Alter failures are reported as a *hooks.ChainError and
// backend failures as a *DispatchError; when both occur the returned error
// joins them. The Result is valid whenever input validation passed.
func (inv *Invalidator) Invalidate(ctx context.Context, input ...tags.Tag) (Result, error) {
	res := Result{ID: inv.newID()}

	set, err := tags.NewSet(input...)
	if err != nil {
		return res, err
	}

	logger := inv.mw.Logger().With(observe.F("invalidation_id", res.ID))
	op := observe.Operation{Kind: "invalidate"}

	var alterErr, dispatchErr error
	_ = inv.mw.Run(ctx, op, func(ctx context.Context) error {
		alterErr = hooks.Run(hooks.PreInvalidateCacheTagsAlter, inv.alters.Snapshot(), func(fn tags.AlterFunc) error {
			return fn(ctx, &set)
		})
		if alterErr != nil {
			logger.Warn(ctx, "invalidation alter failed", observe.Err(alterErr))
		}

		res.Tags = set.Clone()
		if set.Len() == 0 {
			res.Skipped = true
			logger.Debug(ctx, "invalidation skipped: no tags left after alter")
			return alterErr
		}

		inv.mw.Metrics().RecordTagsInvalidated(ctx, set.Len())
		res.Dispatched, res.Failed, dispatchErr = inv.dispatch(ctx, set)
		if dispatchErr != nil {
			logger.Error(ctx, "invalidation dispatch failed",
				observe.F("failed", res.Failed), observe.Err(dispatchErr))
		} else {
			logger.Info(ctx, "invalidation dispatched",
				observe.F("tags", set.Strings()), observe.F("backends", res.Dispatched))
		}
		return joinErrors(alterErr, dispatchErr)
	}, attribute.String("d8cache.invalidation_id", res.ID), attribute.Int("d8cache.tags", set.Len()))

	return res, joinErrors(alterErr, dispatchErr)
}

func (inv *Invalidator) dispatch(ctx context.Context, set tags.Set) (dispatched, failed []string, err error) {
	backends := inv.backends.Snapshot()
	failures := make([]*BackendError, len(backends))

	var g errgroup.Group
	if inv.maxConcurrent > 0 {
		g.SetLimit(inv.maxConcurrent)
	}
	for i, e := range backends {
		dispatched = append(dispatched, e.Name)
		g.Go(func() error {
			if err := inv.call(ctx, e, set); err != nil {
				failures[i] = &BackendError{Backend: e.Name, Err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	var de DispatchError
	for _, f := range failures {
		if f != nil {
			de.Failures = append(de.Failures, f)
			failed = append(failed, f.Backend)
		}
	}
	if len(de.Failures) == 0 {
		return dispatched, nil, nil
	}
	return dispatched, failed, &de
}

func (inv *Invalidator) call(ctx context.Context, e hooks.Entry[Backend], set tags.Set) error {
	opts := []resilience.GuardOption{
		resilience.WithTimeout(inv.timeout),
		resilience.WithRetry(inv.retry),
	}
	if inv.breakers != nil {
		opts = append(opts, resilience.WithBreaker(inv.breakers.Get(e.Name)))
	}
	guard := resilience.NewGuard(opts...)

	op := observe.Operation{Kind: "invalidate.backend", Target: e.Name}
	return inv.mw.Run(ctx, op, func(ctx context.Context) error {
		return guard.Execute(ctx, func(ctx context.Context) error {
			clone := set.Clone()
			return hooks.Call(func() error { return e.Fn.Invalidate(ctx, clone) })
		})
	})
}

func joinErrors(a, b error) error {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	default:
		return errors.Join(a, b)
	}
}
