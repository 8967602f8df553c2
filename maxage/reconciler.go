package maxage

import (
	"context"
	"errors"
	"fmt"

	"github.com/herbdool/d8cache/hooks"
)

// AlterFunc may overwrite the reconciled value before emission, including
// raising it or forcing Permanent.
type AlterFunc func(ctx context.Context, value *MaxAge) error

// EmitFunc observes the finalized value. Observers are expected to apply the
// policy cap and suppress caching for session-bound requests.
type EmitFunc func(ctx context.Context, value MaxAge)

// Config configures a Reconciler.
type Config struct {
	// Sentinel is the raw host value meaning Permanent, used by ProposeRaw.
	// It must be negative; 0 is replaced by the default because a raw 0
	// always means "do not cache".
	// Default: -1
	Sentinel int64
}

// DefaultConfig returns the default reconciler configuration.
func DefaultConfig() Config {
	return Config{Sentinel: DefaultSentinel}
}

// Reconciler resolves the max-age proposals of one operation.
// It is not safe for concurrent use.
type Reconciler struct {
	config    Config
	alters    []hooks.Entry[AlterFunc]
	observers []hooks.Entry[EmitFunc]

	effective MaxAge
	proposals int
	finalized bool
	emitted   bool
}

// NewReconciler creates a reconciler bound to the given collaborator
// snapshots.
func NewReconciler(config Config, alters []hooks.Entry[AlterFunc], observers []hooks.Entry[EmitFunc]) *Reconciler {
	if config.Sentinel == 0 {
		config.Sentinel = DefaultSentinel
	}
	return &Reconciler{
		config:    config,
		alters:    alters,
		observers: observers,
		effective: Permanent,
	}
}

// Propose records a candidate value.
func (r *Reconciler) Propose(m MaxAge) error {
	if r.finalized {
		return ErrAlreadyFinalized
	}
	if err := m.Validate(); err != nil {
		return err
	}
	r.effective = Min(r.effective, m)
	r.proposals++
	return nil
}

// ProposeRaw records a host value, mapping the configured sentinel to
// Permanent.
func (r *Reconciler) ProposeRaw(raw int64) error {
	m, err := FromRaw(raw, r.config.Sentinel)
	if err != nil {
		return err
	}
	return r.Propose(m)
}

// Effective returns the value reconciled so far.
func (r *Reconciler) Effective() MaxAge {
	return r.effective
}

// Proposals returns the number of accepted proposals.
func (r *Reconciler) Proposals() int {
	return r.proposals
}

// Finalize runs the alter collaborators in registration order and returns the
// final value. It may be called once.
//
// Collaborator failures are aggregated; overrides made by other
// collaborators stand. If the value left by the collaborators is invalid it
// is replaced by 0 and ErrInvalidMaxAge is included in the returned error.
func (r *Reconciler) Finalize(ctx context.Context) (MaxAge, error) {
	if r.finalized {
		return 0, ErrAlreadyFinalized
	}
	r.finalized = true

	err := hooks.Run(hooks.PreEmitCacheMaxAgeAlter, r.alters, func(fn AlterFunc) error {
		return fn(ctx, &r.effective)
	})
	if verr := r.effective.Validate(); verr != nil {
		r.effective = 0
		err = errors.Join(err, fmt.Errorf("after alter: %w", verr))
	}
	return r.effective, err
}

// Emit invokes every observer with the final value.
func (r *Reconciler) Emit(ctx context.Context) error {
	if !r.finalized {
		return ErrNotFinalized
	}
	if r.emitted {
		return ErrAlreadyEmitted
	}
	r.emitted = true

	value := r.effective
	return hooks.Run(hooks.EmitCacheMaxAge, r.observers, func(fn EmitFunc) error {
		fn(ctx, value)
		return nil
	})
}

// ForcePermanent returns an AlterFunc that sets Permanent when cond reports
// true.
func ForcePermanent(cond func(context.Context) bool) AlterFunc {
	return ForceValue(Permanent, cond)
}

// ForceValue returns an AlterFunc that overwrites the value with v when cond
// reports true. A nil cond always applies.
func ForceValue(v MaxAge, cond func(context.Context) bool) AlterFunc {
	return func(ctx context.Context, value *MaxAge) error {
		if cond == nil || cond(ctx) {
			*value = v
		}
		return nil
	}
}
