package tags

import (
	"context"

	"github.com/herbdool/d8cache/hooks"
)

// AlterFunc may add or remove tags before they are emitted or invalidated.
// A returned error is reported to the caller but does not undo changes
// already made to the set.
type AlterFunc func(ctx context.Context, tags *Set) error

// EmitFunc observes the finalized tag set. It must not retain the set.
type EmitFunc func(ctx context.Context, tags Set)

// State is the lifecycle stage of an Accumulator.
type State int

const (
	// StateEmpty means no tag has been added yet.
	StateEmpty State = iota
	// StateAccumulating means tags are being collected.
	StateAccumulating
	// StateFinalized means alter collaborators have run.
	StateFinalized
	// StateEmitted means observers have been invoked.
	StateEmitted
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateAccumulating:
		return "accumulating"
	case StateFinalized:
		return "finalized"
	case StateEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}

// Accumulator collects the tags of one operation.
type Accumulator struct {
	alters    []hooks.Entry[AlterFunc]
	observers []hooks.Entry[EmitFunc]

	set       Set
	finalized bool
	emitted   bool
}

// NewAccumulator creates an accumulator bound to the given collaborator
// snapshots.
func NewAccumulator(alters []hooks.Entry[AlterFunc], observers []hooks.Entry[EmitFunc]) *Accumulator {
	return &Accumulator{
		alters:    alters,
		observers: observers,
		set:       Set{m: make(map[Tag]struct{})},
	}
}

// Add records t. Duplicates are ignored.
func (a *Accumulator) Add(t Tag) error {
	if a.finalized {
		return ErrAlreadyFinalized
	}
	return a.set.Add(t)
}

// AddAll records every tag, stopping at the first invalid one.
func (a *Accumulator) AddAll(tags ...Tag) error {
	for _, t := range tags {
		if err := a.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// Merge records every tag of s.
func (a *Accumulator) Merge(s Set) error {
	if a.finalized {
		return ErrAlreadyFinalized
	}
	for t := range s.m {
		a.set.m[t] = struct{}{}
	}
	return nil
}

// Len returns the number of distinct tags collected so far.
func (a *Accumulator) Len() int {
	return a.set.Len()
}

// State returns the current lifecycle stage.
func (a *Accumulator) State() State {
	switch {
	case a.emitted:
		return StateEmitted
	case a.finalized:
		return StateFinalized
	case a.set.Len() > 0:
		return StateAccumulating
	default:
		return StateEmpty
	}
}

// Finalize runs the alter collaborators in registration order and returns
// the resulting set. It may be called once.
//
// Alter failures are aggregated into a *hooks.ChainError. The set is still
// finalized and returned with every change made before and after the
// failing collaborator.
func (a *Accumulator) Finalize(ctx context.Context) (Set, error) {
	if a.finalized {
		return Set{}, ErrAlreadyFinalized
	}
	a.finalized = true

	err := hooks.Run(hooks.PreEmitCacheTagsAlter, a.alters, func(fn AlterFunc) error {
		return fn(ctx, &a.set)
	})
	return a.set.Clone(), err
}

// Tags returns a copy of the current set.
func (a *Accumulator) Tags() Set {
	return a.set.Clone()
}

// Emit invokes every observer with the finalized set. All observers run even
// if one panics; panics are reported as a *hooks.ChainError.
func (a *Accumulator) Emit(ctx context.Context) error {
	if !a.finalized {
		return ErrNotFinalized
	}
	if a.emitted {
		return ErrAlreadyEmitted
	}
	a.emitted = true

	return hooks.Run(hooks.EmitCacheTags, a.observers, func(fn EmitFunc) error {
		fn(ctx, a.set.Clone())
		return nil
	})
}
