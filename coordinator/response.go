package coordinator

import (
	"context"
	"errors"

	"github.com/herbdool/d8cache/hooks"
	"github.com/herbdool/d8cache/maxage"
	"github.com/herbdool/d8cache/observe"
	"github.com/herbdool/d8cache/tags"
)

// Metadata is the finalized cache metadata of a response.
type Metadata struct {
	Tags   tags.Set
	MaxAge maxage.MaxAge
}

// Response collects the tags and max-age proposals of one response.
// It is not safe for concurrent use.
type Response struct {
	tags   *tags.Accumulator
	maxAge *maxage.Reconciler
	policy maxage.Policy
	mw     *observe.Middleware

	meta      Metadata
	finalized bool
}

// AddTags records tags. It stops at the first invalid tag.
func (r *Response) AddTags(ts ...tags.Tag) error {
	return r.tags.AddAll(ts...)
}

// MergeTags records every tag of s, typically the tags of a cached
// fragment reused by this response.
func (r *Response) MergeTags(s tags.Set) error {
	return r.tags.Merge(s)
}

// Propose records a max-age candidate.
func (r *Response) Propose(m maxage.MaxAge) error {
	return r.maxAge.Propose(m)
}

// ProposeRaw records a host max-age value, mapping the configured sentinel
// to permanent.
func (r *Response) ProposeRaw(raw int64) error {
	return r.maxAge.ProposeRaw(raw)
}

// Tags exposes the tag accumulator.
func (r *Response) Tags() *tags.Accumulator { return r.tags }

// MaxAge exposes the max-age reconciler.
func (r *Response) MaxAge() *maxage.Reconciler { return r.maxAge }

// Finalize runs the tag and max-age alter collaborators. Both components
// are finalized even if one reports an error; errors are joined.
func (r *Response) Finalize(ctx context.Context) (Metadata, error) {
	set, tagErr := r.tags.Finalize(ctx)
	age, ageErr := r.maxAge.Finalize(ctx)
	if errors.Is(tagErr, tags.ErrAlreadyFinalized) && errors.Is(ageErr, maxage.ErrAlreadyFinalized) {
		return r.meta, tagErr
	}

	r.meta = Metadata{Tags: set, MaxAge: age}
	r.finalized = true
	return r.meta, errors.Join(tagErr, ageErr)
}

// Metadata returns the finalized metadata and whether Finalize ran.
func (r *Response) Metadata() (Metadata, bool) {
	return r.meta, r.finalized
}

// TTL returns the capped lifetime a local store should use for this
// response. It is 0 before Finalize.
func (r *Response) TTL() maxage.MaxAge {
	if !r.finalized {
		return 0
	}
	return r.policy.Apply(r.meta.MaxAge)
}

// Emit hands the finalized metadata to every observer.
func (r *Response) Emit(ctx context.Context) error {
	var tagErr, ageErr error
	err := r.mw.Run(ctx, observe.Operation{Kind: "emit"}, func(ctx context.Context) error {
		tagErr = r.tags.Emit(ctx)
		ageErr = r.maxAge.Emit(ctx)
		return errors.Join(tagErr, ageErr)
	})
	if delivered(tagErr) {
		r.mw.Metrics().RecordTagsEmitted(ctx, r.meta.Tags.Len())
	}
	if delivered(ageErr) {
		r.mw.Metrics().RecordMaxAge(ctx, int64(r.meta.MaxAge))
	}
	return err
}

// delivered reports whether an Emit call reached the observers; observer
// panics still count as delivered.
func delivered(err error) bool {
	var chainErr *hooks.ChainError
	return err == nil || errors.As(err, &chainErr)
}
