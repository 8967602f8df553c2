// Package coordinator ties tag accumulation, max-age reconciliation and
// invalidation to one collaborator registry and one configuration.
//
// A Coordinator is process-wide. NewResponse creates the per-response
// state; Invalidate runs an invalidation through the registered backends.
package coordinator

import (
	"context"
	"slices"

	"github.com/herbdool/d8cache/hooks"
	"github.com/herbdool/d8cache/invalidate"
	"github.com/herbdool/d8cache/maxage"
	"github.com/herbdool/d8cache/observe"
	"github.com/herbdool/d8cache/tags"
)

// Config holds the externally configured values the engine reads. A zero
// Policy caps every response at 0 seconds, which disables caching.
type Config struct {
	// Policy caps the emitted max-age.
	Policy maxage.Policy

	// Sentinel is the raw host value meaning permanent. 0 always means
	// "do not cache" and is replaced by the default.
	// Default: -1
	Sentinel int64

	// TagHeader is the response header carrying tags.
	// Default: Surrogate-Key
	TagHeader string
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Policy:    maxage.DefaultPolicy(),
		Sentinel:  maxage.DefaultSentinel,
		TagHeader: tags.DefaultHeader,
	}
}

// Coordinator is safe for concurrent use.
type Coordinator struct {
	registry    *Registry
	config      Config
	mw          *observe.Middleware
	invalidator *invalidate.Invalidator
}

// Option configures a Coordinator.
type Option func(*options)

type options struct {
	mw        *observe.Middleware
	invalOpts []invalidate.Option
}

// WithMiddleware instruments emission and invalidation.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *options) {
		o.mw = mw
	}
}

// WithInvalidateOptions passes options to the underlying invalidator.
func WithInvalidateOptions(opts ...invalidate.Option) Option {
	return func(o *options) {
		o.invalOpts = append(o.invalOpts, opts...)
	}
}

// New creates a Coordinator. A nil registry is replaced by an empty one.
func New(reg *Registry, cfg Config, opts ...Option) *Coordinator {
	if reg == nil {
		reg = NewRegistry()
	}
	if cfg.TagHeader == "" {
		cfg.TagHeader = tags.DefaultHeader
	}
	if cfg.Sentinel == 0 {
		cfg.Sentinel = maxage.DefaultSentinel
	}

	o := options{mw: observe.NopMiddleware()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mw == nil {
		o.mw = observe.NopMiddleware()
	}

	invalOpts := append([]invalidate.Option{invalidate.WithMiddleware(o.mw)}, o.invalOpts...)
	return &Coordinator{
		registry:    reg,
		config:      cfg,
		mw:          o.mw,
		invalidator: invalidate.New(&reg.InvalidateAlters, &reg.Backends, invalOpts...),
	}
}

// Registry returns the collaborator registry.
func (c *Coordinator) Registry() *Registry { return c.registry }

// Config returns the configuration.
func (c *Coordinator) Config() Config { return c.config }

// HeaderSetter is the narrow view of an outgoing header map.
// http.Header satisfies it.
type HeaderSetter interface {
	Set(key, value string)
}

// ResponseOption configures a Response.
type ResponseOption func(*responseOptions)

type responseOptions struct {
	header  HeaderSetter
	session maxage.SessionDetector
}

// WithHeaders writes the tag header and Cache-Control to h when the
// response is emitted. Cache-Control is omitted for session-bound requests;
// session may be nil.
func WithHeaders(h HeaderSetter, session maxage.SessionDetector) ResponseOption {
	return func(o *responseOptions) {
		o.header = h
		o.session = session
	}
}

// NewResponse starts the cache metadata of one response. It reads one
// snapshot of each collaborator chain; header observers run after the
// registered ones.
func (c *Coordinator) NewResponse(opts ...ResponseOption) *Response {
	var o responseOptions
	for _, opt := range opts {
		opt(&o)
	}

	tagObservers := c.registry.TagObservers.Snapshot()
	maxAgeObservers := c.registry.MaxAgeObservers.Snapshot()
	if o.header != nil {
		tagObservers = append(slices.Clip(tagObservers), hooks.Entry[tags.EmitFunc]{
			Name: "header:" + c.config.TagHeader,
			Fn:   tags.HeaderObserver(o.header, c.config.TagHeader),
		})
		maxAgeObservers = append(slices.Clip(maxAgeObservers), hooks.Entry[maxage.EmitFunc]{
			Name: "header:Cache-Control",
			Fn:   maxage.CacheControlObserver(c.config.Policy, o.session, o.header),
		})
	}

	return &Response{
		tags:   tags.NewAccumulator(c.registry.TagAlters.Snapshot(), tagObservers),
		maxAge: maxage.NewReconciler(maxage.Config{Sentinel: c.config.Sentinel}, c.registry.MaxAgeAlters.Snapshot(), maxAgeObservers),
		policy: c.config.Policy,
		mw:     c.mw,
	}
}

// Invalidate purges content carrying any of the given tags through every
// registered backend.
func (c *Coordinator) Invalidate(ctx context.Context, input ...tags.Tag) (invalidate.Result, error) {
	return c.invalidator.Invalidate(ctx, input...)
}
