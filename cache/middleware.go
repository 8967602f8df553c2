package cache

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/herbdool/d8cache/coordinator"
	"github.com/herbdool/d8cache/observe"
)

// RenderFunc produces a response body, recording its cache metadata on r.
type RenderFunc func(ctx context.Context, r *coordinator.Response) ([]byte, error)

// Page is a response served by Middleware.
type Page struct {
	Body []byte
	Meta coordinator.Metadata
	Hit  bool
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithKeyer overrides the default keyer.
func WithKeyer(k Keyer) MiddlewareOption {
	return func(m *Middleware) {
		if k != nil {
			m.keyer = k
		}
	}
}

// WithSkipRules bypasses the cache when any rule matches.
func WithSkipRules(rules ...SkipRule) MiddlewareOption {
	return func(m *Middleware) {
		m.skip = append(m.skip, rules...)
	}
}

// WithInstrumentation instruments renders.
func WithInstrumentation(mw *observe.Middleware) MiddlewareOption {
	return func(m *Middleware) {
		if mw != nil {
			m.mw = mw
		}
	}
}

// Middleware is a read-through page cache. It is safe for concurrent use.
type Middleware struct {
	cache Cache
	keyer Keyer
	coord *coordinator.Coordinator
	skip  []SkipRule
	mw    *observe.Middleware
	group singleflight.Group
}

// NewMiddleware creates a page cache over c using coord for metadata.
func NewMiddleware(c Cache, coord *coordinator.Coordinator, opts ...MiddlewareOption) (*Middleware, error) {
	if c == nil {
		return nil, ErrNilCache
	}
	if coord == nil {
		return nil, ErrNilCoordinator
	}
	m := &Middleware{
		cache: c,
		keyer: NewDefaultKeyer(),
		coord: coord,
		mw:    observe.NopMiddleware(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Render serves route from the cache or renders it with fn.
//
// A miss is rendered into a response built with opts, finalized once and
// emitted; the finalized tags and max-age are what gets stored. A hit, or
// a caller that waited on a concurrent miss for the same key, replays the
// stored metadata through its own response so that opts (typically
// coordinator.WithHeaders) are honored per request. Render errors are
// never stored; neither are responses whose finalization failed or whose
// capped lifetime is 0.
func (m *Middleware) Render(ctx context.Context, route string, vary map[string]any, fn RenderFunc, opts ...coordinator.ResponseOption) (Page, error) {
	var page Page
	err := m.mw.Run(ctx, observe.Operation{Kind: "render", Target: route}, func(ctx context.Context) error {
		var err error
		page, err = m.render(ctx, route, vary, fn, opts)
		return err
	}, attribute.String("d8cache.route", route))
	return page, err
}

func (m *Middleware) render(ctx context.Context, route string, vary map[string]any, fn RenderFunc, opts []coordinator.ResponseOption) (Page, error) {
	if m.skipped(ctx, route) {
		return m.renderFresh(ctx, fn, opts)
	}

	key, err := m.keyer.Key(route, vary)
	if err != nil {
		m.mw.Logger().Warn(ctx, "cache key failed, rendering uncached",
			observe.F("route", route), observe.Err(err))
		return m.renderFresh(ctx, fn, opts)
	}

	if entry, ok := m.cache.Get(ctx, key); ok {
		return m.replay(ctx, entry, true, opts)
	}

	// The singleflight callback runs on the leader's goroutine, so own is
	// only set for the caller that rendered.
	var own *Page
	v, err, _ := m.group.Do(key, func() (any, error) {
		page, entry, err := m.fill(ctx, key, fn, opts)
		if err != nil {
			return nil, err
		}
		own = &page
		return entry, nil
	})
	if err != nil {
		return Page{}, err
	}
	if own != nil {
		return *own, nil
	}
	return m.replay(ctx, v.(Entry), false, opts)
}

// fill renders a miss, stores it when cacheable and emits it.
func (m *Middleware) fill(ctx context.Context, key string, fn RenderFunc, opts []coordinator.ResponseOption) (Page, Entry, error) {
	resp := m.coord.NewResponse(opts...)
	body, err := fn(ctx, resp)
	if err != nil {
		return Page{}, Entry{}, fmt.Errorf("cache: render %s: %w", key, err)
	}

	meta, err := resp.Finalize(ctx)
	entry := Entry{Body: body, Tags: meta.Tags, MaxAge: meta.MaxAge}
	switch ttl := m.coord.Config().Policy.TTL(meta.MaxAge); {
	case err != nil:
		m.mw.Logger().Warn(ctx, "finalize failed, not storing",
			observe.F("key", key), observe.Err(err))
	case ttl > 0:
		if err := m.cache.Set(ctx, key, entry, ttl); err != nil {
			m.mw.Logger().Warn(ctx, "cache store failed",
				observe.F("key", key), observe.Err(err))
		}
	}

	if err := resp.Emit(ctx); err != nil {
		m.mw.Logger().Warn(ctx, "emit failed", observe.Err(err))
	}
	return Page{Body: body, Meta: meta}, entry, nil
}

// replay emits stored metadata through a per-request response.
func (m *Middleware) replay(ctx context.Context, entry Entry, hit bool, opts []coordinator.ResponseOption) (Page, error) {
	resp := m.coord.NewResponse(opts...)
	if err := resp.MergeTags(entry.Tags); err != nil {
		return Page{}, err
	}
	if err := resp.Propose(entry.MaxAge); err != nil {
		return Page{}, err
	}
	return m.finish(ctx, resp, entry.Body, hit)
}

func (m *Middleware) renderFresh(ctx context.Context, fn RenderFunc, opts []coordinator.ResponseOption) (Page, error) {
	resp := m.coord.NewResponse(opts...)
	body, err := fn(ctx, resp)
	if err != nil {
		return Page{}, err
	}
	return m.finish(ctx, resp, body, false)
}

// finish finalizes and emits resp. Collaborator failures are logged; the
// page is still served with the metadata that was produced.
func (m *Middleware) finish(ctx context.Context, resp *coordinator.Response, body []byte, hit bool) (Page, error) {
	meta, err := resp.Finalize(ctx)
	if err != nil {
		m.mw.Logger().Warn(ctx, "finalize failed", observe.Err(err))
	}
	if err := resp.Emit(ctx); err != nil {
		m.mw.Logger().Warn(ctx, "emit failed", observe.Err(err))
	}
	return Page{Body: body, Meta: meta, Hit: hit}, nil
}

func (m *Middleware) skipped(ctx context.Context, route string) bool {
	for _, rule := range m.skip {
		if rule != nil && rule(ctx, route) {
			return true
		}
	}
	return false
}
