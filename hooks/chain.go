package hooks

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
)

// Point names an extension point.
type Point string

// Extension points understood by the engine.
const (
	EmitCacheTags               Point = "emit_cache_tags"
	PreEmitCacheTagsAlter       Point = "pre_emit_cache_tags_alter"
	EmitCacheMaxAge             Point = "emit_cache_max_age"
	PreEmitCacheMaxAgeAlter     Point = "pre_emit_cache_max_age_alter"
	InvalidateCacheTags         Point = "invalidate_cache_tags"
	PreInvalidateCacheTagsAlter Point = "pre_invalidate_cache_tags_alter"
)

// Points returns every extension point in a stable order.
func Points() []Point {
	return []Point{
		EmitCacheTags,
		PreEmitCacheTagsAlter,
		EmitCacheMaxAge,
		PreEmitCacheMaxAgeAlter,
		InvalidateCacheTags,
		PreInvalidateCacheTagsAlter,
	}
}

// Entry is a named collaborator callback.
type Entry[F any] struct {
	Name string
	Fn   F
}

// Chain is an ordered, named list of collaborators.
//
// Contract:
// - Concurrency: safe for concurrent use. Writers are serialized; readers
//   never block and always see a complete registration list.
// - Ordering: Snapshot returns entries in registration order.
// - Ownership: the slice returned by Snapshot must not be modified.
//
// The zero value is an empty chain ready for use.
type Chain[F any] struct {
	mu      sync.Mutex
	entries atomic.Pointer[[]Entry[F]]
}

// Register appends a collaborator to the end of the chain.
func (c *Chain[F]) Register(name string, fn F) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if isNil(fn) {
		return fmt.Errorf("%w: %q", ErrNilCallback, name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.Snapshot()
	for _, e := range current {
		if e.Name == name {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
	}

	next := make([]Entry[F], len(current), len(current)+1)
	copy(next, current)
	next = append(next, Entry[F]{Name: name, Fn: fn})
	c.entries.Store(&next)
	return nil
}

// MustRegister is like Register but panics on error. It is intended for
// process startup wiring.
func (c *Chain[F]) MustRegister(name string, fn F) {
	if err := c.Register(name, fn); err != nil {
		panic(err)
	}
}

// Unregister removes the named collaborator. It reports whether an entry
// was removed.
func (c *Chain[F]) Unregister(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.Snapshot()
	for i, e := range current {
		if e.Name != name {
			continue
		}
		next := make([]Entry[F], 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		c.entries.Store(&next)
		return true
	}
	return false
}

// Snapshot returns the current registration list.
func (c *Chain[F]) Snapshot() []Entry[F] {
	p := c.entries.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Len returns the number of registered collaborators.
func (c *Chain[F]) Len() int {
	return len(c.Snapshot())
}

// Names returns collaborator names in registration order.
func (c *Chain[F]) Names() []string {
	snap := c.Snapshot()
	names := make([]string, len(snap))
	for i, e := range snap {
		names[i] = e.Name
	}
	return names
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
