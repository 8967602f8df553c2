package cache

import (
	"context"
	"sync"
	"time"

	"github.com/herbdool/d8cache/invalidate"
	"github.com/herbdool/d8cache/tags"
)

// MemoryCache is an in-memory Cache with a reverse index from tag to keys.
type MemoryCache struct {
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]*memoryEntry
	byTag   map[tags.Tag]map[string]struct{}
}

type memoryEntry struct {
	entry     Entry
	expiresAt time.Time
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:     time.Now,
		entries: make(map[string]*memoryEntry),
		byTag:   make(map[tags.Tag]map[string]struct{}),
	}
}

// Get retrieves an entry. Expired entries are removed lazily.
func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, false
	}

	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == e {
			c.removeLocked(key)
		}
		c.mu.Unlock()
		return Entry{}, false
	}
	return Entry{Body: e.entry.Body, Tags: e.entry.Tags.Clone(), MaxAge: e.entry.MaxAge}, true
}

// Set stores an entry and indexes its tags. A non-positive ttl stores
// nothing and leaves any previous entry in place.
func (c *MemoryCache) Set(_ context.Context, key string, e Entry, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	stored := &memoryEntry{
		entry:     Entry{Body: e.Body, Tags: e.Tags.Clone(), MaxAge: e.MaxAge},
		expiresAt: c.now().Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(key)
	c.entries[key] = stored
	for _, t := range stored.entry.Tags.Sorted() {
		keys, ok := c.byTag[t]
		if !ok {
			keys = make(map[string]struct{})
			c.byTag[t] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

// Delete removes an entry. Idempotent.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	c.removeLocked(key)
	c.mu.Unlock()
	return nil
}

// Name implements invalidate.Backend.
func (c *MemoryCache) Name() string { return "memory" }

// Invalidate evicts every entry carrying any tag of set.
func (c *MemoryCache) Invalidate(_ context.Context, set tags.Set) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range set.Sorted() {
		for key := range c.byTag[t] {
			c.removeLocked(key)
		}
	}
	return nil
}

// Keys returns the number of keys indexed under t.
func (c *MemoryCache) Keys(t tags.Tag) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byTag[t])
}

// Len returns the number of stored entries, including expired ones not yet
// removed.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) removeLocked(key string) {
	e, ok := c.entries[key]
	if !ok {
		return
	}
	delete(c.entries, key)
	for _, t := range e.entry.Tags.Sorted() {
		keys := c.byTag[t]
		delete(keys, key)
		if len(keys) == 0 {
			delete(c.byTag, t)
		}
	}
}

var (
	_ Cache              = (*MemoryCache)(nil)
	_ invalidate.Backend = (*MemoryCache)(nil)
)
