package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/herbdool/d8cache/maxage"
	"github.com/herbdool/d8cache/tags"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache       = errors.New("cache: cache is nil")
	ErrNilCoordinator = errors.New("cache: coordinator is nil")
	ErrInvalidKey     = errors.New("cache: key is invalid")
	ErrKeyTooLong     = errors.New("cache: key exceeds max length")
)

// Entry is a stored response.
type Entry struct {
	Body   []byte
	Tags   tags.Set
	MaxAge maxage.MaxAge
}

// Cache stores rendered responses.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: methods should honor cancellation/deadlines where applicable.
// - Errors: Get reports backend failures as a miss.
type Cache interface {
	// Get retrieves an entry. Returns false on miss or expiry.
	Get(ctx context.Context, key string) (Entry, bool)

	// Set stores an entry for ttl. A non-positive ttl stores nothing.
	Set(ctx context.Context, key string, e Entry, ttl time.Duration) error

	// Delete removes an entry. Idempotent.
	Delete(ctx context.Context, key string) error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
