// Package redistag is a Redis page store that indexes keys by cache tag.
//
// Entries are stored as JSON under <prefix>:page:<key>; every tag keeps a
// set of the page keys carrying it under <prefix>:tag:<tag>. Invalidate
// deletes the tagged pages and their tag sets, then publishes the purged
// tags on the store's channel. Processes holding local copies subscribe to
// that channel and hand the subscription to Listen.
package redistag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/herbdool/d8cache/cache"
	"github.com/herbdool/d8cache/invalidate"
	"github.com/herbdool/d8cache/maxage"
	"github.com/herbdool/d8cache/observe"
	"github.com/herbdool/d8cache/tags"
)

// Defaults.
const (
	DefaultPrefix  = "d8cache"
	DefaultChannel = "d8cache:invalidate"
)

// ErrNilClient is returned by New when no client is given.
var ErrNilClient = errors.New("redistag: client is nil")

// Client is the subset of redis.Cmdable the store uses. *redis.Client and
// *redis.ClusterClient satisfy it.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix namespaces every key. An empty prefix stores keys bare.
func WithPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithChannel sets the channel purged tags are published on. An empty
// channel disables publishing.
func WithChannel(channel string) Option {
	return func(s *Store) { s.channel = channel }
}

// WithLogger sets the logger for failures reported as misses.
func WithLogger(l observe.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store implements cache.Cache and invalidate.Backend on Redis.
type Store struct {
	client  Client
	prefix  string
	channel string
	logger  observe.Logger
}

// New creates a Store.
func New(client Client, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	s := &Store{
		client:  client,
		prefix:  DefaultPrefix,
		channel: DefaultChannel,
		logger:  observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// wireEntry is the stored JSON form of a cache.Entry.
type wireEntry struct {
	Body   []byte   `json:"body"`
	Tags   []string `json:"tags"`
	MaxAge int64    `json:"max_age"`
}

func (s *Store) namespaced(kind, key string) string {
	if s.prefix == "" {
		return kind + ":" + key
	}
	return s.prefix + ":" + kind + ":" + key
}

func (s *Store) pageKey(key string) string { return s.namespaced("page", key) }

func (s *Store) tagKey(t tags.Tag) string { return s.namespaced("tag", string(t)) }

// Get implements cache.Cache. Redis and decoding failures are logged and
// reported as a miss.
func (s *Store) Get(ctx context.Context, key string) (cache.Entry, bool) {
	data, err := s.client.Get(ctx, s.pageKey(key)).Bytes()
	if err == redis.Nil {
		return cache.Entry{}, false
	}
	if err != nil {
		s.logger.Warn(ctx, "redis get failed", observe.F("key", key), observe.Err(err))
		return cache.Entry{}, false
	}

	var w wireEntry
	if err := json.Unmarshal(data, &w); err != nil {
		s.logger.Warn(ctx, "redis entry undecodable", observe.F("key", key), observe.Err(err))
		return cache.Entry{}, false
	}
	set, err := tags.FromStrings(w.Tags...)
	if err != nil {
		s.logger.Warn(ctx, "redis entry has invalid tags", observe.F("key", key), observe.Err(err))
		return cache.Entry{}, false
	}
	return cache.Entry{Body: w.Body, Tags: set, MaxAge: maxage.MaxAge(w.MaxAge)}, true
}

// Set implements cache.Cache. The page is written first, then indexed
// under each tag; every tag set lives at least as long as the page.
func (s *Store) Set(ctx context.Context, key string, e cache.Entry, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(wireEntry{Body: e.Body, Tags: e.Tags.Strings(), MaxAge: int64(e.MaxAge)})
	if err != nil {
		return fmt.Errorf("redistag: marshal entry: %w", err)
	}
	if err := s.client.Set(ctx, s.pageKey(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redistag: set %s: %w", key, err)
	}

	return s.Track(ctx, key, e.Tags, ttl)
}

// Track indexes key under every tag of set without storing a page, for
// content kept outside Redis that must still be purged by tag. A positive
// ttl extends each tag set to live at least that long, so a tag set never
// expires before a page it lists; otherwise the tag sets keep their current
// expiry. A failed extension is returned.
func (s *Store) Track(ctx context.Context, key string, set tags.Set, ttl time.Duration) error {
	for _, t := range set.Sorted() {
		tk := s.tagKey(t)
		if err := s.client.SAdd(ctx, tk, key).Err(); err != nil {
			return fmt.Errorf("redistag: index %s under %s: %w", key, t, err)
		}
		if ttl <= 0 {
			continue
		}
		if cur, err := s.client.TTL(ctx, tk).Result(); err == nil && cur >= ttl {
			continue
		}
		if err := s.client.Expire(ctx, tk, ttl).Err(); err != nil {
			return fmt.Errorf("redistag: expire %s: %w", t, err)
		}
	}
	return nil
}

// Delete implements cache.Cache. Tag sets may keep the stale key; it is
// harmless on the next invalidation.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.pageKey(key)).Err(); err != nil {
		return fmt.Errorf("redistag: delete %s: %w", key, err)
	}
	return nil
}

// Name implements invalidate.Backend.
func (s *Store) Name() string { return "redis" }

// Invalidate deletes every page indexed under a tag of set along with the
// tag sets, then publishes the tags. A publish failure is logged only;
// the pages are already gone.
func (s *Store) Invalidate(ctx context.Context, set tags.Set) error {
	if set.Len() == 0 {
		return nil
	}

	seen := make(map[string]struct{})
	var keys []string
	for _, t := range set.Sorted() {
		tk := s.tagKey(t)
		members, err := s.client.SMembers(ctx, tk).Result()
		if err != nil && err != redis.Nil {
			return fmt.Errorf("redistag: members of %s: %w", t, err)
		}
		for _, m := range members {
			pk := s.pageKey(m)
			if _, ok := seen[pk]; ok {
				continue
			}
			seen[pk] = struct{}{}
			keys = append(keys, pk)
		}
		keys = append(keys, tk)
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redistag: delete tagged pages: %w", err)
	}

	if s.channel != "" {
		if err := s.client.Publish(ctx, s.channel, tags.Join(set)).Err(); err != nil {
			s.logger.Warn(ctx, "publish invalidation failed",
				observe.F("channel", s.channel), observe.Err(err))
		}
	}
	return nil
}

// Channel returns the channel invalidations are published on; empty when
// publishing is disabled.
func (s *Store) Channel() string { return s.channel }

// Subscription is the part of *redis.PubSub that Listen reads.
type Subscription interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
}

// Listen applies invalidations published on the store's channel to local,
// typically a cache.MemoryCache, until ctx is done or the subscription is
// closed. Malformed messages and local failures are logged and skipped.
//
//	sub := client.Subscribe(ctx, store.Channel())
//	defer sub.Close()
//	go store.Listen(ctx, sub, memory)
func (s *Store) Listen(ctx context.Context, sub Subscription, local invalidate.Backend) error {
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			set, err := tags.Parse(msg.Payload)
			if err != nil {
				s.logger.Warn(ctx, "ignoring malformed invalidation message",
					observe.F("channel", msg.Channel), observe.Err(err))
				continue
			}
			if err := local.Invalidate(ctx, set); err != nil {
				s.logger.Warn(ctx, "local invalidation failed",
					observe.F("backend", local.Name()), observe.Err(err))
			}
		}
	}
}

// Ping reports whether Redis is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redistag: ping: %w", err)
	}
	return nil
}

var (
	_ cache.Cache        = (*Store)(nil)
	_ invalidate.Backend = (*Store)(nil)
	_ Client             = (*redis.Client)(nil)
	_ Subscription       = (*redis.PubSub)(nil)
)
