package redistag

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herbdool/d8cache/cache"
	"github.com/herbdool/d8cache/tags"
)

// fakeClient is an in-memory Client.
type fakeClient struct {
	mu        sync.Mutex
	strings   map[string]string
	sets      map[string]map[string]struct{}
	ttls      map[string]time.Duration
	published []string
	getErr    error
	delErr    error
	expireErr error
	pubErr    error
	pingErr   error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		strings: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
		ttls:    make(map[string]time.Duration),
	}
}

func (f *fakeClient) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.strings[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeClient) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strings[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeClient) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return redis.NewIntResult(0, f.delErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.strings[k]; ok {
			delete(f.strings, k)
			n++
		}
		if _, ok := f.sets[k]; ok {
			delete(f.sets, k)
			n++
		}
		delete(f.ttls, k)
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeClient) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sets[key]
	if !ok {
		s = make(map[string]struct{})
		f.sets[key] = s
	}
	for _, m := range members {
		s[m.(string)] = struct{}{}
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeClient) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for m := range f.sets[key] {
		out = append(out, m)
	}
	sort.Strings(out)
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeClient) TTL(_ context.Context, key string) *redis.DurationCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.ttls[key]
	if !ok {
		return redis.NewDurationResult(-1, nil)
	}
	return redis.NewDurationResult(d, nil)
}

func (f *fakeClient) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.expireErr != nil {
		return redis.NewBoolResult(false, f.expireErr)
	}
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeClient) Publish(_ context.Context, _ string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pubErr != nil {
		return redis.NewIntResult(0, f.pubErr)
	}
	f.published = append(f.published, message.(string))
	return redis.NewIntResult(1, nil)
}

func (f *fakeClient) Ping(context.Context) *redis.StatusCmd {
	if f.pingErr != nil {
		return redis.NewStatusResult("", f.pingErr)
	}
	return redis.NewStatusResult("PONG", nil)
}

func newStore(t *testing.T, opts ...Option) (*Store, *fakeClient) {
	t.Helper()
	fc := newFakeClient()
	s, err := New(fc, opts...)
	require.NoError(t, err)
	return s, fc
}

func TestNew_NilClient(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilClient)
}

func TestStore_SetGetRoundTrip(t *testing.T) {
	s, fc := newStore(t)
	ctx := context.Background()

	entry := cache.Entry{Body: []byte("<p>hi</p>"), Tags: tags.MustSet("node:1", "node_list"), MaxAge: 300}
	require.NoError(t, s.Set(ctx, "page:/:abc", entry, time.Minute))

	assert.Contains(t, fc.strings, "d8cache:page:page:/:abc")
	assert.Contains(t, fc.sets["d8cache:tag:node:1"], "page:/:abc")
	assert.Equal(t, time.Minute, fc.ttls["d8cache:tag:node_list"])

	got, ok := s.Get(ctx, "page:/:abc")
	require.True(t, ok)
	assert.Equal(t, entry.Body, got.Body)
	assert.True(t, entry.Tags.Equal(got.Tags))
	assert.EqualValues(t, 300, got.MaxAge)
}

func TestStore_TagSetTTLOnlyExtends(t *testing.T) {
	s, fc := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", cache.Entry{Tags: tags.MustSet("node:1")}, time.Hour))
	require.NoError(t, s.Set(ctx, "b", cache.Entry{Tags: tags.MustSet("node:1")}, time.Minute))

	assert.Equal(t, time.Hour, fc.ttls["d8cache:tag:node:1"])
}

func TestStore_TrackIndexesWithoutPage(t *testing.T) {
	s, fc := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Track(ctx, "file:logo.png", tags.MustSet("media:9"), 0))
	assert.Empty(t, fc.strings)
	assert.Contains(t, fc.sets["d8cache:tag:media:9"], "file:logo.png")
	assert.NotContains(t, fc.ttls, "d8cache:tag:media:9")

	require.NoError(t, s.Invalidate(ctx, tags.MustSet("media:9")))
	assert.NotContains(t, fc.sets, "d8cache:tag:media:9")
}

func TestStore_ExpireFailureIsReturned(t *testing.T) {
	s, fc := newStore(t)
	fc.expireErr = errors.New("READONLY")
	ctx := context.Background()

	err := s.Track(ctx, "a", tags.MustSet("node:1"), time.Hour)
	require.ErrorIs(t, err, fc.expireErr)
	assert.Contains(t, err.Error(), "expire node:1")

	err = s.Set(ctx, "b", cache.Entry{Body: []byte("x"), Tags: tags.MustSet("node:2")}, time.Hour)
	assert.ErrorIs(t, err, fc.expireErr)
}

func TestStore_NonPositiveTTL(t *testing.T) {
	s, fc := newStore(t)
	require.NoError(t, s.Set(context.Background(), "k", cache.Entry{Body: []byte("x")}, 0))
	assert.Empty(t, fc.strings)
}

func TestStore_InvalidKey(t *testing.T) {
	s, _ := newStore(t)
	err := s.Set(context.Background(), "", cache.Entry{}, time.Minute)
	assert.ErrorIs(t, err, cache.ErrInvalidKey)
}

func TestStore_GetMissAndFailures(t *testing.T) {
	s, fc := newStore(t)
	ctx := context.Background()

	_, ok := s.Get(ctx, "missing")
	assert.False(t, ok)

	fc.strings["d8cache:page:garbage"] = "{not json"
	_, ok = s.Get(ctx, "garbage")
	assert.False(t, ok)

	fc.getErr = errors.New("connection refused")
	_, ok = s.Get(ctx, "anything")
	assert.False(t, ok)
}

func TestStore_Invalidate(t *testing.T) {
	s, fc := newStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", cache.Entry{Tags: tags.MustSet("node:1", "node_list")}, time.Minute))
	require.NoError(t, s.Set(ctx, "b", cache.Entry{Tags: tags.MustSet("node:2", "node_list")}, time.Minute))
	require.NoError(t, s.Set(ctx, "c", cache.Entry{Tags: tags.MustSet("user:3")}, time.Minute))

	require.NoError(t, s.Invalidate(ctx, tags.MustSet("node_list", "node:1")))

	_, ok := s.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "b")
	assert.False(t, ok)
	_, ok = s.Get(ctx, "c")
	assert.True(t, ok)

	assert.NotContains(t, fc.sets, "d8cache:tag:node_list")
	assert.NotContains(t, fc.sets, "d8cache:tag:node:1")
	assert.Equal(t, []string{"node:1 node_list"}, fc.published)
}

func TestStore_InvalidateEmptySetIsNoop(t *testing.T) {
	s, fc := newStore(t)
	require.NoError(t, s.Invalidate(context.Background(), tags.Set{}))
	assert.Empty(t, fc.published)
}

func TestStore_InvalidateDeleteFailure(t *testing.T) {
	s, fc := newStore(t)
	fc.delErr = errors.New("READONLY")
	err := s.Invalidate(context.Background(), tags.MustSet("node:1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "READONLY")
}

func TestStore_PublishFailureIsNotFatal(t *testing.T) {
	s, fc := newStore(t)
	fc.pubErr = errors.New("no subscribers")
	assert.NoError(t, s.Invalidate(context.Background(), tags.MustSet("node:1")))
}

func TestStore_PrefixAndChannelOptions(t *testing.T) {
	s, fc := newStore(t, WithPrefix(""), WithChannel(""))
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", cache.Entry{Tags: tags.MustSet("node:1")}, time.Minute))
	assert.Contains(t, fc.strings, "page:k")
	assert.Contains(t, fc.sets, "tag:node:1")

	require.NoError(t, s.Invalidate(ctx, tags.MustSet("node:1")))
	assert.Empty(t, fc.published)
}

func TestStore_Ping(t *testing.T) {
	s, fc := newStore(t)
	assert.NoError(t, s.Ping(context.Background()))

	fc.pingErr = errors.New("down")
	assert.Error(t, s.Ping(context.Background()))
}

func TestStore_Name(t *testing.T) {
	s, _ := newStore(t)
	assert.Equal(t, "redis", s.Name())
}

// subscription feeds Listen from a plain channel.
type subscription chan *redis.Message

func (s subscription) Channel(...redis.ChannelOption) <-chan *redis.Message { return s }

func TestStore_ListenInvalidatesLocalCache(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	local := cache.NewMemoryCache()
	entry := cache.Entry{Body: []byte("x"), Tags: tags.MustSet("node:1"), MaxAge: 60}
	require.NoError(t, local.Set(ctx, "a", entry, time.Minute))
	require.NoError(t, local.Set(ctx, "b", cache.Entry{Body: []byte("y"), Tags: tags.MustSet("node:2")}, time.Minute))

	sub := make(subscription, 2)
	sub <- &redis.Message{Channel: s.Channel(), Payload: "bad\x00tag"}
	sub <- &redis.Message{Channel: s.Channel(), Payload: "node:1 node_list"}
	close(sub)

	require.NoError(t, s.Listen(ctx, sub, local))
	_, ok := local.Get(ctx, "a")
	assert.False(t, ok)
	_, ok = local.Get(ctx, "b")
	assert.True(t, ok)
}

func TestStore_ListenStopsOnCancel(t *testing.T) {
	s, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Listen(ctx, make(subscription), cache.NewMemoryCache())
	assert.ErrorIs(t, err, context.Canceled)
}
