package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/herbdool/d8cache/config"
	"github.com/herbdool/d8cache/tags"
)

type purgeRecorder struct {
	mu     sync.Mutex
	keys   []string
	status int
}

func (p *purgeRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r.Method == "PURGE" {
		p.keys = append(p.keys, r.Header.Get("Surrogate-Key"))
	}
	if p.status != 0 {
		w.WriteHeader(p.status)
	}
}

func (p *purgeRecorder) purged() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

func testApp(t *testing.T, env map[string]string) *app {
	t.Helper()
	cfg, err := config.FromEnv(func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	})
	require.NoError(t, err)

	a, err := newApp(context.Background(), cfg, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a
}

func purgeApp(t *testing.T, rec *purgeRecorder) *app {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)
	return testApp(t, map[string]string{
		"D8CACHE_PURGE_URL":               srv.URL,
		"D8CACHE_INVALIDATE_MAX_ATTEMPTS": "1",
	})
}

func TestNewApp_Backends(t *testing.T) {
	a := testApp(t, nil)
	assert.Zero(t, a.coord.Registry().Backends.Len())
	assert.Equal(t, []string{"breakers"}, a.health.Names())

	a = testApp(t, map[string]string{
		"D8CACHE_REDIS_ADDR": "127.0.0.1:0",
		"D8CACHE_PURGE_URL":  "http://127.0.0.1:0/",
	})
	assert.Equal(t, []string{"redis", "http"}, a.coord.Registry().Backends.Names())
	assert.Equal(t, []string{"redis", "http", "breakers"}, a.health.Names())
}

func TestRunInvalidate(t *testing.T) {
	rec := &purgeRecorder{}
	a := purgeApp(t, rec)

	var out bytes.Buffer
	err := runInvalidate(context.Background(), a, &out, []string{"node_list", "node:1", "node:2"}, []string{"node_list"})
	require.NoError(t, err)

	assert.Equal(t, []string{"node:1 node:2"}, rec.purged())
	assert.Contains(t, out.String(), ": node:1 node:2\n")
	assert.Contains(t, out.String(), "  http ok\n")
}

func TestRunInvalidate_AllExcluded(t *testing.T) {
	rec := &purgeRecorder{}
	a := purgeApp(t, rec)

	var out bytes.Buffer
	err := runInvalidate(context.Background(), a, &out, []string{"node_list"}, []string{"node_list"})
	require.NoError(t, err)
	assert.Empty(t, rec.purged())
	assert.Contains(t, out.String(), "nothing to invalidate")
}

func TestRunInvalidate_BackendFailure(t *testing.T) {
	rec := &purgeRecorder{status: http.StatusForbidden}
	a := purgeApp(t, rec)

	var out bytes.Buffer
	err := runInvalidate(context.Background(), a, &out, []string{"node:1"}, nil)
	require.Error(t, err)
	assert.Contains(t, out.String(), "  http failed\n")
}

func TestRunInvalidate_InvalidTag(t *testing.T) {
	a := testApp(t, nil)

	var out bytes.Buffer
	err := runInvalidate(context.Background(), a, &out, []string{"bad tag"}, nil)
	require.ErrorIs(t, err, tags.ErrInvalidTag)
	assert.Empty(t, out.String())
}

func TestRunHeaders(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		tags    []string
		maxAges []int64
		session bool
		want    string
	}{
		{
			name:    "smallest proposal wins",
			tags:    []string{"node:1", "config:system.site"},
			maxAges: []int64{600, -1, 1200},
			want:    "Cache-Control: public, max-age=600\nSurrogate-Key: config:system.site node:1\n",
		},
		{
			name:    "permanent is capped",
			tags:    []string{"node:1"},
			maxAges: []int64{-1},
			want:    "Cache-Control: public, max-age=3600\nSurrogate-Key: node:1\n",
		},
		{
			name: "no proposals is permanent",
			env:  map[string]string{"D8CACHE_PAGE_CACHE_MAXIMUM_AGE": "300"},
			want: "Cache-Control: public, max-age=300\n",
		},
		{
			name:    "session bound omits cache control",
			tags:    []string{"user:7"},
			maxAges: []int64{600},
			session: true,
			want:    "Surrogate-Key: user:7\n",
		},
		{
			name:    "custom tag header",
			env:     map[string]string{"D8CACHE_TAG_HEADER": "Cache-Tag"},
			tags:    []string{"node:1"},
			maxAges: []int64{0},
			want:    "Cache-Control: public, max-age=0\nCache-Tag: node:1\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := testApp(t, tt.env)
			var out bytes.Buffer
			require.NoError(t, runHeaders(context.Background(), a, &out, tt.tags, tt.maxAges, tt.session))
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRunHeaders_Invalid(t *testing.T) {
	a := testApp(t, nil)
	var out bytes.Buffer
	require.ErrorIs(t, runHeaders(context.Background(), a, &out, []string{"bad\ttag"}, nil, false), tags.ErrInvalidTag)
	require.Error(t, runHeaders(context.Background(), a, &out, nil, []int64{-7}, false))
}

func TestRunHealth(t *testing.T) {
	a := purgeApp(t, &purgeRecorder{})
	var out bytes.Buffer
	require.NoError(t, runHealth(context.Background(), a, &out))
	assert.Contains(t, out.String(), "status: healthy\n")

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	a = testApp(t, map[string]string{"D8CACHE_PURGE_URL": srv.URL})
	out.Reset()
	require.ErrorIs(t, runHealth(context.Background(), a, &out), errUnhealthy)
	assert.Contains(t, out.String(), "unreachable")
	assert.Contains(t, out.String(), "status: unhealthy\n")
}
