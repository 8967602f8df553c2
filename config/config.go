// Package config loads d8cache settings from the environment.
//
// Load reads an optional .env file first; variables already set in the
// process environment win. Every variable is prefixed with D8CACHE_.
// Secret-bearing values may be ${VAR} expansions or secretref references,
// resolved by ResolveSecrets.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"github.com/herbdool/d8cache/backend/httppurge"
	"github.com/herbdool/d8cache/coordinator"
	"github.com/herbdool/d8cache/maxage"
	"github.com/herbdool/d8cache/observe"
	"github.com/herbdool/d8cache/resilience"
	"github.com/herbdool/d8cache/secret"
)

// ErrInvalidConfig wraps every load and validation failure.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config is the complete process configuration.
type Config struct {
	Cache      CacheConfig
	Invalidate InvalidateConfig
	Purge      PurgeConfig
	Redis      RedisConfig
	Observe    ObserveConfig
}

// CacheConfig configures header emission.
type CacheConfig struct {
	// MaximumAge caps emitted max-age in seconds; -1 leaves it uncapped.
	MaximumAge int64
	// PermanentSentinel is the raw host value meaning permanent.
	PermanentSentinel int64
	TagHeader         string
}

// InvalidateConfig configures backend dispatch.
type InvalidateConfig struct {
	Timeout          time.Duration
	MaxConcurrent    int
	MaxAttempts      int
	Backoff          string
	BreakerThreshold int
	BreakerCooldown  time.Duration
}

// PurgeConfig configures the HTTP purge backend. An empty URL disables it.
type PurgeConfig struct {
	URL            string
	Method         string
	Header         string
	MaxHeaderBytes int
	Token          string
	TokenHeader    string
	JWTSecret      string
	JWTIssuer      string
}

// RedisConfig configures the Redis store. An empty Addr disables it.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Prefix      string
	Channel     string
	DialTimeout time.Duration
}

// ObserveConfig configures logging, tracing and metrics.
type ObserveConfig struct {
	ServiceName     string
	LogLevel        string
	TracingExporter string
	SamplePct       float64
	MetricsExporter string
}

// Load reads files (default .env) when present, then the environment.
func Load(files ...string) (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(files...)
	return FromEnv(os.LookupEnv)
}

// FromEnv builds and validates a Config from lookup.
func FromEnv(lookup secret.LookupFunc) (*Config, error) {
	e := env{lookup: lookup}

	cfg := &Config{
		Cache: CacheConfig{
			MaximumAge:        e.getInt64Env("D8CACHE_PAGE_CACHE_MAXIMUM_AGE", 3600),
			PermanentSentinel: e.getInt64Env("D8CACHE_PERMANENT_SENTINEL", maxage.DefaultSentinel),
			TagHeader:         e.getEnv("D8CACHE_TAG_HEADER", "Surrogate-Key"),
		},
		Invalidate: InvalidateConfig{
			Timeout:          e.getDurationEnv("D8CACHE_INVALIDATE_TIMEOUT", 10*time.Second),
			MaxConcurrent:    e.getIntEnv("D8CACHE_INVALIDATE_MAX_CONCURRENT", 8),
			MaxAttempts:      e.getIntEnv("D8CACHE_INVALIDATE_MAX_ATTEMPTS", 3),
			Backoff:          e.getEnv("D8CACHE_INVALIDATE_BACKOFF", "exponential"),
			BreakerThreshold: e.getIntEnv("D8CACHE_BREAKER_THRESHOLD", 5),
			BreakerCooldown:  e.getDurationEnv("D8CACHE_BREAKER_COOLDOWN", 30*time.Second),
		},
		Purge: PurgeConfig{
			URL:            e.getEnv("D8CACHE_PURGE_URL", ""),
			Method:         e.getEnv("D8CACHE_PURGE_METHOD", "PURGE"),
			Header:         e.getEnv("D8CACHE_PURGE_HEADER", "Surrogate-Key"),
			MaxHeaderBytes: e.getIntEnv("D8CACHE_PURGE_MAX_HEADER_BYTES", 4096),
			Token:          e.getEnv("D8CACHE_PURGE_TOKEN", ""),
			TokenHeader:    e.getEnv("D8CACHE_PURGE_TOKEN_HEADER", "X-Purge-Token"),
			JWTSecret:      e.getEnv("D8CACHE_PURGE_JWT_SECRET", ""),
			JWTIssuer:      e.getEnv("D8CACHE_PURGE_JWT_ISSUER", "d8cache"),
		},
		Redis: RedisConfig{
			Addr:        e.getEnv("D8CACHE_REDIS_ADDR", ""),
			Password:    e.getEnv("D8CACHE_REDIS_PASSWORD", ""),
			DB:          e.getIntEnv("D8CACHE_REDIS_DB", 0),
			Prefix:      e.getEnv("D8CACHE_REDIS_PREFIX", "d8cache"),
			Channel:     e.getEnv("D8CACHE_REDIS_CHANNEL", "d8cache:invalidate"),
			DialTimeout: e.getDurationEnv("D8CACHE_REDIS_DIAL_TIMEOUT", 5*time.Second),
		},
		Observe: ObserveConfig{
			ServiceName:     e.getEnv("D8CACHE_SERVICE_NAME", "d8cache"),
			LogLevel:        e.getEnv("D8CACHE_LOG_LEVEL", "info"),
			TracingExporter: e.getEnv("D8CACHE_TRACING_EXPORTER", "none"),
			SamplePct:       e.getFloatEnv("D8CACHE_TRACE_SAMPLE", 1.0),
			MetricsExporter: e.getEnv("D8CACHE_METRICS_EXPORTER", "none"),
		},
	}

	if err := errors.Join(e.errs...); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	if c.Cache.MaximumAge < -1 {
		errs = append(errs, fmt.Errorf("page cache maximum age %d is negative", c.Cache.MaximumAge))
	}
	if c.Cache.PermanentSentinel >= 0 {
		errs = append(errs, fmt.Errorf("permanent sentinel %d must be negative; 0 means do not cache and positive values are real lifetimes",
			c.Cache.PermanentSentinel))
	}
	if c.Cache.TagHeader == "" {
		errs = append(errs, errors.New("tag header is required"))
	}
	if c.Invalidate.Timeout <= 0 {
		errs = append(errs, errors.New("invalidate timeout must be positive"))
	}
	if c.Invalidate.MaxConcurrent < 1 {
		errs = append(errs, errors.New("invalidate max concurrent must be at least 1"))
	}
	if c.Invalidate.MaxAttempts < 1 {
		errs = append(errs, errors.New("invalidate max attempts must be at least 1"))
	}
	if _, err := resilience.ParseBackoff(c.Invalidate.Backoff); err != nil {
		errs = append(errs, err)
	}
	if c.Invalidate.BreakerThreshold < 0 {
		errs = append(errs, errors.New("breaker threshold must not be negative"))
	}
	if c.Purge.URL != "" && c.Purge.MaxHeaderBytes < 64 {
		errs = append(errs, fmt.Errorf("purge max header bytes %d is below 64", c.Purge.MaxHeaderBytes))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("redis db must not be negative"))
	}

	obs := c.ObserveConfig()
	if err := obs.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ResolveSecrets replaces secret references in the purge token, the JWT
// secret and the Redis password.
func (c *Config) ResolveSecrets(ctx context.Context, r *secret.Resolver) error {
	if r == nil {
		r = secret.NewResolver()
	}
	err := r.ResolveAll(ctx, map[string]*string{
		"D8CACHE_PURGE_TOKEN":      &c.Purge.Token,
		"D8CACHE_PURGE_JWT_SECRET": &c.Purge.JWTSecret,
		"D8CACHE_REDIS_PASSWORD":   &c.Redis.Password,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Policy returns the emission cap.
func (c *Config) Policy() maxage.Policy {
	if c.Cache.MaximumAge < 0 {
		return maxage.Policy{Cap: maxage.Permanent}
	}
	return maxage.Policy{Cap: maxage.MaxAge(c.Cache.MaximumAge)}
}

// CoordinatorConfig returns the engine configuration.
func (c *Config) CoordinatorConfig() coordinator.Config {
	return coordinator.Config{
		Policy:    c.Policy(),
		Sentinel:  c.Cache.PermanentSentinel,
		TagHeader: c.Cache.TagHeader,
	}
}

// RetryConfig returns the per-backend retry policy.
func (c *Config) RetryConfig() resilience.RetryConfig {
	backoff, _ := resilience.ParseBackoff(c.Invalidate.Backoff)
	return resilience.RetryConfig{
		MaxAttempts: c.Invalidate.MaxAttempts,
		Backoff:     backoff,
		Jitter:      true,
	}
}

// BreakerConfig returns the per-backend circuit breaker settings.
func (c *Config) BreakerConfig() resilience.BreakerConfig {
	return resilience.BreakerConfig{
		Threshold: c.Invalidate.BreakerThreshold,
		Cooldown:  c.Invalidate.BreakerCooldown,
	}
}

// PurgeEnabled reports whether the HTTP purge backend is configured.
func (c *Config) PurgeEnabled() bool { return c.Purge.URL != "" }

// HTTPPurgeConfig returns the purge backend settings.
func (c *Config) HTTPPurgeConfig() httppurge.Config {
	cfg := httppurge.Config{
		Name:           "http",
		URL:            c.Purge.URL,
		Method:         c.Purge.Method,
		Header:         c.Purge.Header,
		MaxHeaderBytes: c.Purge.MaxHeaderBytes,
		Token:          c.Purge.Token,
		TokenHeader:    c.Purge.TokenHeader,
		JWTIssuer:      c.Purge.JWTIssuer,
	}
	if c.Purge.JWTSecret != "" {
		cfg.JWTSecret = []byte(c.Purge.JWTSecret)
	}
	return cfg
}

// RedisEnabled reports whether the Redis store is configured.
func (c *Config) RedisEnabled() bool { return c.Redis.Addr != "" }

// RedisOptions returns client options for the Redis store.
func (c *Config) RedisOptions() *redis.Options {
	return &redis.Options{
		Addr:        c.Redis.Addr,
		Password:    c.Redis.Password,
		DB:          c.Redis.DB,
		DialTimeout: c.Redis.DialTimeout,
	}
}

// ObserveConfig returns the observer configuration. Tracing and metrics
// are enabled when an exporter other than none is named.
func (c *Config) ObserveConfig() observe.Config {
	obs := observe.DefaultConfig(c.Observe.ServiceName)
	obs.Logging.Level = c.Observe.LogLevel
	if ex := c.Observe.TracingExporter; ex != "" && ex != "none" {
		obs.Tracing = observe.TracingConfig{Enabled: true, Exporter: ex, SamplePct: c.Observe.SamplePct}
	}
	if ex := c.Observe.MetricsExporter; ex != "" && ex != "none" {
		obs.Metrics = observe.MetricsConfig{Enabled: true, Exporter: ex}
	}
	return obs
}

// env reads typed variables, collecting parse failures.
type env struct {
	lookup secret.LookupFunc
	errs   []error
}

func (e *env) raw(key string) (string, bool) {
	if e.lookup == nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *env) getEnv(key, defaultValue string) string {
	if v, ok := e.raw(key); ok {
		return v
	}
	return defaultValue
}

func (e *env) getIntEnv(key string, defaultValue int) int {
	v, ok := e.raw(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return defaultValue
	}
	return n
}

func (e *env) getInt64Env(key string, defaultValue int64) int64 {
	v, ok := e.raw(key)
	if !ok {
		return defaultValue
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
		return defaultValue
	}
	return n
}

func (e *env) getFloatEnv(key string, defaultValue float64) float64 {
	v, ok := e.raw(key)
	if !ok {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
		return defaultValue
	}
	return f
}

func (e *env) getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	v, ok := e.raw(key)
	if !ok {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %q is not a duration", key, v))
		return defaultValue
	}
	return d
}
