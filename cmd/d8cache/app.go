package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-redis/redis/v8"

	"github.com/herbdool/d8cache/backend/httppurge"
	"github.com/herbdool/d8cache/backend/redistag"
	"github.com/herbdool/d8cache/config"
	"github.com/herbdool/d8cache/coordinator"
	"github.com/herbdool/d8cache/health"
	"github.com/herbdool/d8cache/invalidate"
	"github.com/herbdool/d8cache/observe"
	"github.com/herbdool/d8cache/resilience"
)

// app is the wired engine behind every subcommand.
type app struct {
	cfg      *config.Config
	obs      observe.Observer
	mw       *observe.Middleware
	coord    *coordinator.Coordinator
	breakers *resilience.Breakers
	health   *health.Aggregator
	closers  []func() error
}

// newApp builds the coordinator and registers a backend for every enabled
// integration: the Redis tag store and the HTTP purger.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	obsCfg := cfg.ObserveConfig()
	obsCfg.Logging.Output = logOut
	obs, err := observe.NewObserver(ctx, obsCfg)
	if err != nil {
		return nil, fmt.Errorf("observer: %w", err)
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, fmt.Errorf("middleware: %w", err)
	}

	a := &app{
		cfg:      cfg,
		obs:      obs,
		mw:       mw,
		breakers: resilience.NewBreakers(cfg.BreakerConfig()),
		health:   health.NewAggregator(health.AggregatorConfig{Timeout: cfg.Invalidate.Timeout}),
	}

	reg := coordinator.NewRegistry()
	if cfg.RedisEnabled() {
		client := redis.NewClient(cfg.RedisOptions())
		a.closers = append(a.closers, client.Close)
		store, err := redistag.New(client,
			redistag.WithPrefix(cfg.Redis.Prefix),
			redistag.WithChannel(cfg.Redis.Channel),
			redistag.WithLogger(mw.Logger()),
		)
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		if err := a.register(reg, store, store); err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
	}
	if cfg.PurgeEnabled() {
		purger, err := httppurge.New(cfg.HTTPPurgeConfig())
		if err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
		if err := a.register(reg, purger, purger); err != nil {
			_ = a.Close(ctx)
			return nil, err
		}
	}
	if err := a.health.Register(health.NewBreakerChecker("breakers", a.breakers)); err != nil {
		_ = a.Close(ctx)
		return nil, err
	}

	a.coord = coordinator.New(reg, cfg.CoordinatorConfig(),
		coordinator.WithMiddleware(mw),
		coordinator.WithInvalidateOptions(
			invalidate.WithTimeout(cfg.Invalidate.Timeout),
			invalidate.WithMaxConcurrent(cfg.Invalidate.MaxConcurrent),
			invalidate.WithRetry(resilience.NewRetry(cfg.RetryConfig())),
			invalidate.WithBreakers(a.breakers),
		),
	)
	return a, nil
}

func (a *app) register(reg *coordinator.Registry, b invalidate.Backend, p health.Pinger) error {
	if err := reg.Backends.Register(b.Name(), b); err != nil {
		return err
	}
	return a.health.Register(health.NewPingChecker(b.Name(), p))
}

// Close releases backend clients and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	a.closers = nil
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
