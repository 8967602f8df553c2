// Package resilience guards calls to invalidation backends.
//
// A purge request to a reverse proxy or a tag index is a remote call that
// can hang, fail transiently, or fail for a long time. The package provides
// three guards that the invalidator composes around every backend call:
//
//   - Timeout bounds a single attempt.
//   - Retry repeats failed attempts with exponential, linear or constant
//     backoff.
//   - Breaker stops calling a backend that keeps failing and probes it again
//     after a cool-down.
//
// Guard composes them in the order breaker, retry, timeout so that each
// attempt has its own deadline and a breaker trip counts one failure per
// call rather than per attempt. Breakers keeps one Breaker per backend name.
//
//	guard := resilience.NewGuard(
//	    resilience.WithTimeout(5*time.Second),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{MaxAttempts: 3})),
//	    resilience.WithBreaker(breakers.Get("varnish")),
//	)
//	err := guard.Execute(ctx, func(ctx context.Context) error {
//	    return backend.Invalidate(ctx, set)
//	})
package resilience
