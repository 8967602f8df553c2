// Package health reports whether the invalidation backends are reachable.
//
// A Checker reports one component. PingChecker adapts any backend with a
// Ping method (the Redis store, the HTTP purger); BreakerChecker reports
// backends whose circuit breaker is open. An Aggregator runs checkers in
// parallel under one deadline and returns their results in registration
// order:
//
//	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 5 * time.Second})
//	_ = agg.Register(health.NewPingChecker("redis", store))
//	_ = agg.Register(health.NewBreakerChecker("breakers", breakers))
//	report := agg.Run(ctx)
//	if report.Status == health.StatusUnhealthy {
//		...
//	}
package health
