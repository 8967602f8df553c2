// Package observe instruments tag emission, max-age emission and
// invalidation with OpenTelemetry traces and metrics and logrus structured
// logs.
//
// NewObserver builds tracer and meter providers from Config; everything
// falls back to no-op implementations when a subsystem is disabled, so
// callers never check for nil.
package observe
