package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names.
const (
	MetricOperationTotal    = "d8cache.operation.total"
	MetricOperationErrors   = "d8cache.operation.errors"
	MetricOperationDuration = "d8cache.operation.duration_ms"
	MetricTagsEmitted       = "d8cache.tags.emitted"
	MetricTagsInvalidated   = "d8cache.tags.invalidated"
	MetricMaxAgeEmitted     = "d8cache.maxage.emitted"
)

// Metrics records counters and histograms for cache metadata operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOperation counts one operation, its failure and its duration.
	RecordOperation(ctx context.Context, op Operation, d time.Duration, err error)

	// RecordTagsEmitted counts tags attached to a response.
	RecordTagsEmitted(ctx context.Context, n int)

	// RecordTagsInvalidated counts tags sent to backends.
	RecordTagsInvalidated(ctx context.Context, n int)

	// RecordMaxAge records an emitted max-age in seconds; -1 is permanent.
	RecordMaxAge(ctx context.Context, seconds int64)
}

type otelMetrics struct {
	opTotal     metric.Int64Counter
	opErrors    metric.Int64Counter
	opDuration  metric.Float64Histogram
	emitted     metric.Int64Counter
	invalidated metric.Int64Counter
	maxAge      metric.Int64Histogram
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	m := &otelMetrics{}
	var err error

	if m.opTotal, err = meter.Int64Counter(MetricOperationTotal,
		metric.WithDescription("Total number of operations"),
		metric.WithUnit("{call}")); err != nil {
		return nil, err
	}
	if m.opErrors, err = meter.Int64Counter(MetricOperationErrors,
		metric.WithDescription("Total number of failed operations"),
		metric.WithUnit("{error}")); err != nil {
		return nil, err
	}
	if m.opDuration, err = meter.Float64Histogram(MetricOperationDuration,
		metric.WithDescription("Operation duration in milliseconds"),
		metric.WithUnit("ms")); err != nil {
		return nil, err
	}
	if m.emitted, err = meter.Int64Counter(MetricTagsEmitted,
		metric.WithDescription("Cache tags attached to responses"),
		metric.WithUnit("{tag}")); err != nil {
		return nil, err
	}
	if m.invalidated, err = meter.Int64Counter(MetricTagsInvalidated,
		metric.WithDescription("Cache tags dispatched for invalidation"),
		metric.WithUnit("{tag}")); err != nil {
		return nil, err
	}
	if m.maxAge, err = meter.Int64Histogram(MetricMaxAgeEmitted,
		metric.WithDescription("Emitted max-age values"),
		metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *otelMetrics) RecordOperation(ctx context.Context, op Operation, d time.Duration, err error) {
	opt := metric.WithAttributes(op.attributes()...)
	m.opTotal.Add(ctx, 1, opt)
	if err != nil {
		m.opErrors.Add(ctx, 1, opt)
	}
	m.opDuration.Record(ctx, float64(d.Microseconds())/1000, opt)
}

func (m *otelMetrics) RecordTagsEmitted(ctx context.Context, n int) {
	m.emitted.Add(ctx, int64(n))
}

func (m *otelMetrics) RecordTagsInvalidated(ctx context.Context, n int) {
	m.invalidated.Add(ctx, int64(n))
}

func (m *otelMetrics) RecordMaxAge(ctx context.Context, seconds int64) {
	m.maxAge.Record(ctx, seconds, metric.WithAttributes(attribute.Bool("d8cache.permanent", seconds < 0)))
}

type nopMetrics struct{}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics { return nopMetrics{} }

func (nopMetrics) RecordOperation(context.Context, Operation, time.Duration, error) {}
func (nopMetrics) RecordTagsEmitted(context.Context, int)                           {}
func (nopMetrics) RecordTagsInvalidated(context.Context, int)                       {}
func (nopMetrics) RecordMaxAge(context.Context, int64)                              {}
