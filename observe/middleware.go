package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// OperationFunc is the unit of work Middleware instruments.
type OperationFunc func(ctx context.Context) error

// Middleware wraps operations with a span, metrics and a log line.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: errors from the wrapped function are recorded and returned
//     unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-op
// implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NopMiddleware returns a Middleware that only calls through.
func NopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

// Metrics returns the metrics recorder.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Tracer returns the tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Run executes fn as op. Successful operations log at debug, failures at
// warn; the caller decides whether a failure is fatal.
func (m *Middleware) Run(ctx context.Context, op Operation, fn OperationFunc, attrs ...attribute.KeyValue) error {
	ctx, span := m.tracer.StartSpan(ctx, op, attrs...)
	start := time.Now()

	err := fn(ctx)

	d := time.Since(start)
	m.tracer.EndSpan(span, err)
	m.metrics.RecordOperation(ctx, op, d, err)

	fields := []Field{
		F("operation", op.Kind),
		F("duration_ms", float64(d.Microseconds())/1000),
	}
	if op.Target != "" {
		fields = append(fields, F("target", op.Target))
	}
	if err != nil {
		m.logger.Warn(ctx, "operation failed", append(fields, Err(err))...)
	} else {
		m.logger.Debug(ctx, "operation completed", fields...)
	}
	return err
}

// Wrap returns fn instrumented as op.
func (m *Middleware) Wrap(op Operation, fn OperationFunc) OperationFunc {
	return func(ctx context.Context) error {
		return m.Run(ctx, op, fn)
	}
}
