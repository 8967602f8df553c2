package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Operation identifies an instrumented unit of work.
type Operation struct {
	// Kind is the operation class, such as "invalidate" or
	// "invalidate.backend".
	Kind string
	// Target names the object the operation acts on, such as a backend
	// name. May be empty.
	Target string
}

// SpanName returns d8cache.<kind> or d8cache.<kind>.<target>.
func (o Operation) SpanName() string {
	if o.Target != "" {
		return "d8cache." + o.Kind + "." + o.Target
	}
	return "d8cache." + o.Kind
}

func (o Operation) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("d8cache.operation", o.Kind)}
	if o.Target != "" {
		attrs = append(attrs, attribute.String("d8cache.target", o.Target))
	}
	return attrs
}

// Tracer starts and ends spans for operations.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan is best-effort and must not panic.
type Tracer interface {
	StartSpan(ctx context.Context, op Operation, attrs ...attribute.KeyValue) (context.Context, trace.Span)
	EndSpan(span trace.Span, err error)
}

type otelTracer struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &otelTracer{tracer: t}
}

// NopTracer returns a tracer that records nothing.
func NopTracer() Tracer {
	return NewTracer(tracenoop.NewTracerProvider().Tracer("noop"))
}

func (t *otelTracer) StartSpan(ctx context.Context, op Operation, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, op.SpanName(),
		trace.WithAttributes(append(op.attributes(), attrs...)...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *otelTracer) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
