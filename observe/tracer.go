package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Tracer wraps OpenTelemetry tracing with cache-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndOp must be best-effort and must not panic.
type Tracer interface {
	// StartOp starts a span for a cache operation on a key.
	StartOp(ctx context.Context, op, key string) (context.Context, trace.Span)

	// EndOp ends the span, recording any error.
	EndOp(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	meta   CacheMeta
	tracer trace.Tracer
}

// NewTracer wraps the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer, meta CacheMeta) Tracer {
	return &tracerImpl{meta: meta, tracer: t}
}

func (t *tracerImpl) StartOp(ctx context.Context, op, key string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("cache.op", op),
		attribute.String("cache.key", key),
		attribute.String("cache.backend", t.meta.Backend),
	}
	if t.meta.KeyPrefix != "" {
		attrs = append(attrs, attribute.String("cache.prefix", t.meta.KeyPrefix))
	}

	return t.tracer.Start(ctx, t.meta.SpanName(op),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndOp(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// NopTracer returns a Tracer whose spans are never recorded.
func NopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartOp(ctx context.Context, op, key string) (context.Context, trace.Span) {
	return t.noop.Start(ctx, op)
}

func (t *noopTracer) EndOp(span trace.Span, err error) {
	span.End()
}
