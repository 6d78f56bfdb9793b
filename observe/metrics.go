package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records cache operation telemetry.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly; recording is best-effort.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordOp records one cache operation with its duration and error
	// status.
	RecordOp(ctx context.Context, op string, duration time.Duration, err error)

	// RecordLookup records the hit/miss outcome of a read operation.
	RecordLookup(ctx context.Context, op string, hit bool)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meta         CacheMeta
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	hitCount     metric.Int64Counter
	missCount    metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates a Metrics instance recording to the given meter.
func NewMetrics(meter metric.Meter, meta CacheMeta) (Metrics, error) {
	totalCount, err := meter.Int64Counter(
		"cache.ops.total",
		metric.WithDescription("Total number of cache operations"),
		metric.WithUnit("{op}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"cache.ops.errors",
		metric.WithDescription("Total number of cache backend errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	hitCount, err := meter.Int64Counter(
		"cache.hits",
		metric.WithDescription("Total number of cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, err
	}

	missCount, err := meter.Int64Counter(
		"cache.misses",
		metric.WithDescription("Total number of cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"cache.op.duration_ms",
		metric.WithDescription("Cache operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meta:         meta,
		totalCount:   totalCount,
		errorCount:   errorCount,
		hitCount:     hitCount,
		missCount:    missCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordOp(ctx context.Context, op string, duration time.Duration, err error) {
	opt := metric.WithAttributes(m.attrs(op)...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordLookup(ctx context.Context, op string, hit bool) {
	opt := metric.WithAttributes(m.attrs(op)...)

	if hit {
		m.hitCount.Add(ctx, 1, opt)
	} else {
		m.missCount.Add(ctx, 1, opt)
	}
}

func (m *metricsImpl) attrs(op string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("cache.op", op),
		attribute.String("cache.backend", m.meta.Backend),
	}
	if m.meta.KeyPrefix != "" {
		attrs = append(attrs, attribute.String("cache.prefix", m.meta.KeyPrefix))
	}
	return attrs
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NopMetrics returns a Metrics that discards everything.
func NopMetrics() Metrics {
	return &noopMetrics{}
}

func (m *noopMetrics) RecordOp(ctx context.Context, op string, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordLookup(ctx context.Context, op string, hit bool) {}

// Ensure implementations satisfy Metrics
var (
	_ Metrics = (*metricsImpl)(nil)
	_ Metrics = (*noopMetrics)(nil)
)
