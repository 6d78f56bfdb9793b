package engine

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/cacheops/backend"
	"github.com/jonwraymond/cacheops/breaker"
	"github.com/jonwraymond/cacheops/key"
	"github.com/jonwraymond/cacheops/lock"
	"github.com/jonwraymond/cacheops/observe"
)

// stalePrefix namespaces the shadow copies kept for stale-while-revalidate.
const stalePrefix = "stale:"

// FetchFunc loads a value from the source of truth on a cache miss. A nil
// slice with a nil error means the source has no value; nothing is cached.
type FetchFunc func(ctx context.Context) ([]byte, error)

// Engine coordinates caching policy over a backend. Construct with New and
// share one instance; all methods are safe for concurrent use.
type Engine struct {
	be       backend.Backend
	cfg      Config
	keys     *key.Generator
	registry *Registry
	locks    *lock.Lock
	brk      *breaker.Breaker
	group    singleflight.Group
	stats    statistics

	logger  observe.Logger
	metrics observe.Metrics
	tracer  observe.Tracer
}

// Option customizes an Engine at construction.
type Option func(*Engine)

// WithLogger replaces the default no-op logger.
func WithLogger(l observe.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics replaces the default no-op metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithTracer replaces the default no-op tracer.
func WithTracer(t observe.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// New creates an engine over the given backend. A nil registry is replaced
// with an empty one.
func New(be backend.Backend, registry *Registry, cfg Config, opts ...Option) (*Engine, error) {
	if be == nil {
		return nil, ErrNilBackend
	}
	cfg.normalize()
	if registry == nil {
		registry = NewRegistry()
	}

	e := &Engine{
		be:       be,
		cfg:      cfg,
		keys:     key.NewGenerator(),
		registry: registry,
		locks:    lock.New(be),
		logger:   observe.NopLogger(),
		metrics:  observe.NopMetrics(),
		tracer:   observe.NopTracer(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.Breaker.Enabled {
		e.brk = breaker.New(breaker.Config{
			Threshold:    cfg.Breaker.Threshold,
			ResetTimeout: cfg.Breaker.ResetTimeout,
			OnStateChange: func(from, to breaker.State) {
				e.logger.Warn(context.Background(), "cache circuit state changed",
					observe.Field{Key: "from", Value: from.String()},
					observe.Field{Key: "to", Value: to.String()},
				)
			},
		})
	}

	return e, nil
}

// Registry returns the engine's type registry.
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Stats returns a snapshot of the engine counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// ResetStats zeroes all counters and timing samples.
func (e *Engine) ResetStats() {
	e.stats.reset()
}

// BreakerState reports the circuit state; closed when the breaker is
// disabled.
func (e *Engine) BreakerState() breaker.State {
	if e.brk == nil {
		return breaker.StateClosed
	}
	return e.brk.State()
}

// Get returns the cached value for a key. Misses and backend failures both
// come back as (nil, false); an open circuit skips the backend entirely.
func (e *Engine) Get(ctx context.Context, k string) ([]byte, bool) {
	start := time.Now()
	pk := e.prefixed(k)

	if !e.allowed() {
		e.metrics.RecordLookup(ctx, "get", false)
		return nil, false
	}

	v, ok := e.cacheGet(ctx, pk)
	if ok {
		e.stats.hit()
	} else {
		e.stats.miss()
	}

	e.metrics.RecordLookup(ctx, "get", ok)
	e.metrics.RecordOp(ctx, "get", time.Since(start), nil)
	e.debug(ctx, "cache get", observe.Field{Key: "key", Value: pk}, observe.Field{Key: "hit", Value: ok})
	return v, ok
}

// Set stores a value. ttl <= 0 means Config.DefaultTTL. Backend failures
// are swallowed: they are counted, fed to the breaker, and logged.
func (e *Engine) Set(ctx context.Context, k string, value []byte, ttl time.Duration) {
	start := time.Now()
	if !e.allowed() {
		return
	}

	pk := e.prefixed(k)
	if e.cacheSet(ctx, pk, value, e.resolveTTL(ttl)) {
		e.stats.wrote(1)
	}

	e.metrics.RecordOp(ctx, "set", time.Since(start), nil)
	e.debug(ctx, "cache set", observe.Field{Key: "key", Value: pk})
}

// Delete removes a key (and its stale shadow). Returns whether the primary
// key existed; failures and an open circuit report false.
func (e *Engine) Delete(ctx context.Context, k string) bool {
	start := time.Now()
	if !e.allowed() {
		return false
	}

	pk := e.prefixed(k)
	existed, ok := e.cacheDelete(ctx, pk)
	if ok {
		e.stats.deleted()
	}

	e.metrics.RecordOp(ctx, "delete", time.Since(start), nil)
	e.debug(ctx, "cache delete", observe.Field{Key: "key", Value: pk}, observe.Field{Key: "existed", Value: existed})
	return existed
}

// Exists reports whether a key is cached. Failures and an open circuit
// report false.
func (e *Engine) Exists(ctx context.Context, k string) bool {
	if !e.allowed() {
		return false
	}

	ok, err := e.be.Exists(ctx, e.prefixed(k))
	if err != nil {
		e.noteFailure(ctx, "exists", err)
		return false
	}
	e.noteSuccess()
	return ok
}

// InvalidatePattern deletes every key matching the glob pattern, plus the
// matching stale shadows. Returns the number of primary keys removed; 0 on
// failure or an open circuit.
func (e *Engine) InvalidatePattern(ctx context.Context, pattern string) int {
	start := time.Now()
	if !e.allowed() {
		return 0
	}

	pp := e.prefixed(pattern)
	n, err := e.be.DeletePattern(ctx, pp)
	if err != nil {
		e.noteFailure(ctx, "invalidate_pattern", err)
		return 0
	}
	e.noteSuccess()

	if e.cfg.StaleWhileRevalidate {
		if _, err := e.be.DeletePattern(ctx, stalePrefix+pp); err != nil {
			e.noteFailure(ctx, "invalidate_pattern", err)
		}
	}

	e.stats.deleted()
	e.metrics.RecordOp(ctx, "invalidate_pattern", time.Since(start), nil)
	e.debug(ctx, "cache invalidate", observe.Field{Key: "pattern", Value: pp}, observe.Field{Key: "removed", Value: n})
	return n
}

// DeletePattern is an alias for InvalidatePattern.
func (e *Engine) DeletePattern(ctx context.Context, pattern string) int {
	return e.InvalidatePattern(ctx, pattern)
}

// InvalidateEntity deletes every cached key for a type: entities, queries,
// relations, everything under the type's prefix.
func (e *Engine) InvalidateEntity(ctx context.Context, typeName string) int {
	prefix := typeName
	if d, ok := e.registry.Lookup(typeName); ok {
		prefix = d.keyPrefix(typeName)
	}
	return e.InvalidatePattern(ctx, e.keys.Pattern(prefix))
}

// Flush clears the entire backend, including keys outside this engine's
// prefix. The error propagates; flushing is an administrative operation.
func (e *Engine) Flush(ctx context.Context) error {
	return e.be.Flush(ctx)
}

func (e *Engine) prefixed(k string) string {
	if e.cfg.KeyPrefix == "" {
		return k
	}
	return e.cfg.KeyPrefix + ":" + k
}

func (e *Engine) resolveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return e.cfg.DefaultTTL
	}
	return ttl
}

func (e *Engine) allowed() bool {
	return e.brk == nil || e.brk.Allow()
}

// noteFailure records a swallowed backend error: counted, fed to the
// breaker, logged. Callers decide the degraded result.
func (e *Engine) noteFailure(ctx context.Context, op string, err error) {
	e.stats.failed()
	if e.brk != nil {
		e.brk.Failure()
	}
	e.metrics.RecordOp(ctx, op, 0, err)
	e.logger.Warn(ctx, "cache backend error",
		observe.Field{Key: "op", Value: op},
		observe.Field{Key: "error", Value: err.Error()},
	)
}

func (e *Engine) noteSuccess() {
	if e.brk != nil {
		e.brk.Success()
	}
}

// cacheGet reads a prefixed key, swallowing backend errors. It does not
// touch hit/miss counters; callers that represent a logical lookup do.
func (e *Engine) cacheGet(ctx context.Context, pk string) ([]byte, bool) {
	v, ok, err := e.be.Get(ctx, pk)
	if err != nil {
		e.noteFailure(ctx, "get", err)
		return nil, false
	}
	e.noteSuccess()
	return v, ok
}

// cacheSet writes a prefixed key and, when stale serving is on, its shadow
// copy with the extended TTL. Backend errors are swallowed; the return
// reports whether the primary write reached the backend.
func (e *Engine) cacheSet(ctx context.Context, pk string, value []byte, ttl time.Duration) bool {
	if err := e.be.Set(ctx, pk, value, ttl); err != nil {
		e.noteFailure(ctx, "set", err)
		return false
	}
	e.noteSuccess()

	if e.cfg.StaleWhileRevalidate {
		if err := e.be.Set(ctx, stalePrefix+pk, value, ttl+e.cfg.StaleTTL); err != nil {
			e.noteFailure(ctx, "set", err)
		}
	}
	return true
}

// cacheDelete removes a prefixed key and its shadow. existed reports whether
// the primary key was present; ok whether the delete reached the backend.
func (e *Engine) cacheDelete(ctx context.Context, pk string) (existed, ok bool) {
	existed, err := e.be.Delete(ctx, pk)
	if err != nil {
		e.noteFailure(ctx, "delete", err)
		return false, false
	}
	e.noteSuccess()

	if e.cfg.StaleWhileRevalidate {
		if _, err := e.be.Delete(ctx, stalePrefix+pk); err != nil {
			e.noteFailure(ctx, "delete", err)
		}
	}
	return existed, true
}

// staleGet reads the shadow copy of a prefixed key.
func (e *Engine) staleGet(ctx context.Context, pk string) ([]byte, bool) {
	if !e.cfg.StaleWhileRevalidate {
		return nil, false
	}
	return e.cacheGet(ctx, stalePrefix+pk)
}

func (e *Engine) debug(ctx context.Context, msg string, fields ...observe.Field) {
	if e.cfg.Debug {
		e.logger.Debug(ctx, msg, fields...)
	}
}
