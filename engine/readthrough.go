package engine

import (
	"context"
	"time"

	"github.com/jonwraymond/cacheops/key"
	"github.com/jonwraymond/cacheops/lock"
	"github.com/jonwraymond/cacheops/observe"
)

// ReadThrough returns the cached value for a key, invoking fetch and caching
// the result on a miss. ttl <= 0 means Config.DefaultTTL.
//
// Error semantics differ by source: backend failures degrade to a miss and
// never surface here, while fetch errors always propagate. A (nil, nil)
// fetch result is passed through uncached.
//
// With stampede protection on, concurrent misses of the same key coalesce:
// in-process callers share one execution, and a distributed lock serializes
// fetchers across processes. A caller that loses the lock serves the stale
// shadow when stale-while-revalidate is on, and otherwise fetches directly
// without caching the result.
func (e *Engine) ReadThrough(ctx context.Context, k string, ttl time.Duration, fetch FetchFunc) (_ []byte, err error) {
	if !e.cfg.ReadThrough || !e.allowed() {
		return fetch(ctx)
	}

	pk := e.prefixed(k)
	ctx, span := e.tracer.StartOp(ctx, "read_through", pk)
	defer func() { e.tracer.EndOp(span, err) }()

	if v, ok := e.cacheGet(ctx, pk); ok {
		e.stats.hit()
		e.metrics.RecordLookup(ctx, "read_through", true)
		e.debug(ctx, "read-through hit", observe.Field{Key: "key", Value: pk})
		return v, nil
	}
	e.stats.miss()
	e.metrics.RecordLookup(ctx, "read_through", false)

	ttl = e.resolveTTL(ttl)

	if !e.cfg.StampedeProtection {
		return e.fetchAndStore(ctx, pk, ttl, fetch)
	}

	v, err, _ := e.group.Do(pk, func() (any, error) {
		return e.coordinatedFetch(ctx, pk, ttl, fetch)
	})
	if err != nil {
		return nil, err
	}
	b, _ := v.([]byte)
	return b, nil
}

// CacheQuery caches the result of an arbitrary query keyed by its canonical
// shape. When the query cannot produce a key, fetch runs directly and
// nothing is cached.
func (e *Engine) CacheQuery(ctx context.Context, q key.Query, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	k, err := e.keys.ForQuery(q)
	if err != nil {
		return fetch(ctx)
	}
	return e.ReadThrough(ctx, k, ttl, fetch)
}

// coordinatedFetch runs fetch under the cross-process fetch lock with a
// double-checked get, falling back to stale-or-direct when the lock cannot
// be acquired.
func (e *Engine) coordinatedFetch(ctx context.Context, pk string, ttl time.Duration, fetch FetchFunc) (result []byte, err error) {
	var ran bool
	err = e.locks.WithLock(ctx, "fetch:"+pk, lock.Options{
		TTL:        e.cfg.FetchLockTTL,
		MaxRetries: e.cfg.FetchLockRetries,
		OnLockFailed: func(ctx context.Context) error {
			ran = true
			if v, ok := e.staleGet(ctx, pk); ok {
				e.debug(ctx, "serving stale value", observe.Field{Key: "key", Value: pk})
				result = v
				return nil
			}
			// No stale copy: fetch without caching, so the lock holder
			// remains the only writer.
			start := time.Now()
			v, ferr := fetch(ctx)
			if ferr != nil {
				return ferr
			}
			e.stats.recordLoad(time.Since(start))
			result = v
			return nil
		},
	}, func(ctx context.Context) error {
		ran = true
		// Another holder may have filled the key while we waited.
		if v, ok := e.cacheGet(ctx, pk); ok {
			result = v
			return nil
		}
		v, ferr := e.fetchAndStore(ctx, pk, ttl, fetch)
		if ferr != nil {
			return ferr
		}
		result = v
		return nil
	})
	if err != nil {
		if !ran {
			// Lock infrastructure failure, not a fetch failure: degrade to
			// an uncoordinated direct fetch.
			e.noteFailure(ctx, "lock", err)
			return fetch(ctx)
		}
		return nil, err
	}
	return result, nil
}

// fetchAndStore invokes fetch and caches a non-nil result. The fetch error
// propagates; the cache write is best-effort.
func (e *Engine) fetchAndStore(ctx context.Context, pk string, ttl time.Duration, fetch FetchFunc) ([]byte, error) {
	start := time.Now()
	v, err := fetch(ctx)
	e.metrics.RecordOp(ctx, "fetch", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	e.stats.recordLoad(time.Since(start))

	if v == nil {
		return nil, nil
	}
	if e.allowed() && e.cacheSet(ctx, pk, v, ttl) {
		e.stats.wrote(1)
	}
	return v, nil
}
