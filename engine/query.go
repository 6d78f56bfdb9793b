package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/jonwraymond/cacheops/key"
)

// CountFunc computes a count from the source of truth.
type CountFunc func(ctx context.Context) (int64, error)

// CachedQuery is a fluent wrapper binding one canonical query to the engine.
// The same query cached in different modes (many, one, count) occupies
// distinct keys, so mixed usage never collides.
type CachedQuery struct {
	e   *Engine
	q   key.Query
	ttl time.Duration
}

// Query starts a cached query. TTL defaults to Config.DefaultTTL; override
// with WithTTL.
func (e *Engine) Query(q key.Query) *CachedQuery {
	return &CachedQuery{e: e, q: q}
}

// WithTTL sets the TTL for this query's cached results.
func (cq *CachedQuery) WithTTL(ttl time.Duration) *CachedQuery {
	cq.ttl = ttl
	return cq
}

// GetMany returns the cached result set, fetching on a miss.
func (cq *CachedQuery) GetMany(ctx context.Context, fetch FetchFunc) ([]byte, error) {
	return cq.readThrough(ctx, "many", fetch)
}

// GetOne returns the cached single result, fetching on a miss.
func (cq *CachedQuery) GetOne(ctx context.Context, fetch FetchFunc) ([]byte, error) {
	return cq.readThrough(ctx, "one", fetch)
}

// GetCount returns the cached count, computing it on a miss.
func (cq *CachedQuery) GetCount(ctx context.Context, count CountFunc) (int64, error) {
	v, err := cq.readThrough(ctx, "count", func(ctx context.Context) ([]byte, error) {
		n, err := count(ctx)
		if err != nil {
			return nil, err
		}
		return strconv.AppendInt(nil, n, 10), nil
	})
	if err != nil {
		return 0, err
	}

	n, perr := strconv.ParseInt(string(v), 10, 64)
	if perr != nil {
		// Corrupt cached count: recompute from the source.
		return count(ctx)
	}
	return n, nil
}

// GetManyAndCount returns the cached result set and its total count, used
// for paginated listings.
func (cq *CachedQuery) GetManyAndCount(ctx context.Context, fetch FetchFunc, count CountFunc) ([]byte, int64, error) {
	rows, err := cq.GetMany(ctx, fetch)
	if err != nil {
		return nil, 0, err
	}
	n, err := cq.GetCount(ctx, count)
	if err != nil {
		return nil, 0, err
	}
	return rows, n, nil
}

func (cq *CachedQuery) readThrough(ctx context.Context, mode string, fetch FetchFunc) ([]byte, error) {
	base, err := cq.e.keys.ForQuery(cq.q)
	if err != nil {
		return fetch(ctx)
	}
	return cq.e.ReadThrough(ctx, key.BuildKey(base, mode), cq.ttl, fetch)
}
