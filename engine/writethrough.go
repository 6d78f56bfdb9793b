package engine

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonwraymond/cacheops/backend"
	"github.com/jonwraymond/cacheops/key"
	"github.com/jonwraymond/cacheops/observe"
)

// warmConcurrency bounds the goroutines marshaling entities during WarmCache.
const warmConcurrency = 8

// PersistFunc writes an entity to the source of truth and returns the
// persisted form (with generated ids, timestamps, defaults). Returning nil
// with a nil error means the input entity is already the persisted form.
type PersistFunc func(ctx context.Context, entity map[string]any) (map[string]any, error)

// LoaderFunc loads all entities of a type from the source of truth; used by
// PreloadAll.
type LoaderFunc func(ctx context.Context, typeName string) ([]map[string]any, error)

// WriteThrough persists an entity and then maintains the cache: the
// persisted form is cached under its canonical key, and derived results
// (queries, counts, pages, aggregates, relations) for the type are
// invalidated.
//
// Ordering is strict: persist runs first, and a persist error propagates
// with the cache untouched. Everything after a successful persist is
// best-effort; a cache failure never undoes a completed write.
//
// Only registered types are cached: an unregistered type is persisted and
// its derived results invalidated, but no entity key is written. An entity
// without a derivable identity is likewise persisted but not cached.
func (e *Engine) WriteThrough(ctx context.Context, typeName string, entity map[string]any, persist PersistFunc) (_ map[string]any, err error) {
	start := time.Now()
	ctx, span := e.tracer.StartOp(ctx, "write_through", typeName)
	defer func() { e.tracer.EndOp(span, err) }()

	persisted, err := persist(ctx, entity)
	if err != nil {
		e.metrics.RecordOp(ctx, "write_through", time.Since(start), err)
		return nil, err
	}
	e.stats.recordWrite(time.Since(start))
	if persisted == nil {
		persisted = entity
	}

	desc, registered := e.registry.Lookup(typeName)
	prefix := desc.keyPrefix(typeName)
	ttl := desc.TTL
	if ttl <= 0 {
		ttl = e.cfg.DefaultTTL
	}

	if e.cfg.WriteThrough && registered && !desc.DisableWriteThrough {
		if k, kerr := e.keys.ForEntity(prefix, persisted, desc.KeyFields); kerr == nil {
			if payload, merr := json.Marshal(persisted); merr == nil {
				if e.allowed() && e.cacheSet(ctx, e.prefixed(k), payload, ttl) {
					e.stats.wrote(1)
				}
			} else {
				e.logger.Warn(ctx, "entity not cacheable",
					observe.Field{Key: "type", Value: typeName},
					observe.Field{Key: "error", Value: merr.Error()},
				)
			}
		}
	}

	e.invalidateDerived(ctx, prefix)
	if e.cfg.InvalidateRelations && desc.CacheRelations {
		if base, kerr := e.keys.ForEntity(prefix, persisted, desc.KeyFields); kerr == nil {
			e.InvalidatePattern(ctx, key.BuildKey(base, key.KindRelation, "*"))
		}
	}

	e.metrics.RecordOp(ctx, "write_through", time.Since(start), nil)
	e.debug(ctx, "write-through complete", observe.Field{Key: "type", Value: typeName})
	return persisted, nil
}

// WarmCache bulk-loads entities of one registered type into the cache with a
// single multi-set. Unregistered types and entities without a derivable
// identity are skipped. Returns the number of entities cached; backend
// failures degrade to 0 without error.
func (e *Engine) WarmCache(ctx context.Context, typeName string, entities []map[string]any, ttl time.Duration) (int, error) {
	if len(entities) == 0 {
		return 0, nil
	}

	desc, ok := e.registry.Lookup(typeName)
	if !ok {
		return 0, nil
	}
	prefix := desc.keyPrefix(typeName)
	if ttl <= 0 {
		ttl = desc.TTL
	}
	ttl = e.resolveTTL(ttl)

	// Keying and marshaling are CPU-bound; parallelize with a bound, then
	// write one batch.
	items := make([]backend.Item, len(entities))
	var g errgroup.Group
	g.SetLimit(warmConcurrency)
	for i, ent := range entities {
		i, ent := i, ent
		g.Go(func() error {
			k, err := e.keys.ForEntity(prefix, ent, desc.KeyFields)
			if err != nil {
				return nil
			}
			payload, err := json.Marshal(ent)
			if err != nil {
				return nil
			}
			items[i] = backend.Item{Key: e.prefixed(k), Value: payload, TTL: ttl}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	batch := make([]backend.Item, 0, len(items))
	for _, it := range items {
		if it.Key != "" {
			batch = append(batch, it)
		}
	}
	n := len(batch)
	if n == 0 {
		return 0, nil
	}

	if e.cfg.StaleWhileRevalidate {
		for i := 0; i < n; i++ {
			batch = append(batch, backend.Item{
				Key:   stalePrefix + batch[i].Key,
				Value: batch[i].Value,
				TTL:   ttl + e.cfg.StaleTTL,
			})
		}
	}

	if !e.allowed() {
		return 0, nil
	}
	if err := e.be.MSet(ctx, batch); err != nil {
		e.noteFailure(ctx, "warm", err)
		return 0, nil
	}
	e.noteSuccess()
	e.stats.wrote(uint64(n))
	e.debug(ctx, "cache warmed",
		observe.Field{Key: "type", Value: typeName},
		observe.Field{Key: "count", Value: n},
	)
	return n, nil
}

// PreloadAll warms every registered type marked Preload, loading entities
// through the given loader. A loader failure for one type is logged and
// skipped. Returns the total number of entities cached.
func (e *Engine) PreloadAll(ctx context.Context, load LoaderFunc) (int, error) {
	total := 0
	for _, name := range e.registry.Types() {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		desc, _ := e.registry.Lookup(name)
		if !desc.Preload {
			continue
		}

		entities, err := load(ctx, name)
		if err != nil {
			e.logger.Warn(ctx, "preload failed",
				observe.Field{Key: "type", Value: name},
				observe.Field{Key: "error", Value: err.Error()},
			)
			continue
		}

		n, err := e.WarmCache(ctx, name, entities, desc.TTL)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// CacheRelation caches a relation payload under the owning entity's key.
// Returns key.ErrNoIdentity when the entity has no derivable identity.
func (e *Engine) CacheRelation(ctx context.Context, typeName string, entity map[string]any, relation string, payload []byte, ttl time.Duration) error {
	desc, _ := e.registry.Lookup(typeName)
	k, err := e.keys.ForRelation(desc.keyPrefix(typeName), entity, desc.KeyFields, relation)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = desc.TTL
	}
	e.Set(ctx, k, payload, ttl)
	return nil
}

// GetRelation returns a cached relation payload for an entity.
func (e *Engine) GetRelation(ctx context.Context, typeName string, entity map[string]any, relation string) ([]byte, bool) {
	desc, _ := e.registry.Lookup(typeName)
	k, err := e.keys.ForRelation(desc.keyPrefix(typeName), entity, desc.KeyFields, relation)
	if err != nil {
		return nil, false
	}
	return e.Get(ctx, k)
}

// invalidateDerived removes cached derived results (queries, finds, counts,
// pages, aggregates) for a type prefix.
func (e *Engine) invalidateDerived(ctx context.Context, prefix string) {
	if !e.cfg.InvalidateQueriesOnWrite {
		return
	}
	for _, kind := range []string{key.KindQuery, key.KindFind, key.KindCount, key.KindPage, key.KindAggregate} {
		e.InvalidatePattern(ctx, e.keys.Pattern(prefix, kind))
	}
}
