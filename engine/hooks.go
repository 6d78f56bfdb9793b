package engine

import (
	"context"
	"encoding/json"

	"github.com/jonwraymond/cacheops/key"
)

// Hooks adapts the engine to data-layer lifecycle events. Wire the three
// methods into the persistence layer's post-commit callbacks; every method
// is best-effort and never fails the triggering write.
type Hooks struct {
	e *Engine
}

// Hooks returns the lifecycle hook set for this engine.
func (e *Engine) Hooks() *Hooks {
	return &Hooks{e: e}
}

// AfterInsert caches the new entity (registered types only) and invalidates
// derived results for its type.
func (h *Hooks) AfterInsert(ctx context.Context, typeName string, entity map[string]any) {
	h.refresh(ctx, typeName, entity)
}

// AfterUpdate re-caches the entity, invalidates its relations, and
// invalidates derived results for its type.
func (h *Hooks) AfterUpdate(ctx context.Context, typeName string, entity map[string]any) {
	h.refresh(ctx, typeName, entity)
}

// AfterRemove deletes the entity's cached form, its relations, and derived
// results for its type.
func (h *Hooks) AfterRemove(ctx context.Context, typeName string, entity map[string]any) {
	e := h.e
	desc, _ := e.registry.Lookup(typeName)
	prefix := desc.keyPrefix(typeName)

	if k, err := e.keys.ForEntity(prefix, entity, desc.KeyFields); err == nil {
		e.Delete(ctx, k)
		if e.cfg.InvalidateRelations && desc.CacheRelations {
			e.InvalidatePattern(ctx, key.BuildKey(k, key.KindRelation, "*"))
		}
	}

	e.invalidateDerived(ctx, prefix)
}

func (h *Hooks) refresh(ctx context.Context, typeName string, entity map[string]any) {
	e := h.e
	desc, registered := e.registry.Lookup(typeName)
	prefix := desc.keyPrefix(typeName)

	k, err := e.keys.ForEntity(prefix, entity, desc.KeyFields)
	if err == nil {
		ttl := desc.TTL
		if ttl <= 0 {
			ttl = e.cfg.DefaultTTL
		}

		if e.cfg.WriteThrough && registered && !desc.DisableWriteThrough {
			if payload, merr := json.Marshal(entity); merr == nil && e.allowed() {
				if e.cacheSet(ctx, e.prefixed(k), payload, ttl) {
					e.stats.wrote(1)
				}
			}
		}

		if e.cfg.InvalidateRelations && desc.CacheRelations {
			e.InvalidatePattern(ctx, key.BuildKey(k, key.KindRelation, "*"))
		}
	}

	e.invalidateDerived(ctx, prefix)
}
