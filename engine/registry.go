package engine

import (
	"sync"
	"time"
)

// Descriptor declares how entities of one type are cached. Everything is
// optional; an unregistered type simply bypasses entity-level caching.
type Descriptor struct {
	// TTL overrides Config.DefaultTTL for this type. Zero means inherit.
	TTL time.Duration

	// Prefix replaces the type name as the first key segment. Empty means
	// use the registered type name.
	Prefix string

	// KeyFields names the fields forming the entity identity, replacing the
	// default id / composite detection.
	KeyFields []string

	// CacheRelations enables relation caching and relation invalidation for
	// this type.
	CacheRelations bool

	// DisableWriteThrough exempts this type from cache population on write
	// even when the engine has write-through enabled.
	DisableWriteThrough bool

	// Preload marks the type for PreloadAll.
	Preload bool

	// PreloadRelations names relations warmed alongside the entities during
	// preload.
	PreloadRelations []string
}

// Registry maps type names to descriptors. Registration normally happens at
// startup, but the registry is safe for concurrent use throughout.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Descriptor)}
}

// Register adds or replaces the descriptor for a type.
func (r *Registry) Register(typeName string, d Descriptor) error {
	if typeName == "" {
		return ErrEmptyTypeName
	}
	r.mu.Lock()
	r.types[typeName] = d
	r.mu.Unlock()
	return nil
}

// Lookup returns the descriptor for a type and whether it is registered.
func (r *Registry) Lookup(typeName string) (Descriptor, bool) {
	r.mu.RLock()
	d, ok := r.types[typeName]
	r.mu.RUnlock()
	return d, ok
}

// Types returns the registered type names in unspecified order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	return names
}

// keyPrefix returns the first key segment for a type: the descriptor prefix
// when set, the type name otherwise.
func (d Descriptor) keyPrefix(typeName string) string {
	if d.Prefix != "" {
		return d.Prefix
	}
	return typeName
}
