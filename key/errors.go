package key

import "errors"

// Sentinel errors for key generation.
var (
	// ErrNoIdentity indicates an entity has no usable identifying fields.
	// Callers must treat the entity as non-cacheable and bypass caching,
	// not fail the request.
	ErrNoIdentity = errors.New("key: entity has no usable identifying fields")

	// ErrEmptyType indicates an empty entity type name.
	ErrEmptyType = errors.New("key: entity type name is empty")
)
