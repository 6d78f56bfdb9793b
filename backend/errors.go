package backend

import "errors"

// Sentinel errors for backend construction and operation.
var (
	// ErrNilClient indicates a nil Redis client was provided.
	ErrNilClient = errors.New("backend: redis client is nil")

	// ErrNotInteger indicates an increment/decrement target holds a value
	// that is not an integer.
	ErrNotInteger = errors.New("backend: value is not an integer")
)
