package engine

import "errors"

// Sentinel errors for engine construction and registration.
var (
	// ErrNilBackend indicates a nil cache backend was provided.
	ErrNilBackend = errors.New("engine: backend is nil")

	// ErrEmptyTypeName indicates a descriptor registration without a type
	// name.
	ErrEmptyTypeName = errors.New("engine: type name is empty")
)
