package health

import "errors"

var (
	// ErrCheckTimeout indicates a health check exceeded the aggregator
	// timeout.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates the named checker is not registered.
	ErrCheckerNotFound = errors.New("health: checker not found")
)
