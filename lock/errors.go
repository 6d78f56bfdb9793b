package lock

import "errors"

// Sentinel errors for lock operations.
var (
	// ErrNotAcquired is returned when a lock could not be obtained within
	// the retry budget and no fallback was supplied.
	ErrNotAcquired = errors.New("lock: could not acquire lock")

	// ErrWaitTimeout is returned when WaitForUnlock exceeds its deadline.
	ErrWaitTimeout = errors.New("lock: timed out waiting for unlock")
)
