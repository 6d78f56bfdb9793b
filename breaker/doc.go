// Package breaker implements a two-state circuit breaker for the cache
// backend: consecutive failures past a threshold open the circuit, and the
// circuit closes again unconditionally once the reset timeout elapses.
// While open, callers bypass the cache entirely instead of compounding
// failures against a struggling store.
package breaker
