// Package lock provides a backend-agnostic mutual-exclusion primitive built
// on the cache backend's set-if-absent operation.
//
// A lock is an ephemeral key under the "lock:" namespace holding a random
// ownership token with a TTL. The TTL bounds the damage of a crashed
// holder: mutual exclusion is traded for liveness, which is acceptable
// because the protected operation (a cache refill) is idempotent.
package lock
