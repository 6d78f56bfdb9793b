// Package backend defines the uniform contract over heterogeneous cache
// stores and provides two implementations: an in-process map store with
// proactive per-key expiry, and a Redis adapter built on go-redis.
//
// Values are opaque byte slices; callers own serialization. Pattern
// arguments are globs where "*" matches any sequence of characters.
package backend
