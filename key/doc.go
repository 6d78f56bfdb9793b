// Package key generates deterministic cache keys and invalidation patterns.
//
// Keys are colon-separated segments of the form
// <entity>:<kind>:<identifier-or-fingerprint>. Structured inputs are
// canonicalized (map keys sorted recursively) and hashed with SHA-256,
// truncated to 16 hex characters, so logically equal inputs always map to
// the same key regardless of map iteration order.
package key
