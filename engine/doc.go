// Package engine implements the cache coordination layer: read-through and
// write-through policies, stampede protection, stale-while-revalidate,
// pattern invalidation, statistics, and circuit-breaker integration over a
// pluggable backend.
//
// The engine is constructed once per process and passed explicitly to its
// collaborators (lifecycle hooks, query wrappers, transaction buffers);
// there is no global instance. Infrastructure failures degrade to cache
// misses or skipped invalidation, never to request failures; data-fetch
// and persist errors always propagate.
package engine
