// Package observe provides telemetry for the cache layer: a structured
// JSON logger, OpenTelemetry metrics for cache operations, and span
// management for tracing, behind a single Observer facade.
package observe
