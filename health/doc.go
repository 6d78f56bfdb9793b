// Package health reports the operational state of the caching stack.
//
// A Checker probes one component and returns a Result with a Status of
// healthy, degraded, or unhealthy. BackendChecker pings the cache backend
// and watches its latency; EngineChecker inspects the coordination engine's
// circuit breaker and hit rate. The Aggregator fans out over registered
// checkers with a shared timeout, and the HTTP handlers expose the usual
// liveness, readiness, and detailed endpoints.
//
//	agg := health.NewAggregator()
//	agg.Register("redis", health.NewBackendChecker("redis", be, 0))
//	agg.Register("engine", health.NewEngineChecker(eng))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
package health
