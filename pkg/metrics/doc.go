/*
Package metrics provides Prometheus metrics collection and exposition
for taskpulse, plus a small health/readiness checker used by the HTTP
health endpoints.

Metrics are registered once at package init and updated from two
places: the Collector, which polls the aggregator's activity counters
over its command channel on a fixed interval, and the gRPC layer,
which records request counts and latencies directly.

# Usage

	collector := metrics.NewCollector(commands)
	collector.Start()
	defer collector.Stop()

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())

	metrics.RegisterComponent("aggregator", true, "")
	metrics.RegisterComponent("api", true, "")

Readiness considers the process ready only once every component in
its hardcoded critical list ("aggregator", "api") has been registered
healthy; anything not yet registered counts as not ready, not unknown.
*/
package metrics
