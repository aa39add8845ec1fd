/*
Package metrics defines and registers the master's Prometheus metrics:
registry sizes and health split, route/topic cache freshness, connection
counts, and per-request dispatch outcomes. All metrics are package-level
variables registered at init() against the default Prometheus registry and
exposed for scraping via Handler().

# Metrics catalog

maxwell_frontends_total / maxwell_backends_total:
  - Type: Gauge
  - Description: size of the configured, frozen frontend/backend sets.

maxwell_services_total{health}:
  - Type: Gauge
  - Description: known services split by health state ("healthy"/"unhealthy").

maxwell_route_version / maxwell_topic_cache_entries:
  - Type: Gauge
  - Description: route manager's version counter; approximate topic cache size.

maxwell_connections_active{node_type}:
  - Type: Gauge
  - Description: open WebSocket connections by declared node type.

maxwell_dispatch_requests_total{kind, status} / maxwell_dispatch_request_duration_seconds{kind}:
  - Type: Counter / Histogram
  - Description: dispatched protocol requests and their handling latency.

maxwell_http_select_requests_total{locality, status}:
  - Type: Counter
  - Description: $pick-frontend / $pick-frontends requests by peer locality.

maxwell_topic_cache_invalidations_total:
  - Type: Counter
  - Description: number of times the topic table was truncated on a
    backend-set change.

maxwell_services_total, maxwell_route_version and maxwell_topic_cache_entries
are registered and exported, but no code path sets them, so they read 0.

# Usage

	timer := metrics.NewTimer()
	resp := dispatch(req)
	timer.ObserveDurationVec(metrics.DispatchRequestDuration, string(req.Kind))

	http.Handle("/metrics", metrics.Handler())
*/
package metrics
