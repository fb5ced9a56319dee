/*
Package metrics exposes Prometheus instrumentation for the sync
pipeline: durable queue depth and retry counts, outbound peer request
latency and classified error rates, item path cache hit/miss/refresh
counts, circuit breaker state per peer, and the inbound webhook and
status API request surfaces.

Metrics are registered via promauto at package init in the default
Prometheus registry. The router in internal/api mounts no /metrics
route, so this package does not serve them over HTTP.
*/
package metrics
