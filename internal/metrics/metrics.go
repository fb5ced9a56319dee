package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth reports the current row count per durable queue status
	// (PENDING, PROCESSING, WAITING_FOR_ITEM), as last set by
	// RecordQueueDepth. The worker's tick does not call RecordQueueDepth.
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncd_queue_depth",
			Help: "Current number of pending_events rows by status",
		},
		[]string{"status"},
	)

	// EventsProcessed counts terminal outcomes per event type and target
	// peer: "success", "retry", "permanent_failure", "waiting_for_item".
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_events_processed_total",
			Help: "Total number of pending_events rows reaching a terminal tick outcome",
		},
		[]string{"event_type", "target_peer", "outcome"},
	)

	// RetryCount observes how many attempts a row needed before success
	// or permanent failure, bucketed by MaxRetries' typical range.
	RetryCount = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_event_retry_count",
			Help:    "Number of attempts an event took before leaving the queue",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"target_peer"},
	)

	// PeerRequestDuration observes the latency of one peer REST call.
	PeerRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_peer_request_duration_seconds",
			Help:    "Duration of outbound peer REST calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"peer", "method"},
	)

	// PeerRequestErrors counts classified peer REST failures.
	PeerRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_peer_request_errors_total",
			Help: "Total number of peer REST calls that returned a classified error",
		},
		[]string{"peer", "error_type"}, // not_found, unauthorized, server_error, transport
	)

	// ItemPathCacheHits / ItemPathCacheMisses track the Item Path Cache's
	// effectiveness per peer, separate from the library-refresh count.
	ItemPathCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_item_path_cache_hits_total",
			Help: "Total number of item path cache lookups satisfied without a library refresh",
		},
		[]string{"peer"},
	)

	ItemPathCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_item_path_cache_misses_total",
			Help: "Total number of item path cache lookups that required a library refresh",
		},
		[]string{"peer"},
	)

	ItemPathCacheRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_item_path_cache_refreshes_total",
			Help: "Total number of full-library refreshes performed to repopulate the item path cache",
		},
		[]string{"peer"},
	)

	// WebhookRequestsTotal / WebhookRequestDuration cover the inbound
	// intake surface, POST /webhook/{peer_name}. Requests of every route,
	// the status API included, are counted in APIRequestsTotal /
	// APIRequestDuration instead.
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_webhook_requests_total",
			Help: "Total number of inbound webhook requests",
		},
		[]string{"source_peer", "status_code"},
	)

	WebhookRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_webhook_request_duration_seconds",
			Help:    "Duration of inbound webhook handling in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"source_peer"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_api_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "route", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncd_api_request_duration_seconds",
			Help:    "Duration of status API requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// Circuit breaker metrics shared by every peerclient.Client.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncd_circuit_breaker_state",
			Help: "Circuit breaker state per peer (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_circuit_breaker_requests_total",
			Help: "Total number of requests observed by a peer's circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "syncd_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures observed by a peer's circuit breaker",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncd_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions per peer",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordQueueDepth sets the gauge for one queue status. Nothing in the
// worker or the store calls it; the gauge changes only when it is called.
func RecordQueueDepth(status string, count int64) {
	QueueDepth.WithLabelValues(status).Set(float64(count))
}

// RecordEventOutcome increments the terminal-outcome counter for one
// processed event.
func RecordEventOutcome(eventType, targetPeer, outcome string) {
	EventsProcessed.WithLabelValues(eventType, targetPeer, outcome).Inc()
}

// RecordRetryCount observes how many attempts an event took before
// leaving the queue, terminally or otherwise.
func RecordRetryCount(targetPeer string, retries int) {
	RetryCount.WithLabelValues(targetPeer).Observe(float64(retries))
}

// RecordPeerRequest observes one outbound peer REST call's latency.
func RecordPeerRequest(peer, method string, duration time.Duration) {
	PeerRequestDuration.WithLabelValues(peer, method).Observe(duration.Seconds())
}

// RecordPeerRequestError increments the classified peer error counter.
func RecordPeerRequestError(peer, errorType string) {
	PeerRequestErrors.WithLabelValues(peer, errorType).Inc()
}

// RecordWebhookRequest records one inbound webhook request's outcome
// and latency.
func RecordWebhookRequest(sourcePeer, statusCode string, duration time.Duration) {
	WebhookRequestsTotal.WithLabelValues(sourcePeer, statusCode).Inc()
	WebhookRequestDuration.WithLabelValues(sourcePeer).Observe(duration.Seconds())
}

// RecordAPIRequest records one status API request's outcome and
// latency.
func RecordAPIRequest(method, route, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
