package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordQueueDepth(t *testing.T) {
	RecordQueueDepth("PENDING", 7)
	got := testutil.ToFloat64(QueueDepth.WithLabelValues("PENDING"))
	if got != 7 {
		t.Fatalf("expected gauge 7, got %v", got)
	}
}

func TestRecordEventOutcome(t *testing.T) {
	before := testutil.ToFloat64(EventsProcessed.WithLabelValues("WATCHED", "peerB", "success"))
	RecordEventOutcome("WATCHED", "peerB", "success")
	after := testutil.ToFloat64(EventsProcessed.WithLabelValues("WATCHED", "peerB", "success"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, before=%v after=%v", before, after)
	}
}

func TestRecordRetryCount(t *testing.T) {
	RecordRetryCount("peerB", 3)
	if count := testutil.CollectAndCount(RetryCount); count == 0 {
		t.Fatal("expected at least one observation recorded")
	}
}

func TestRecordPeerRequest(t *testing.T) {
	RecordPeerRequest("peerB", "GET", 15*time.Millisecond)
	if count := testutil.CollectAndCount(PeerRequestDuration); count == 0 {
		t.Fatal("expected at least one observation recorded")
	}
}

func TestRecordPeerRequestError(t *testing.T) {
	before := testutil.ToFloat64(PeerRequestErrors.WithLabelValues("peerB", "not_found"))
	RecordPeerRequestError("peerB", "not_found")
	after := testutil.ToFloat64(PeerRequestErrors.WithLabelValues("peerB", "not_found"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, before=%v after=%v", before, after)
	}
}

func TestRecordWebhookRequest(t *testing.T) {
	before := testutil.ToFloat64(WebhookRequestsTotal.WithLabelValues("peerA", "200"))
	RecordWebhookRequest("peerA", "200", 5*time.Millisecond)
	after := testutil.ToFloat64(WebhookRequestsTotal.WithLabelValues("peerA", "200"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, before=%v after=%v", before, after)
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/status", "200"))
	RecordAPIRequest("GET", "/status", "200", 2*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/status", "200"))
	if after != before+1 {
		t.Fatalf("expected counter to increment by 1, before=%v after=%v", before, after)
	}
}

func TestCircuitBreakerMetricsRegistered(t *testing.T) {
	CircuitBreakerState.WithLabelValues("peerB").Set(1)
	CircuitBreakerConsecutiveFailures.WithLabelValues("peerB").Set(2)
	CircuitBreakerRequests.WithLabelValues("peerB", "failure").Inc()
	CircuitBreakerTransitions.WithLabelValues("peerB", "closed", "open").Inc()

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("peerB")); got != 1 {
		t.Fatalf("expected state gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(CircuitBreakerConsecutiveFailures.WithLabelValues("peerB")); got != 2 {
		t.Fatalf("expected consecutive-failures gauge 2, got %v", got)
	}
}
