package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/go-chi/chi/v5"

	"github.com/watchbridge/syncd/internal/logging"
	"github.com/watchbridge/syncd/internal/metrics"
	"github.com/watchbridge/syncd/internal/models"
)

// webhookResult is the body of a successful /webhook/{peer_name} call.
type webhookResult struct {
	Status         string `json:"status"` // "enqueued" or "skipped"
	EventsEnqueued int    `json:"events_enqueued,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Webhook handles POST /webhook/{peer_name}: the only inbound intake
// surface in the system. A malformed body is 400; an unknown peer name
// is 404; everything else is handed to the dispatcher.
func (rt *Router) Webhook(w http.ResponseWriter, r *http.Request) {
	peerName := chi.URLParam(r, "peer_name")
	tw := newRequestTimer(w)
	defer func() {
		metrics.RecordWebhookRequest(peerName, strconv.Itoa(tw.statusCode), time.Since(tw.start))
	}()

	if rt.cfg.Peer(peerName) == nil {
		respondError(tw, http.StatusNotFound, "UNKNOWN_PEER", "unknown peer_name: "+peerName, nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(tw, http.StatusBadRequest, "BAD_BODY", "failed to read request body", err)
		return
	}

	var env models.WebhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		respondError(tw, http.StatusBadRequest, "MALFORMED_BODY", "request body is not a valid webhook envelope", err)
		return
	}

	n, err := rt.dispatcher.Dispatch(r.Context(), peerName, &env)
	if err != nil {
		logging.Error().Err(err).Str("peer", peerName).Msg("dispatch failed")
		respondError(tw, http.StatusInternalServerError, "DISPATCH_FAILED", "failed to process webhook", err)
		return
	}

	if n == 0 {
		respondData(tw, http.StatusOK, webhookResult{Status: "skipped", Reason: "no syncable change"})
		return
	}
	respondData(tw, http.StatusOK, webhookResult{Status: "enqueued", EventsEnqueued: n})
}
