package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/watchbridge/syncd/internal/models"
	"github.com/watchbridge/syncd/internal/validation"
)

// peerHealth reports one peer's reachability, keyed by peer name.
type peerHealth struct {
	Reachable bool `json:"reachable"`
}

// statusSummary is the body of GET /status.
type statusSummary struct {
	UptimeSeconds int64                 `json:"uptime_seconds"`
	QueueDepth    map[string]int64      `json:"queue_depth"`
	Peers         map[string]peerHealth `json:"peers"`
	Sync          *statusSyncStats      `json:"sync"`
}

type statusSyncStats struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
	LastSyncAt int64 `json:"last_sync_at"`
}

// StatusSummary handles GET /status: queue depth by state, each
// configured peer's reachability, and the sync log's running totals.
func (rt *Router) StatusSummary(w http.ResponseWriter, r *http.Request) {
	counts, err := rt.db.CountByStatus()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to read queue depth", err)
		return
	}
	queueDepth := make(map[string]int64, len(counts))
	for status, n := range counts {
		queueDepth[string(status)] = n
	}

	peers := make(map[string]peerHealth, len(rt.resolvers))
	for name, resolver := range rt.resolvers {
		peers[name] = peerHealth{Reachable: resolver.Client().HealthCheck(r.Context())}
	}

	stats, err := rt.db.GetSyncStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to read sync stats", err)
		return
	}

	respondData(w, http.StatusOK, &statusSummary{
		UptimeSeconds: int64(time.Since(rt.startTime).Seconds()),
		QueueDepth:    queueDepth,
		Peers:         peers,
		Sync: &statusSyncStats{
			Total:      stats.Total,
			Successful: stats.Successful,
			Failed:     stats.Failed,
			LastSyncAt: stats.LastSyncAt,
		},
	})
}

// ListQueue handles GET /status/queue/{status}, a paginated view over
// PENDING, PROCESSING, or WAITING_FOR_ITEM rows.
func (rt *Router) ListQueue(w http.ResponseWriter, r *http.Request) {
	status := models.PendingStatus(chi.URLParam(r, "status"))
	switch status {
	case models.StatusPending, models.StatusProcessing, models.StatusWaitingForItem:
	default:
		respondError(w, http.StatusBadRequest, "BAD_STATUS", "unknown queue status: "+string(status), nil)
		return
	}

	limit, offset, verr := paginationParams(r)
	if verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	events, err := rt.db.ListByStatus(status, limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to list queue", err)
		return
	}
	respondData(w, http.StatusOK, events)
}

// SyncLog handles GET /status/log, a paginated view over the audit log.
func (rt *Router) SyncLog(w http.ResponseWriter, r *http.Request) {
	limit, offset, verr := paginationParams(r)
	if verr != nil {
		apiErr := verr.ToAPIError()
		respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
		return
	}
	entries, err := rt.db.ListSyncLog(limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "QUERY_FAILED", "failed to list sync log", err)
		return
	}
	respondData(w, http.StatusOK, entries)
}

// RetryEvent handles POST /status/events/{id}/retry: reconstructs a
// permanently-failed sync_log entry as a fresh PENDING row.
func (rt *Router) RetryEvent(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_ID", "id must be an integer", err)
		return
	}
	newID, err := rt.db.RetryEvent(id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "RETRY_FAILED", "failed to retry event", err)
		return
	}
	respondData(w, http.StatusOK, map[string]int64{"id": newID})
}

// paginationRequest is validated with go-playground/validator so
// out-of-range limit/offset values are rejected explicitly rather than
// silently clamped.
type paginationRequest struct {
	Limit  int `validate:"min=1,max=500"`
	Offset int `validate:"min=0"`
}

func paginationParams(r *http.Request) (limit, offset int, verr *validation.RequestValidationError) {
	req := paginationRequest{Limit: 50, Offset: 0}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, validation.ValidateStruct(&paginationRequest{Limit: -1})
		}
		req.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, validation.ValidateStruct(&paginationRequest{Limit: req.Limit, Offset: -1})
		}
		req.Offset = n
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return 0, 0, verr
	}
	return req.Limit, req.Offset, nil
}
