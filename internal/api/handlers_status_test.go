package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/go-chi/chi/v5"

	"github.com/watchbridge/syncd/internal/models"
)

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestStatusSummary_ReturnsSuccessEnvelope(t *testing.T) {
	rt := testRouter(t)
	rt.Webhook(httptest.NewRecorder(), webhookRequest("lan", &models.WebhookEnvelope{
		NotificationType: "PlaybackStop", Username: "alice", UserID: "u1",
		ItemID: "item1", ItemPath: "/movies/a.mkv", PlayedToCompletion: true,
	}))

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	rt.StatusSummary(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("expected success envelope, got %+v", resp)
	}
}

func TestListQueue_RejectsUnknownStatus(t *testing.T) {
	rt := testRouter(t)
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/status/queue/BOGUS", nil), "status", "BOGUS")
	w := httptest.NewRecorder()
	rt.ListQueue(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestListQueue_ReturnsPendingRows(t *testing.T) {
	rt := testRouter(t)
	rt.Webhook(httptest.NewRecorder(), webhookRequest("lan", &models.WebhookEnvelope{
		NotificationType: "PlaybackStop", Username: "alice", UserID: "u1",
		ItemID: "item1", ItemPath: "/movies/a.mkv", PlayedToCompletion: true,
	}))

	req := withURLParam(httptest.NewRequest(http.MethodGet, "/status/queue/PENDING", nil), "status", "PENDING")
	w := httptest.NewRecorder()
	rt.ListQueue(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	rows, ok := resp.Data.([]any)
	if !ok || len(rows) != 1 {
		t.Fatalf("expected 1 queued row, got %+v", resp.Data)
	}
}

func TestSyncLog_RejectsOutOfRangeLimit(t *testing.T) {
	rt := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/status/log?limit=5000", nil)
	w := httptest.NewRecorder()
	rt.SyncLog(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}

func TestRetryEvent_BadIDIs400(t *testing.T) {
	rt := testRouter(t)
	req := withURLParam(httptest.NewRequest(http.MethodPost, "/status/events/abc/retry", nil), "id", "abc")
	w := httptest.NewRecorder()
	rt.RetryEvent(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
