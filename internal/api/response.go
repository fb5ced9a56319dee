package api

import (
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/watchbridge/syncd/internal/logging"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Status string `json:"status"` // "success" or "error"
	Data   any    `json:"data,omitempty"`
	Error  *Error `json:"error,omitempty"`
}

// Error carries a machine-readable code alongside a human message.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal API response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("failed to write API response")
	}
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, &Response{Status: "success", Data: data})
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("api error")
	}
	respondJSON(w, status, &Response{Status: "error", Error: &Error{Code: code, Message: message}})
}

// requestTimer wraps a ResponseWriter to capture the status code for
// latency/outcome metrics, mirroring the pattern used elsewhere in this
// codebase's middleware.
type requestTimer struct {
	http.ResponseWriter
	statusCode int
	start      time.Time
}

func newRequestTimer(w http.ResponseWriter) *requestTimer {
	return &requestTimer{ResponseWriter: w, statusCode: http.StatusOK, start: time.Now()}
}

func (rt *requestTimer) WriteHeader(code int) {
	rt.statusCode = code
	rt.ResponseWriter.WriteHeader(code)
}
