// Cartographus - Media Server Analytics and Geographic Visualization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cartographus

/*
Package middleware provides HTTP middleware components for syncd's
webhook intake and status API.

Key Components:

  - Compression: Gzip compression for responses to clients that accept gzip
  - Request ID: UUID-based request tracking for distributed tracing
  - Prometheus Metrics: HTTP request/response instrumentation

Middleware Stack:

internal/api.Router.SetupChi applies these in order, outermost first:
Recoverer, RequestID, PrometheusMetrics, Compression, then the CORS and
rate-limit middleware from internal/api, then the matched route
handler.

Usage Example - Compression:

	import "github.com/watchbridge/syncd/internal/middleware"

	// Wrap handler with gzip compression
	http.HandleFunc("/status",
	    middleware.Compression(handler),
	)

	// Responses of any size are compressed
	// Accept-Encoding: gzip header is required

Usage Example - Request ID:

	// Request ID middleware
	http.HandleFunc("/status",
	    middleware.RequestID(handler),
	)

	// Access request ID in handler
	func handler(w http.ResponseWriter, r *http.Request) {
	    requestID := r.Context().Value(middleware.RequestIDKey).(string)
	    log.Printf("[%s] Processing request", requestID)
	}

Compression Details:

The compression middleware:
  - Compresses responses of any size (no size threshold)
  - Supports gzip encoding (Accept-Encoding: gzip)
  - Skips WebSocket upgrade requests
  - Automatically sets Content-Encoding header

Thread Safety:

All middleware components are thread-safe:
  - Compression uses a sync.Pool of gzip writers
  - Request ID uses context.Context (immutable)
  - Prometheus metrics use atomic operations

See Also:

  - internal/api: HTTP handlers and router wiring these middleware
  - internal/metrics: Prometheus metrics definitions
*/
package middleware
