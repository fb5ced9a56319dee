package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
)

// ChiMiddlewareConfig holds the CORS and rate-limiting configuration
// for the status API and webhook intake.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// DefaultChiMiddlewareConfig returns a secure default: CORS origins
// empty (requires explicit configuration) and a conservative rate
// limit suitable for a handful of peer servers calling in.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{},
		CORSAllowedMethods: []string{"GET", "POST"},
		CORSAllowedHeaders: []string{"Content-Type", "Authorization"},
		CORSMaxAge:         86400,

		RateLimitRequests: 120,
		RateLimitWindow:   time.Minute,
	}
}

// ChiMiddleware provides the Chi-compatible CORS and rate-limiting
// middleware built from a ChiMiddlewareConfig.
type ChiMiddleware struct {
	cfg  *ChiMiddlewareConfig
	cors func(http.Handler) http.Handler
}

// NewChiMiddleware builds a ChiMiddleware from cfg, defaulting when nil.
func NewChiMiddleware(cfg *ChiMiddlewareConfig) *ChiMiddleware {
	if cfg == nil {
		cfg = DefaultChiMiddlewareConfig()
	}
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: cfg.CORSAllowedMethods,
		AllowedHeaders: cfg.CORSAllowedHeaders,
		MaxAge:         cfg.CORSMaxAge,
	})
	return &ChiMiddleware{cfg: cfg, cors: corsHandler}
}

// CORS returns the configured go-chi/cors middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler { return m.cors }

// RateLimit returns an IP-keyed go-chi/httprate limiter.
func (m *ChiMiddleware) RateLimit() func(http.Handler) http.Handler {
	return httprate.Limit(m.cfg.RateLimitRequests, m.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP))
}
