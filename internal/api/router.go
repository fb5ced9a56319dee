package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/watchbridge/syncd/internal/config"
	"github.com/watchbridge/syncd/internal/dispatcher"
	"github.com/watchbridge/syncd/internal/middleware"
	"github.com/watchbridge/syncd/internal/peerclient"
	"github.com/watchbridge/syncd/internal/store"
)

// Router holds every dependency the HTTP surfaces need: the webhook
// intake hands events to the dispatcher, the status API reads the store
// directly and checks peer reachability through each resolver's client.
type Router struct {
	cfg        *config.Config
	db         *store.DB
	dispatcher *dispatcher.Dispatcher
	resolvers  map[string]*peerclient.Resolver
	startTime  time.Time
}

// NewRouter builds a Router. resolvers must contain one entry per
// configured peer, keyed by peer name.
func NewRouter(cfg *config.Config, db *store.DB, disp *dispatcher.Dispatcher, resolvers map[string]*peerclient.Resolver) *Router {
	return &Router{
		cfg:        cfg,
		db:         db,
		dispatcher: disp,
		resolvers:  resolvers,
		startTime:  time.Now(),
	}
}

// SetupChi wires the webhook intake and status API onto a chi.Mux with
// request-id propagation, CORS, and rate limiting applied globally.
func (rt *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(asChiMiddleware(middleware.RequestID))
	r.Use(asChiMiddleware(middleware.PrometheusMetrics))
	r.Use(asChiMiddleware(middleware.Compression))

	mw := NewChiMiddleware(DefaultChiMiddlewareConfig())
	r.Use(mw.CORS())
	r.Use(mw.RateLimit())

	r.Post("/webhook/{peer_name}", rt.Webhook)

	r.Route("/status", func(r chi.Router) {
		r.Get("/", rt.StatusSummary)
		r.Get("/queue/{status}", rt.ListQueue)
		r.Get("/log", rt.SyncLog)
		r.Post("/events/{id}/retry", rt.RetryEvent)
	})

	return r
}

// asChiMiddleware adapts an http.HandlerFunc middleware to chi's
// func(http.Handler) http.Handler shape.
func asChiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}
