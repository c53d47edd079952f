// Package server implements the tripdraw HTTP API.
//
// The API exposes the lottery surfaces that club admins script
// against: running single-trip lotteries, managing separation
// requests, inspecting the separation graph (as JSON, DOT, or
// rendered SVG), and fetching stored run records.
//
// # Routes
//
//	POST   /trips/{tripID}/lottery
//	GET    /separations
//	POST   /separations
//	DELETE /separations/{initiatorID}/{recipientID}
//	GET    /separations/graph
//	GET    /separations/graph.dot
//	GET    /separations/graph.svg
//	GET    /separations/cycles?start={participantID}
//	GET    /runs/{runID}
//	GET    /healthz
//
// Rendered SVGs are cached through the configured Cache backend,
// keyed by graph content. Everything else is computed per request.
package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tripdraw/tripdraw/pkg/cache"
	"github.com/tripdraw/tripdraw/pkg/observability"
	"github.com/tripdraw/tripdraw/pkg/store"
)

// =============================================================================
// Server
// =============================================================================

// Options configures a Server.
type Options struct {
	// Store backs all reads and writes.
	Store store.Store

	// Cache holds rendered artifacts. Nil disables caching.
	Cache cache.Cache

	// Keys generates cache keys. Nil falls back to the default keyer.
	Keys cache.Keyer

	// Logger receives request and run logs. Nil uses log.Default().
	Logger *log.Logger

	// TTL bounds how long cached artifacts stay valid.
	TTL time.Duration

	// Secret feeds the lottery draw seeds for trip runs.
	Secret string
}

// Server handles tripdraw API requests.
type Server struct {
	store  store.Store
	cache  cache.Cache
	keys   cache.Keyer
	logger *log.Logger
	ttl    time.Duration
	secret string
}

// New creates a Server from options, applying defaults for optional
// fields.
func New(opts Options) *Server {
	s := &Server{
		store:  opts.Store,
		cache:  opts.Cache,
		keys:   opts.Keys,
		logger: opts.Logger,
		ttl:    opts.TTL,
		secret: opts.Secret,
	}
	if s.cache == nil {
		s.cache = cache.NewNullCache()
	}
	if s.keys == nil {
		s.keys = cache.NewDefaultKeyer()
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	return s
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)

	r.Post("/trips/{tripID}/lottery", s.handleRunTripLottery)

	r.Route("/separations", func(r chi.Router) {
		r.Get("/", s.handleListSeparations)
		r.Post("/", s.handleAddSeparation)
		r.Delete("/{initiatorID}/{recipientID}", s.handleRemoveSeparation)
		r.Get("/graph", s.handleGraphJSON)
		r.Get("/graph.dot", s.handleGraphDOT)
		r.Get("/graph.svg", s.handleGraphSVG)
		r.Get("/cycles", s.handleCycles)
	})

	r.Get("/runs/{runID}", s.handleGetRun)

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// logRequests logs one line per request with method, path, status, and
// duration.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTP().OnRequest(r.Context(), r.Method, r.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		observability.HTTP().OnResponse(r.Context(), r.Method, r.URL.Path, ww.Status(), time.Since(start))
		s.logger.Info("Request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
