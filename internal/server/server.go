// Package server exposes the radar over HTTP: position ingestion and reads,
// the live broadcast as server-sent events and WebSocket, viewer presence,
// capabilities, health and metrics.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/unklstewy/atc-radar/internal/auth"
	"github.com/unklstewy/atc-radar/internal/logging"
	"github.com/unklstewy/atc-radar/internal/metrics"
	"github.com/unklstewy/atc-radar/pkg/position"
	"github.com/unklstewy/atc-radar/pkg/viewers"
)

// maxBodyBytes bounds ingestion and viewer request bodies.
const maxBodyBytes = 1 << 20

// RoleSource looks up a user's stored role.
type RoleSource interface {
	GetRole(ctx context.Context, userID int) (string, error)
}

// Config wires the server to its collaborators.
type Config struct {
	Store   *position.Store
	Viewers *viewers.Tracker

	// Auth validates capability tokens; nil treats every caller as FREE.
	Auth *auth.Service

	// Roles resolves user roles; nil treats every caller as FREE.
	Roles RoleSource

	// DatabaseCheck reports role database health on /healthz when set.
	DatabaseCheck func(ctx context.Context) bool

	// HeartbeatInterval is the broadcast keep-alive period (default: 30s)
	HeartbeatInterval time.Duration

	// Buffer is the pending snapshot slots per connection (default: 8)
	Buffer int

	// RateLimit is the per-IP ingestion budget per RateWindow; 0 disables
	RateLimit  int
	RateWindow time.Duration

	// TrustProxy takes the client IP from X-Forwarded-For and X-Real-IP.
	// Leave off unless a reverse proxy sets those headers, or producers can
	// pick their own rate limit key.
	TrustProxy bool
}

// Server holds the HTTP router and its dependencies
type Server struct {
	router    *chi.Mux
	store     *position.Store
	viewers   *viewers.Tracker
	authSvc   *auth.Service
	roles     RoleSource
	heartbeat time.Duration
	buffer    int
	validate  *validator.Validate
	log       zerolog.Logger
	cfg       Config

	// streams ends every open broadcast connection when cancelled.
	streams      context.Context
	closeStreams context.CancelFunc
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 8
	}

	s := &Server{
		router:    chi.NewRouter(),
		store:     cfg.Store,
		viewers:   cfg.Viewers,
		authSvc:   cfg.Auth,
		roles:     cfg.Roles,
		heartbeat: cfg.HeartbeatInterval,
		buffer:    cfg.Buffer,
		validate:  validator.New(),
		log:       logging.Component("http"),
		cfg:       cfg,
	}
	s.streams, s.closeStreams = context.WithCancel(context.Background())
	s.setupRoutes()
	return s
}

// HTTPServer returns an http.Server for the router that ends open broadcast
// streams as soon as Shutdown begins. Shutdown does not cancel request
// contexts, so without this a connected viewer holds shutdown until its
// deadline.
func (s *Server) HTTPServer(addr string) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(s.CloseStreams)
	return srv
}

// CloseStreams ends every open broadcast connection and refuses new ones.
// Safe to call more than once.
func (s *Server) CloseStreams() {
	s.closeStreams()
}

// streamContext returns a context that ends with the request or with
// CloseStreams, whichever comes first.
func (s *Server) streamContext(r *http.Request) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(r.Context())
	stop := context.AfterFunc(s.streams, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)

	// Producers and viewers are anonymous browser pages on other origins.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		// Long-lived streams stay outside the request logger.
		r.Get("/atc/stream", s.handleStream)
		r.Get("/atc/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.requestLogger)

			r.With(s.ingestRateLimit()).Post("/atc/position", s.handlePostPosition)
			r.Get("/atc/position", s.handleGetPosition)

			r.Post("/atc/viewers", s.handleRegisterViewer)
			r.Get("/atc/viewers", s.handleViewerStats)

			r.Get("/me/capabilities", s.handleCapabilities)
		})
	})
}

// ingestRateLimit limits position reports per client IP.
func (s *Server) ingestRateLimit() func(http.Handler) http.Handler {
	if s.cfg.RateLimit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		s.cfg.RateLimit,
		s.cfg.RateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.ReportsRejected.WithLabelValues("rate_limited").Inc()
			respondError(w, http.StatusTooManyRequests, "Too many requests")
		}),
	)
}

// requestLogger logs each completed request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	active := 0
	if s.viewers != nil {
		active = s.viewers.Stats().Active
	}
	resp := map[string]interface{}{
		"status":   "ok",
		"aircraft": len(s.store.All()),
		"streams":  s.store.Subscribers(),
		"viewers":  active,
	}

	// Positions never touch the database, so a lost one only degrades.
	if s.cfg.DatabaseCheck != nil {
		resp["database"] = "ok"
		if !s.cfg.DatabaseCheck(r.Context()) {
			resp["database"] = "down"
			resp["status"] = "degraded"
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
