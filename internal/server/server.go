// Package server exposes the scoring engine, the Overpass proxy, score
// history and the assistant over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/assistant"
	"github.com/sells-group/geoequity/internal/ejv"
	"github.com/sells-group/geoequity/internal/refdata"
	"github.com/sells-group/geoequity/internal/store"
)

// Overpass is the proxy surface used by the handlers.
type Overpass interface {
	Query(ctx context.Context, query string) ([]byte, error)
	States() map[string]string
}

// Config tunes the HTTP layer.
type Config struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// MaxNearby caps how many nearby stores are scored per request.
	MaxNearby int
	// NearbyConcurrency bounds parallel scoring of nearby stores.
	NearbyConcurrency int
}

// Deps are the collaborators behind the handlers. Store, Overpass and
// Assistant are optional; their routes answer 503 when absent.
type Deps struct {
	Scorer    ejv.Scorer
	Tables    *refdata.Tables
	Overpass  Overpass
	Store     store.Store
	Assistant *assistant.Assistant
	Gatherer  prometheus.Gatherer
}

// Server holds the router and its dependencies.
type Server struct {
	cfg    Config
	deps   Deps
	router chi.Router
}

// New builds the server and its routes.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Scorer == nil {
		return nil, eris.New("server: scorer is required")
	}
	if deps.Tables == nil {
		return nil, eris.New("server: reference tables are required")
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	if deps.Assistant == nil {
		deps.Assistant = assistant.New(nil, assistant.Config{})
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	if cfg.MaxNearby <= 0 {
		cfg.MaxNearby = 50
	}
	if cfg.NearbyConcurrency <= 0 {
		cfg.NearbyConcurrency = 8
	}

	s := &Server{cfg: cfg, deps: deps}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/ejv", func(r chi.Router) {
			r.Get("/score", s.handleScoreQuery)
			r.Post("/score", s.handleScoreJSON)
			r.Post("/participation", s.handleParticipation)
			r.Get("/pathways", s.handlePathways)
			r.Get("/history", s.handleHistoryList)
			r.Get("/history/summary", s.handleHistorySummary)
			r.Get("/history/{id}", s.handleHistoryGet)
		})
		r.Get("/overpass", s.handleOverpass)
		r.Post("/overpass", s.handleOverpass)
		r.Get("/stores/nearby", s.handleNearby)
		r.Route("/ai", func(r chi.Router) {
			r.Get("/status", s.handleAIStatus)
			r.Post("/chat", s.handleAIChat)
			r.Post("/recommendations", s.handleAIRecommendations)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":         "ok",
		"tables_version": s.deps.Tables.Version,
		"store":          "disabled",
	}
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(r.Context()); err != nil {
			zap.L().Warn("server: store ping failed", zap.Error(err))
			status["store"] = "error"
			status["status"] = "degraded"
		} else {
			status["store"] = "ok"
		}
	}
	if s.deps.Overpass != nil {
		status["overpass"] = s.deps.Overpass.States()
	}
	writeJSON(w, http.StatusOK, status)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("server: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeScoreError maps scoring errors to status codes.
func writeScoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ejv.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "scoring timed out")
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusServiceUnavailable, "request cancelled")
	default:
		zap.L().Error("server: scoring failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "scoring failed")
	}
}
