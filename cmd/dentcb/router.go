package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Pablo751/dentcb/cmd/dentcb/handlers"
	"github.com/Pablo751/dentcb/cmd/dentcb/middleware"
	"github.com/Pablo751/dentcb/internal/assistant"
	"github.com/Pablo751/dentcb/internal/catalog"
	"github.com/Pablo751/dentcb/internal/observability"
	"github.com/Pablo751/dentcb/internal/scoring"
)

// RouterConfig holds the services and settings behind the HTTP API.
type RouterConfig struct {
	Assistant      *assistant.Assistant
	Ranker         *scoring.Ranker
	Sessions       *catalog.Sessions
	Ready          func(ctx context.Context) error
	RequestTimeout time.Duration
	CORSOrigins    []string
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"dentcb"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				logger.Warn().Err(err).Msg("Readiness check failed")
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.Write([]byte(`{"status":"ready"}`))
	})

	askHandler := handlers.NewAskHandler(logger, cfg.Assistant, cfg.Sessions)
	rankHandler := handlers.NewRankHandler(logger, cfg.Ranker, cfg.Sessions)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session)

		r.Post("/ask", askHandler.Ask)
		r.Post("/rank", rankHandler.Rank)
	})

	return r
}
