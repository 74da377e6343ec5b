// Package server exposes the portfolio analysis pipeline over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/portfolio-optimizer/internal/modules/history"
	"github.com/aristath/portfolio-optimizer/internal/modules/marketdata"
	"github.com/aristath/portfolio-optimizer/internal/modules/optimization"
	"github.com/aristath/portfolio-optimizer/internal/scheduler"
)

// Config holds server dependencies
type Config struct {
	Log                 zerolog.Logger
	Port                int
	DevMode             bool
	DefaultRiskFreeRate float64
	Provider            marketdata.Provider
	Optimizer           *optimization.Service
	Runs                *history.Repository
	Validator           SymbolValidator
	PriceRepo           *marketdata.PriceRepository
	Scheduler           *scheduler.Scheduler
	MaintenanceJob      scheduler.Job
}

// Server is the HTTP server
type Server struct {
	router         *chi.Mux
	server         *http.Server
	handlers       *Handlers
	systemHandlers *SystemHandlers
	log            zerolog.Logger
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		handlers:       NewHandlers(cfg.Provider, cfg.Optimizer, cfg.Runs, cfg.Validator, cfg.DefaultRiskFreeRate, cfg.Log),
		systemHandlers: NewSystemHandlers(cfg.PriceRepo, cfg.Scheduler, cfg.MaintenanceJob, cfg.Log),
		log:            cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Router exposes the mux for tests
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)

	// Analysis requests fetch remote price history, so the timeout is
	// generous relative to a typical API.
	s.router.Use(middleware.Timeout(120 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.systemHandlers.HandleHealth)

		r.Post("/analyze", s.handlers.HandleAnalyze)
		r.Post("/simulate", s.handlers.HandleSimulate)

		r.Post("/symbols/validate", s.handlers.HandleValidateSymbols)

		r.Route("/analyses", func(r chi.Router) {
			r.Get("/", s.handlers.HandleListRuns)
			r.Get("/{id}", s.handlers.HandleGetRun)
		})

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.systemHandlers.HandleSystemStatus)
			r.Post("/jobs/cache-maintenance", s.systemHandlers.HandleTriggerCacheMaintenance)
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
