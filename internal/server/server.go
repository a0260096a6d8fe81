// Package server exposes a minimal operator-facing HTTP status surface —
// liveness, per-site reliability, and recent run history — on a chi
// router. External dashboards poll this; nothing here renders UI.
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

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/reliability"
	"github.com/aristath/aegis-kr/internal/scheduler"
	"github.com/aristath/aegis-kr/pkg/logger"
)

// Config holds server wiring.
type Config struct {
	Port         int
	Log          zerolog.Logger
	SiteHealth   *database.SiteHealthStore
	Sites        *database.SiteStore
	ExecutionLog *database.ExecutionLogStore
	Monitoring   *reliability.MonitoringService
	Scheduler    *scheduler.Scheduler
	DevMode      bool
}

// Server is the operator status API.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger

	siteHealth   *database.SiteHealthStore
	sites        *database.SiteStore
	executionLog *database.ExecutionLogStore
	monitoring   *reliability.MonitoringService
	scheduler    *scheduler.Scheduler
	startedAt    time.Time
}

// New builds a Server and wires its routes.
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          logger.Component(cfg.Log, "server"),
		siteHealth:   cfg.SiteHealth,
		sites:        cfg.Sites,
		executionLog: cfg.ExecutionLog,
		monitoring:   cfg.Monitoring,
		scheduler:    cfg.Scheduler,
		startedAt:    time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Route("/status", func(r chi.Router) {
		r.Get("/sites", s.handleStatusSites)
		r.Get("/runs", s.handleStatusRuns)
		r.Get("/db", s.handleStatusDB)
		r.Get("/jobs", s.handleStatusJobs)
	})
}

// Start serves until the process is killed or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Int("port", 0).Str("addr", s.server.Addr).Msg("starting status server")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down status server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}
