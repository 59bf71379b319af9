// Package server exposes effort evaluation and layout optimization over HTTP.
//
// Routes:
//
//	GET  /healthz
//	GET  /api/v1/models          built-in effort models
//	GET  /api/v1/layouts         built-in layouts and keyboards
//	POST /api/v1/effort          effort of a layout for a text or triad file
//	POST /api/v1/optimize        optimize a layout, recording the run
//	GET  /api/v1/runs            recorded runs, newest first
//	GET  /api/v1/runs/{runID}    a recorded run
//
// Only built-in keyboards, layouts and models can be named in requests;
// custom layouts are sent inline as TOML.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/keyforge/pkg/observability"
	"github.com/matzehuels/keyforge/pkg/pipeline"
	"github.com/matzehuels/keyforge/pkg/runstore"
)

// Defaults for request limits.
const (
	DefaultMaxSteps    = 200000
	DefaultMaxBodySize = 16 << 20
	DefaultTimeout     = 5 * time.Minute

	// MaxRestarts caps concurrent annealers per request.
	MaxRestarts = 8
)

// Options configures a [Server].
type Options struct {
	Runner *pipeline.Runner
	// Store records optimization runs. Nil disables the run routes.
	Store  runstore.Store
	Logger *log.Logger
	// MaxSteps caps the steps of a single optimization request.
	MaxSteps    int
	MaxBodySize int64
	Timeout     time.Duration
}

// Server serves the HTTP API.
type Server struct {
	runner   *pipeline.Runner
	store    runstore.Store
	logger   *log.Logger
	maxSteps int
	maxBody  int64
	timeout  time.Duration
	router   chi.Router
}

// New builds the server and its routes.
func New(opts Options) *Server {
	s := &Server{
		runner:   opts.Runner,
		store:    opts.Store,
		logger:   opts.Logger,
		maxSteps: opts.MaxSteps,
		maxBody:  opts.MaxBodySize,
		timeout:  opts.Timeout,
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	if s.runner == nil {
		s.runner = pipeline.NewRunner(nil, nil, s.logger)
	}
	if s.maxSteps <= 0 {
		s.maxSteps = DefaultMaxSteps
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBodySize
	}
	if s.timeout <= 0 {
		s.timeout = DefaultTimeout
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/models", s.handleModels)
		r.Get("/layouts", s.handleLayouts)
		r.Post("/effort", s.handleEffort)
		r.Post("/optimize", s.handleOptimize)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{runID}", s.handleGetRun)
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown", "err", err)
		}
	}()

	s.logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// observe reports requests to the HTTP hooks and logs them.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, r.URL.Path)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		duration := time.Since(start)
		hooks.OnResponse(r.Context(), r.Method, r.URL.Path, status, duration)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", status,
			"duration", duration, "request_id", middleware.GetReqID(r.Context()))
	})
}
