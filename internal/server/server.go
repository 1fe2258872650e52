// Package server exposes the ingestion pipeline over HTTP: capture and
// batch endpoints, issue actions, artifact uploads, per-project release
// stats, a live websocket stream, and the Prometheus scrape handler.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"faultline/internal/bootstrap/logging"
	"faultline/internal/broadcast"
	"faultline/internal/errs"
	"faultline/internal/usecase/intake"
)

// Config bounds the HTTP surface. Zero values fall back to the documented
// defaults.
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Heartbeat is the websocket ping interval. A peer that misses two
	// heartbeats in a row is dropped by the read deadline.
	Heartbeat time.Duration

	// MaxBodyBytes caps request bodies, artifact uploads and event
	// payloads alike.
	MaxBodyBytes int64
}

const (
	defaultAddr            = ":8080"
	defaultReadTimeout     = 15 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultHeartbeat       = 30 * time.Second
	defaultMaxBodyBytes    = 32 << 20
)

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = defaultAddr
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = defaultHeartbeat
	}
	if c.MaxBodyBytes < 1 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	return c
}

// Server owns the router and its collaborators. Build with New, serve with
// Run, or mount Handler behind an existing listener (tests do this).
type Server struct {
	cfg      Config
	svc      *intake.Service
	registry *broadcast.Registry
	router   chi.Router
}

func New(cfg Config, svc *intake.Service, registry *broadcast.Registry) *Server {
	s := &Server{
		cfg:      cfg.withDefaults(),
		svc:      svc,
		registry: registry,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler, healthz and metrics included.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(requestLogger)
	r.Use(recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/projects/{project}", func(r chi.Router) {
		r.Post("/events", s.handleCapture)
		r.Post("/events/batch", s.handleCaptureBatch)

		r.Post("/artifacts", s.handleUploadArtifact)
		r.Get("/artifacts/{artifactID}", s.handleGetArtifact)
		r.Delete("/artifacts/{artifactID}", s.handleDeleteArtifact)

		r.Get("/issues", s.handleListIssues)
		r.Get("/issues/{issueID}", s.handleGetIssue)
		r.Post("/issues/{issueID}/resolve", s.handleResolveIssue)
		r.Post("/issues/{issueID}/unresolve", s.handleUnresolveIssue)
		r.Post("/issues/{issueID}/ignore", s.handleIgnoreIssue)
		r.Post("/issues/{issueID}/assign", s.handleAssignIssue)
		r.Delete("/issues/{issueID}", s.handleDeleteIssue)

		r.Get("/releases", s.handleListReleases)
		r.Get("/releases/{version}", s.handleGetRelease)

		r.Get("/subscribe", s.handleSubscribe)
	})

	return r
}

// Run serves until the context is cancelled or SIGINT/SIGTERM arrives,
// then drains in-flight requests within the shutdown timeout. Hijacked
// websocket connections are torn down by the registry close hook, not by
// Shutdown.
func (s *Server) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Requests inherit the pre-signal context so the context logger
	// survives into handlers and drain is not cut short by cancellation.
	baseCtx := ctx
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  2 * time.Minute,
		BaseContext:  func(net.Listener) context.Context { return baseCtx },
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info(baseCtx, "http server started", slog.String("addr", s.cfg.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errs.Wrap(err, "serve http")
		}
		return nil
	case <-ctx.Done():
	}

	logging.Info(baseCtx, "http server draining", slog.Duration("timeout", s.cfg.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(err, "shutdown http server")
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errs.Wrap(err, "serve http")
	}

	logging.Info(baseCtx, "http server stopped")
	return nil
}
