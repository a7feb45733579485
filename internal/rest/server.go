// Copyright (c) 2026 TailorFit Labs
//
// This file is part of tailorfit.
//
// tailorfit is licensed under the GNU Affero General Public License v3.0.
// See the LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html

package rest

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tailorfit/tailorfit/internal/scan"
	"github.com/tailorfit/tailorfit/internal/session"
	"github.com/tailorfit/tailorfit/pkg/health"
	"github.com/tailorfit/tailorfit/pkg/passkey"
	"github.com/tailorfit/tailorfit/pkg/ratelimit"
)

// Server is the HTTP API server.
type Server struct {
	server   *http.Server
	handlers *HandlerContext
	sessions *session.Manager
	health   *health.Checker
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	addr     string
}

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the listen address (default: 0.0.0.0)
	Host string

	// Port is the HTTP port to listen on (default: 8443)
	Port int

	// Passkeys runs the WebAuthn ceremonies (required)
	Passkeys *passkey.Service

	// Scans handles body-scan uploads (required)
	Scans *scan.Service

	// Sessions issues and verifies identity cookies (required)
	Sessions *session.Manager

	// Health runs the readiness checks (optional; without it /readyz
	// reports ready as soon as the server is up)
	Health *health.Checker

	// RateLimit throttles the anonymous ceremony endpoints (optional)
	RateLimit *ratelimit.Limiter

	// Logger is the structured logger (optional, defaults to slog.Default)
	Logger *slog.Logger

	// Version is the API version string
	Version string

	// MaxScanBytes caps a single scan upload
	MaxScanBytes int64

	// SecureCookies marks cookies Secure; disable only for local development
	SecureCookies bool

	// MetricsEnabled exposes Prometheus metrics
	MetricsEnabled bool

	// MetricsPath is the metrics endpoint path (default: /metrics)
	MetricsPath string

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration
}

// NewServer creates a new HTTP API server.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Passkeys == nil {
		return nil, fmt.Errorf("passkey service is required")
	}
	if cfg.Scans == nil {
		return nil, fmt.Errorf("scan service is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session manager is required")
	}

	if cfg.Port == 0 {
		cfg.Port = 8443
	}
	if cfg.Version == "" {
		cfg.Version = "1.0.0"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handlers := NewHandlerContext(cfg.Passkeys, cfg.Scans, cfg.Sessions,
		logger, cfg.Version, cfg.MaxScanBytes, cfg.SecureCookies)

	checker := cfg.Health
	if checker == nil {
		checker = health.NewChecker()
	}

	server := &Server{
		handlers: handlers,
		sessions: cfg.Sessions,
		health:   checker,
		limiter:  cfg.RateLimit,
		logger:   logger,
		addr:     net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port)),
	}

	router := server.setupRouter(cfg.MetricsEnabled, cfg.MetricsPath)

	server.server = &http.Server{
		Addr:         server.addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return server, nil
}

// setupRouter configures the chi router with all routes and middleware.
func (s *Server) setupRouter(metricsEnabled bool, metricsPath string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.handlers.HealthHandler)
	r.Head("/healthz", s.handlers.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)

	if metricsEnabled {
		r.Handle(metricsPath, promhttp.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Ceremony endpoints are anonymous by design; they carry the rate
		// limit because they are the only surface an unauthenticated
		// caller can drive.
		r.Group(func(r chi.Router) {
			if s.limiter != nil && s.limiter.IsEnabled() {
				r.Use(ratelimit.Middleware(s.limiter))
			}

			r.Post("/register/begin", s.handlers.BeginRegistrationHandler)
			r.Post("/register/finish", s.handlers.FinishRegistrationHandler)
			r.Post("/login/begin", s.handlers.BeginLoginHandler)
			r.Post("/login/finish", s.handlers.FinishLoginHandler)
		})

		r.Post("/logout", s.handlers.LogoutHandler)

		// Everything below requires an identity session.
		r.Group(func(r chi.Router) {
			r.Use(s.sessions.Middleware)

			r.Get("/me", s.handlers.MeHandler)
			r.Post("/scans", s.handlers.CreateScanHandler)
			r.Get("/scans", s.handlers.ListScansHandler)
		})
	})

	return r
}

// ReadyHandler handles GET /readyz. It runs the registered dependency
// checks and answers 503 until the service can take traffic.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	results := s.health.Check(r.Context())
	status := health.Aggregate(results)
	if !s.health.IsReady() {
		status = health.StatusUnhealthy
	}

	code := http.StatusOK
	if status != health.StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, ReadyResponse{Status: string(status), Checks: results}, code)
}

// Start starts the HTTP API server.
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server", "addr", s.addr)

	s.health.MarkReady()
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop gracefully stops the HTTP API server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down server")

	// Fail readiness first so load balancers drain before connections close.
	s.health.MarkNotReady()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("Failed to shutdown server", "error", err)
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Handler returns the configured router, for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.addr
}
