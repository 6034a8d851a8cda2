// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package api exposes the status engine and reports over HTTP.
package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/statustrack/internal/api/middleware"
	"github.com/ManuGH/statustrack/internal/auth"
	"github.com/ManuGH/statustrack/internal/domain/status/engine"
	"github.com/ManuGH/statustrack/internal/domain/status/report"
	"github.com/ManuGH/statustrack/internal/health"
	"github.com/ManuGH/statustrack/internal/log"
)

// Config tunes the HTTP surface.
type Config struct {
	// RateLimitRPM is requests per minute per client IP; 0 disables.
	RateLimitRPM int
	// ExportRate is CSV exports per second shared by all clients; 0 disables.
	ExportRate  float64
	ExportBurst int
	// TracingService names the otelhttp server spans; empty disables.
	TracingService string
	EnableMetrics  bool
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Engine  *engine.Engine
	Reports *report.Service
	Health  *health.Manager
}

// Validate reports missing dependencies.
func (d Deps) Validate() error {
	var errs []error
	if d.Engine == nil {
		errs = append(errs, errors.New("engine is required"))
	}
	if d.Reports == nil {
		errs = append(errs, errors.New("report service is required"))
	}
	if d.Health == nil {
		errs = append(errs, errors.New("health manager is required"))
	}
	return errors.Join(errs...)
}

// Server holds the routed handler.
type Server struct {
	cfg     Config
	engine  *engine.Engine
	reports *report.Service
	health  *health.Manager
	router  chi.Router
}

// NewServer wires routes for deps.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		cfg:     cfg,
		engine:  deps.Engine,
		reports: deps.Reports,
		health:  deps.Health,
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  s.cfg.EnableMetrics,
		TracingService: s.cfg.TracingService,
		EnableLogging:  true,
		RateLimitRPM:   s.cfg.RateLimitRPM,
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "system/not_found", "Not Found", "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusMethodNotAllowed, "system/method_not_allowed", "Method Not Allowed", "METHOD_NOT_ALLOWED", "")
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route("/api/status", func(r chi.Router) {
		r.Use(requirePrincipal)
		r.Post("/change", s.handleChange)
		r.Post("/stop", s.handleStop)
		r.Get("/current", s.handleCurrent)
		r.Get("/history", s.handleHistory)
		r.Get("/summary", s.handleSummary)
		if s.cfg.ExportRate > 0 {
			r.With(middleware.Throttle("export", s.cfg.ExportRate, s.cfg.ExportBurst)).Get("/export", s.handleExport)
		} else {
			r.Get("/export", s.handleExport)
		}
		r.Get("/team", s.handleTeam)
	})

	return r
}

// requirePrincipal resolves the caller from trusted proxy headers.
func requirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.FromHeaders(r)
		if err != nil {
			respondError(w, r, err, "")
			return
		}
		ctx := auth.NewContext(r.Context(), p)
		ctx = log.ContextWithUserID(ctx, p.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func principal(r *http.Request) auth.Principal {
	p, _ := auth.FromContext(r.Context())
	return p
}
