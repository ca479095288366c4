/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the operational HTTP surface: health, status
// and metrics. It has no control endpoints; the poll loop is the only
// writer of queue state.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/friendsincode/playgate/internal/arbiter"
	"github.com/friendsincode/playgate/internal/telemetry"
	"github.com/friendsincode/playgate/internal/version"
)

// Server bundles the status HTTP server around the running arbiter.
type Server struct {
	logger     zerolog.Logger
	runner     *arbiter.Runner
	router     chi.Router
	httpServer *http.Server
	started    time.Time
}

// New creates the status server listening on bind:port.
func New(bind string, port int, runner *arbiter.Runner, logger zerolog.Logger) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.MetricsMiddleware)
	router.Use(middleware.Timeout(30 * time.Second))

	srv := &Server{
		logger:  logger.With().Str("component", "server").Logger(),
		runner:  runner,
		router:  router,
		started: time.Now(),
	}
	srv.configureRoutes()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// HTTPServer returns the underlying http.Server for the caller to start
// and shut down.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Ready once the loop has completed at least one tick.
	s.router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if s.runner.Status(0).TickCount == 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"waiting for first tick"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Get("/api/status", s.handleStatus)

	s.router.Handle("/metrics", telemetry.Handler())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("recent"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid recent parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	payload := struct {
		Version       string `json:"version"`
		UptimeSeconds int64  `json:"uptime_seconds"`
		arbiter.Status
	}{
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(s.started).Seconds()),
		Status:        s.runner.Status(limit),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode status response")
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'; base-uri 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}
