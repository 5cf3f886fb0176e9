// Package server wires the HTTP API: routes, middleware, and lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	"jobtrack/internal/server/handlers"
	"jobtrack/internal/server/middleware"
)

// Config carries the server's wiring-time settings.
type Config struct {
	Addr         string
	SystemSecret string

	// MetricsHandler, when set, is mounted at /metrics.
	MetricsHandler http.Handler
}

// Server is the HTTP server for the jobtrack API.
type Server struct {
	httpServer *http.Server
}

// New creates a new API server.
func New(cfg Config, store handlers.StoreFactory, h *handlers.Handlers) *Server {
	authMW := middleware.AuthMiddleware(store)
	rateMW := middleware.RateLimitMiddleware()
	internalMW := middleware.RequireInternalAuth(cfg.SystemSecret)

	authed := func(hf http.HandlerFunc) http.Handler {
		return authMW(rateMW(hf))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if cfg.MetricsHandler != nil {
		mux.Handle("GET /metrics", cfg.MetricsHandler)
	}

	// Tenant provisioning is open; everything below requires an API key.
	mux.HandleFunc("POST /tenants", h.CreateTenant)

	mux.Handle("POST /users", authed(h.CreateUser))

	mux.Handle("POST /jobs", authed(h.CreateJob))
	mux.Handle("GET /jobs/{id}", authed(h.GetJob))
	mux.Handle("POST /jobs/{id}/transitions", authed(h.TransitionJob))
	mux.Handle("GET /jobs/{id}/history", authed(h.JobHistory))
	mux.Handle("POST /jobs/{id}/reminders", authed(h.ScheduleReminder))

	mux.Handle("POST /stages", authed(h.CreateStage))
	mux.Handle("GET /stages", authed(h.ListStages))
	mux.Handle("POST /stages/edges", authed(h.CreateStageEdge))
	mux.Handle("DELETE /stages/{id}", authed(h.DeactivateStage))

	mux.Handle("GET /rollup", authed(h.StageRollup))
	mux.Handle("POST /audit/backfill", authed(h.AuditBackfill))

	// Internal endpoints, guarded by the system secret.
	// These should run behind strict network rules.
	mux.Handle("POST /internal/reminders/dispatch", internalMW(http.HandlerFunc(h.InternalDispatchDue)))

	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.Addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
	}
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
