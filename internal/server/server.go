// Package server runs the Gapfill HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/mvarela/gapfill/internal/auth"
	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/config"
	"github.com/mvarela/gapfill/internal/events"
	"github.com/mvarela/gapfill/internal/jobs"
)

// Server owns the HTTP listener and its routed dependencies.
type Server struct {
	cfg         *config.Config
	store       *backfill.Store
	registry    *jobs.Registry
	bus         *events.Bus
	authService *auth.Service
	httpServer  *http.Server
	router      *Router
}

// New creates the API server. bus and authService may be nil.
func New(cfg *config.Config, store *backfill.Store, registry *jobs.Registry, bus *events.Bus, authService *auth.Service) *Server {
	srv := &Server{
		cfg:         cfg,
		store:       store,
		registry:    registry,
		bus:         bus,
		authService: authService,
	}

	srv.router = NewRouter(srv)
	srv.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      srv.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return srv
}

// Start blocks serving HTTP until the listener closes.
func (s *Server) Start() error {
	log.Info().
		Str("addr", s.cfg.Server.Address()).
		Bool("auth", s.cfg.Auth.Enabled).
		Msg("Starting server")

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}
