// Package handlers implements the Gapfill HTTP API.
package handlers

import (
	"github.com/mvarela/gapfill/internal/auth"
	"github.com/mvarela/gapfill/internal/backfill"
	"github.com/mvarela/gapfill/internal/config"
	"github.com/mvarela/gapfill/internal/events"
	"github.com/mvarela/gapfill/internal/jobs"
)

// Handlers bundles the dependencies the API handlers share.
type Handlers struct {
	store    *backfill.Store
	registry *jobs.Registry
	bus      *events.Bus
	auth     *auth.Service
	cfg      *config.Config
}

// New creates the handler set. bus and authService may be nil.
func New(store *backfill.Store, registry *jobs.Registry, bus *events.Bus, authService *auth.Service, cfg *config.Config) *Handlers {
	return &Handlers{
		store:    store,
		registry: registry,
		bus:      bus,
		auth:     authService,
		cfg:      cfg,
	}
}
