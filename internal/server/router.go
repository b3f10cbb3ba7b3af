package server

import (
	"net/http"

	"github.com/mvarela/gapfill/internal/metrics"
	"github.com/mvarela/gapfill/internal/server/handlers"
)

// Router wires the API routes behind the middleware chain.
type Router struct {
	server      *Server
	mux         *http.ServeMux
	middlewares []Middleware
}

func NewRouter(srv *Server) *Router {
	r := &Router{
		server: srv,
		mux:    http.NewServeMux(),
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

func (r *Router) setupMiddleware() {
	r.Use(RecoveryMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(MetricsMiddleware)

	if r.server.cfg.Server.CORS.Enabled {
		r.Use(CORSMiddleware(r.server.cfg.Server.CORS))
	}
	if r.server.cfg.Server.MaxBodySize > 0 {
		r.Use(MaxBodySizeMiddleware(r.server.cfg.Server.MaxBodySize))
	}
	if r.server.cfg.Auth.Enabled && r.server.authService != nil {
		r.Use(AuthMiddleware(r.server.authService))
	}
}

func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, mw)
}

func (r *Router) setupRoutes() {
	h := handlers.New(r.server.store, r.server.registry, r.server.bus, r.server.authService, r.server.cfg)

	r.mux.HandleFunc("GET /health", h.HealthCheck)
	r.mux.Handle("GET /metrics", metrics.Handler())

	r.mux.HandleFunc("POST /api/auth/login", h.Login)

	r.mux.HandleFunc("POST /api/backfills", h.CreateBackfill)
	r.mux.HandleFunc("GET /api/backfills", h.ListBackfills)
	r.mux.HandleFunc("GET /api/backfills/{id}", h.GetBackfill)
	r.mux.HandleFunc("DELETE /api/backfills/{id}", h.DeleteBackfill)
	r.mux.HandleFunc("GET /api/backfills/{id}/runs", h.ListRuns)

	r.mux.HandleFunc("GET /api/schedule", h.GetSchedule)
}

// ServeHTTP applies the middleware chain outermost-first.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var handler http.Handler = r.mux
	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}
	handler.ServeHTTP(w, req)
}
