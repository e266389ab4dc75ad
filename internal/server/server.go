// Package server provides the HTTP surface of the SCIM provisioning
// service: the protocol endpoints, health probes, and the metrics
// endpoint.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/elimity-com/scim"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/visibuild/scimitar/internal/config"
	"github.com/visibuild/scimitar/internal/database"
	"github.com/visibuild/scimitar/internal/observability"
)

// HealthChecker reports the health of the backing database.
type HealthChecker interface {
	Health(ctx context.Context) database.HealthStatus
}

// Server is the HTTP server hosting the SCIM endpoints.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	health     HealthChecker
	logger     zerolog.Logger
	metrics    *observability.Metrics
	cfg        *config.Config
}

// New creates the HTTP server. The resource types must already be wired
// to their handlers.
func New(
	cfg *config.Config,
	health HealthChecker,
	resourceTypes []scim.ResourceType,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) (*Server, error) {
	scimServer, err := scim.NewServer(&scim.ServerArgs{
		ServiceProviderConfig: &scim.ServiceProviderConfig{
			MaxResults:       cfg.SCIM.MaxPageSize,
			SupportFiltering: true,
			SupportPatch:     true,
		},
		ResourceTypes: resourceTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build SCIM server: %w", err)
	}

	s := &Server{
		health:  health,
		logger:  logger.With().Str("component", "http-server").Logger(),
		metrics: metrics,
		cfg:     cfg,
	}

	s.router = s.buildRouter(scimServer)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.HTTPAddress(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s, nil
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter(scimServer scim.Server) chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestContextMiddleware)
	r.Use(s.requestLoggerMiddleware)

	// Health endpoints (no auth)
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	if s.cfg.Metrics.Enabled {
		r.Method(http.MethodGet, s.cfg.Metrics.Path, promhttp.Handler())
	}

	// Protocol endpoints with auth + rate limiting
	basePath := s.cfg.SCIM.BasePath
	r.Route(basePath, func(r chi.Router) {
		if s.cfg.SCIM.RateLimitRPS > 0 {
			r.Use(s.rateLimitMiddleware())
		}
		if s.cfg.SCIM.BearerToken != "" {
			r.Use(s.bearerAuthMiddleware())
		}
		r.Mount("/", http.StripPrefix(basePath, scimServer))
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.health.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.health.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeScimError writes an error response in the protocol's error
// document format, used by middleware rejecting requests before they
// reach the protocol handlers.
func writeScimError(w http.ResponseWriter, statusCode int, detail string) {
	w.Header().Set("Content-Type", "application/scim+json")
	w.WriteHeader(statusCode)
	body := map[string]interface{}{
		"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:Error"},
		"status":  fmt.Sprintf("%d", statusCode),
		"detail":  detail,
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		_ = err
	}
}
