// Package core provides the API chassis for the bioclim extraction service.
// It creates a chi router and enforces cross-cutting concerns -- security,
// logging, observability, and error handling -- before requests reach the
// domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"bioclim/internal/config"
)

// MetricsCollector defines the interface for recording API telemetry.
// Implementations record request latency and count metrics to Prometheus
// or equivalent backends.
type MetricsCollector interface {
	// RecordRequest records API request metrics including latency and count.
	RecordRequest(method, endpoint, status string, duration time.Duration)

	// RecordUpstreamCall records the outcome and latency of a call to an
	// upstream service (e.g. the Earth Engine sampling endpoint).
	RecordUpstreamCall(upstream, outcome string, duration time.Duration)
}

// Server encapsulates all dependencies for the bioclim API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// V1RouteRegistrars holds functions that mount domain handler routes
	// under the /v1 namespace. Populated by the application entry point
	// (main.go). This indirection avoids import cycles between core and
	// the handler packages.
	V1RouteRegistrars []func(chi.Router)

	// HealthProbes are the subsystem checks executed by the health endpoint.
	HealthProbes []HealthProbe

	// PageHandler, when set, serves the interactive map page at GET /.
	PageHandler http.Handler

	// MetricsHandler, when set, serves the metrics scrape endpoint at
	// GET /metrics (typically promhttp.Handler()).
	MetricsHandler http.Handler

	// Internal router
	router *chi.Mux

	// cleanup holds functions run by Shutdown in registration order.
	cleanup []func(ctx context.Context) error
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. It performs a "fail-fast" check on critical
// configuration.
//
// The caller is responsible for mounting routes (via MountRoutes or equivalent)
// after construction. This separation allows tests to customize route
// registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	s := &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}

	return s, nil
}

// Handler returns the http.Handler interface for the router.
// Used by http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
// This is used internally by route-mounting methods and tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown performs a graceful termination of server resources. The HTTP
// listener itself is stopped by the caller (http.Server.Shutdown); this hook
// releases anything the chassis holds on to, such as idle upstream
// connections registered via RegisterCleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	for _, fn := range s.cleanup {
		if err := fn(ctx); err != nil {
			s.Logger.Error("error during shutdown cleanup", "error", err)
			return fmt.Errorf("shutdown cleanup: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}

// RegisterCleanup adds a function to run during Shutdown. Typical uses are
// closing idle connections on shared HTTP clients or flushing buffered state.
func (s *Server) RegisterCleanup(fn func(ctx context.Context) error) {
	if fn != nil {
		s.cleanup = append(s.cleanup, fn)
	}
}
