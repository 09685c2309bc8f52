package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apperrors "github.com/khmelevskiy/daily-dish-hub/internal/errors"
	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
	"github.com/khmelevskiy/daily-dish-hub/internal/ratelimit"
	"github.com/khmelevskiy/daily-dish-hub/internal/server/handlers"
	servermw "github.com/khmelevskiy/daily-dish-hub/internal/server/middleware"
)

// Options carries the collaborators the server wires into its routes.
type Options struct {
	Host string
	Port int

	// RateLimit throttles requests by category before routing; nil disables
	// throttling (tests only, never production).
	RateLimit *ratelimit.Service

	// Public serves the read-only menu surface; nil leaves those routes
	// unregistered.
	Public *handlers.Public

	// Upstream forwards /admin/* and /auth/*; nil makes them answer 503.
	Upstream *UpstreamProxy
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	opts   Options
}

// New creates a new HTTP server instance
func New(opts Options) *Server {
	r := chi.NewRouter()

	// NOTE: chi's middleware.RealIP is deliberately absent. It rewrites
	// RemoteAddr from forwarded headers unconditionally, which would let any
	// client spoof its rate-limit identity. The rate limiter's identity
	// resolver owns all proxy-header trust decisions.

	// Our custom middleware in correct order (RequestID → Metrics → Logging → Recovery → RateLimit)
	r.Use(servermw.RequestID)      // 1. Request ID (early for correlation)
	r.Use(servermw.RequestMetrics) // 2. Metrics (measure everything)
	r.Use(servermw.ErrorHandler)   // 3. Error handling (after metrics)
	r.Use(servermw.Recovery)       // 4. Panic recovery (outermost)

	// Rate limiting runs before routing so the category rules see the raw
	// request path, and throttles even routes that would 404.
	if opts.RateLimit != nil {
		r.Use(opts.RateLimit.Middleware)
	}

	// Standardized error responses using centralized HandleError
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		// Use gofulmen error envelope for 404 - correlation ID extracted from request context
		err := apperrors.NewNotFoundError("The requested resource was not found")
		HandleError(w, req, err)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		// Use gofulmen error envelope for 405 - correlation ID extracted from request context
		err := apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource")
		HandleError(w, req, err)
	})

	s := &Server{
		router: r,
		opts:   opts,
	}

	// Ensure handlers use the centralized error responder
	handlers.SetHTTPErrorResponder(HandleError)

	// Register routes
	s.registerRoutes()

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	observability.ServerLogger.Info("Starting HTTP server",
		zap.String("host", s.opts.Host),
		zap.Int("port", s.opts.Port),
		zap.String("addr", addr))

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	observability.ServerLogger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the server port for testing
func (s *Server) Port() int {
	return s.opts.Port
}
