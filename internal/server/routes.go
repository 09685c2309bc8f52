package server

import (
	"context"
	"net/http"
	"os"

	"github.com/fulmenhq/gofulmen/signals"

	"github.com/khmelevskiy/daily-dish-hub/internal/appid"
	"go.uber.org/zap"

	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
	"github.com/khmelevskiy/daily-dish-hub/internal/server/handlers"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes() {
	// Standard health endpoints per Workhorse §9
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	// Version endpoint
	s.router.Get("/version", handlers.VersionHandler)

	// Metrics endpoint (in server package to access HandleError)
	s.router.Get("/metrics", MetricsHandler)

	// Public menu surface
	if s.opts.Public != nil {
		s.router.Get("/public/daily-menu", s.opts.Public.DailyMenuHandler)
		s.router.Get("/public/menu-date", s.opts.Public.MenuDateHandler)
		s.router.Get("/public/settings", s.opts.Public.SettingsHandler)
		s.router.Get("/images/{imageID}", s.opts.Public.ImageHandler)
	}

	// Admin signal endpoint (optional, requires DDH_ADMIN_TOKEN); registered
	// before the catch-all admin proxy so the literal path wins.
	s.registerAdminEndpoint()

	// Admin/auth traffic forwards to the admin backend. The routes are
	// registered even without an upstream so the rate limiter keeps
	// classifying and throttling them.
	upstream := http.HandlerFunc(UpstreamUnavailableHandler)
	if s.opts.Upstream != nil {
		upstream = s.opts.Upstream.ServeHTTP
	}
	s.router.Handle("/admin/*", upstream)
	s.router.Handle("/auth/*", upstream)
}

// registerAdminEndpoint optionally registers the admin signal endpoint
func (s *Server) registerAdminEndpoint() {
	// Get admin token from environment (identity-aware)
	ctx := context.Background()
	identity, _ := appid.Get(ctx)
	envPrefix := "WORKHORSE_"
	if identity != nil && identity.EnvPrefix != "" {
		envPrefix = identity.EnvPrefix
	}

	adminToken := os.Getenv(envPrefix + "ADMIN_TOKEN")
	logger := observability.ServerLogger

	if adminToken == "" {
		if logger != nil {
			logger.Debug("Admin signal endpoint disabled (no " + envPrefix + "ADMIN_TOKEN set)")
		}
		return
	}

	// Create HTTP signal handler with bearer token auth and rate limiting
	handler := signals.NewHTTPHandler(signals.HTTPConfig{
		TokenAuth: adminToken,
		RateLimit: 10,  // 10 requests per minute
		RateBurst: 5,   // burst size
		Manager:   nil, // use default global manager
	})

	// Register admin endpoint
	s.router.Post("/admin/signal", handler.ServeHTTP)

	if logger != nil {
		logger.Info("Admin signal endpoint enabled",
			zap.String("path", "/admin/signal"),
			zap.String("auth", "bearer token"),
			zap.String("rate_limit", "10/min, burst 5"))
		logger.Warn("Admin endpoint enabled - ensure this server is not exposed to public internet")
	}
}
