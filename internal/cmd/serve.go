package cmd

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/khmelevskiy/daily-dish-hub/internal/config"
	errwrap "github.com/khmelevskiy/daily-dish-hub/internal/errors"
	"github.com/khmelevskiy/daily-dish-hub/internal/menu"
	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
	"github.com/khmelevskiy/daily-dish-hub/internal/ratelimit"
	"github.com/khmelevskiy/daily-dish-hub/internal/server"
	"github.com/khmelevskiy/daily-dish-hub/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// signalHealthChecker implements HealthChecker for signal system
type signalHealthChecker struct{}

func (s signalHealthChecker) CheckHealth(ctx context.Context) error {
	// Check if signal system is responsive
	// This is a basic check - in production you might want more sophisticated checks
	return nil // Signal handlers are registered and ready
}

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

// identityHealthChecker validates app identity metadata
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (i identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case i.binaryName == "":
		return errwrap.NewConfigInvalidError("app identity missing binary name")
	case i.envPrefix == "":
		return errwrap.NewConfigInvalidError("app identity missing env prefix")
	case i.configName == "":
		return errwrap.NewConfigInvalidError("app identity missing config name")
	}
	return nil
}

// menuHealthChecker reports whether a menu snapshot is currently published.
// The server is still up without one (public endpoints answer 503), so a
// missing snapshot degrades readiness without failing liveness.
type menuHealthChecker struct {
	store *menu.Store
}

func (m menuHealthChecker) CheckHealth(ctx context.Context) error {
	if m.store == nil {
		return errwrap.NewConfigInvalidError("menu store not configured")
	}
	if _, ok := m.store.Snapshot(); !ok {
		return errwrap.NewServiceUnavailableError("no menu snapshot loaded")
	}
	return nil
}

// redisHealthChecker pings the shared rate-limit Redis client.
type redisHealthChecker struct {
	client *redis.Client
}

func (r redisHealthChecker) CheckHealth(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := r.client.Ping(pingCtx).Err(); err != nil {
		return errwrap.WrapExternalService(ctx, err, "redis ping failed")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server with graceful shutdown support.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload config file and menu snapshot

The server will cleanly shut down the HTTP server and flush logs on shutdown.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get app identity for telemetry namespace
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		// Initialize server logger with namespace
		logLevel := viper.GetString("logging.level")
		observability.InitServerLogger(identity.BinaryName, logLevel, namespace)

		metricsPort := viper.GetInt("metrics.port")
		if metricsPort == 0 {
			metricsPort = 9090
		}

		// Initialize metrics with namespace
		if err := observability.InitMetrics(identity.BinaryName, metricsPort, namespace); err != nil {
			observability.ServerLogger.Error("Failed to initialize metrics",
				zap.Error(err))
			return errwrap.WrapInternal(cmd.Context(), err, "metrics initialization failed")
		}

		// Load the layered configuration (defaults, user file, environment)
		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.ServerLogger.Error("Failed to load configuration", zap.Error(err))
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "configuration load failed")
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("namespace", namespace),
			zap.String("version", versionInfo.Version),
			zap.String("host", serverHost),
			zap.Int("port", serverPort),
			zap.Int("metrics_port", metricsPort),
			zap.String("rate_limit_backend", cfg.RateLimit.Backend))

		// Rate limiter: identity resolution + per-category sliding windows
		resolver := ratelimit.NewIdentityResolver(cfg.Proxy.EnableProxyHeaders, cfg.Proxy.TrustedProxies)
		rl := ratelimit.NewService(ratelimit.Settings{
			Backend:        cfg.RateLimit.Backend,
			WindowSeconds:  cfg.RateLimit.WindowSeconds,
			PublicRequests: cfg.RateLimit.PublicRequests,
			AdminRequests:  cfg.RateLimit.AdminRequests,
			AuthAttempts:   cfg.RateLimit.AuthAttempts,
			ImageRequests:  cfg.RateLimit.ImageRequests,
			RedisURL:       cfg.RateLimit.RedisURL,
			RedisPassword:  cfg.RateLimit.RedisPassword,
			RetryBackoff:   cfg.RateLimit.RetryBackoff,
		}, resolver)

		// Menu snapshot store. A missing or invalid file is not fatal at
		// startup: public endpoints answer 503 until a reload succeeds.
		menuStore := menu.NewStore(cfg.Menu.File)
		if err := menuStore.Reload(); err != nil {
			observability.ServerLogger.Warn("Menu snapshot not loaded, public endpoints will answer 503",
				zap.String("file", menuStore.Path()),
				zap.Error(err))
		} else {
			observability.ServerLogger.Info("Menu snapshot loaded",
				zap.String("file", menuStore.Path()))
		}

		imagesDir := strings.TrimSpace(cfg.Menu.ImagesDir)
		if imagesDir == "" && cfg.Menu.File != "" {
			imagesDir = filepath.Join(filepath.Dir(cfg.Menu.File), "images")
		}

		publicHandlers := &handlers.Public{
			Menu: menuStore,
			Site: handlers.SiteSettings{
				SiteName:        cfg.Site.Name,
				SiteDescription: cfg.Site.Description,
				CurrencyCode:    cfg.Site.CurrencyCode,
				CurrencySymbol:  cfg.Site.CurrencySymbol,
				CurrencyLocale:  cfg.Site.CurrencyLocale,
			},
			ImagesDir: imagesDir,
		}

		// Admin/auth upstream proxy (nil when no upstream is configured)
		upstream, err := server.NewUpstreamProxy(cfg.Upstream.AdminURL, cfg.Upstream.Timeout)
		if err != nil {
			observability.ServerLogger.Error("Invalid upstream admin URL",
				zap.String("url", cfg.Upstream.AdminURL),
				zap.Error(err))
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "upstream configuration invalid")
		}
		if upstream == nil {
			observability.ServerLogger.Info("No admin upstream configured, /admin and /auth routes answer 503")
		}

		// Initialize health manager
		handlers.InitHealthManager(versionInfo.Version)
		hm := handlers.GetHealthManager()
		hm.RegisterChecker("signal_handlers", signalHealthChecker{})
		hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		hm.RegisterChecker("app_identity", identityHealthChecker{
			binaryName: identity.BinaryName,
			envPrefix:  identity.EnvPrefix,
			configName: identity.ConfigName,
		})
		hm.RegisterChecker("menu_snapshot", menuHealthChecker{store: menuStore})
		if client := rl.RedisClient(); client != nil {
			hm.RegisterChecker("redis", redisHealthChecker{client: client})
		}

		// Create server
		srv := server.New(server.Options{
			Host:      serverHost,
			Port:      serverPort,
			RateLimit: rl,
			Public:    publicHandlers,
			Upstream:  upstream,
		})

		// Set app identity for handlers
		handlers.SetAppIdentity(identity)

		// Get shutdown timeout from config
		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// Register graceful shutdown handlers (LIFO order - last registered, first executed)
		// Handler 1: Flush logger (executed last)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Flushing logger...")
			if err := observability.ServerLogger.Sync(); err != nil {
				// Sync errors are often benign (stdout/stderr already closed)
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)",
					zap.Error(err))
			}
			return nil
		})

		// Handler 2: Close the rate limiter's Redis pool
		signals.OnShutdown(func(ctx context.Context) error {
			if err := rl.Close(); err != nil {
				observability.ServerLogger.Warn("Rate limiter close returned error",
					zap.Error(err))
			}
			return nil
		})

		// Handler 3: Shutdown HTTP server (executed first)
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}

			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		// Register config + menu reload handler (SIGHUP)
		signals.OnReload(func(ctx context.Context) error {
			observability.ServerLogger.Info("Received SIGHUP: reloading config and menu snapshot")

			if err := viper.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); ok {
					observability.ServerLogger.Info("No config file found - using defaults and environment variables")
				} else {
					observability.ServerLogger.Error("Failed to reload config file",
						zap.String("file", viper.ConfigFileUsed()),
						zap.Error(err))
					return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
				}
			}

			// Menu snapshot reload keeps the previous snapshot on failure.
			if err := menuStore.Reload(); err != nil {
				observability.ServerLogger.Warn("Menu snapshot reload failed, keeping previous snapshot",
					zap.String("file", menuStore.Path()),
					zap.Error(err))
			} else {
				observability.ServerLogger.Info("Menu snapshot reloaded",
					zap.String("file", menuStore.Path()))
			}

			// Rate limit budgets and backend selection still require a restart.
			return nil
		})

		// Enable double-tap force quit (Ctrl+C within 2 seconds)
		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit",
				zap.Error(err))
		}

		// Start server in background goroutine
		errChan := make(chan error, 1)
		go func() {
			observability.ServerLogger.Info("Starting HTTP server...",
				zap.String("host", serverHost),
				zap.Int("port", serverPort))
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		// Start signal listener in background
		go func() {
			if err := signals.Listen(cmd.Context()); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		// Wait for error or shutdown completion
		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(cmd.Context(), err, "server error")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
