package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/khmelevskiy/daily-dish-hub/internal/config"
	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
)

var envInfoCmd = &cobra.Command{
	Use:   "envinfo",
	Short: "Display environment information",
	Long:  "Display comprehensive environment, configuration, and version information.",
	Run: func(cmd *cobra.Command, args []string) {
		version := crucible.GetVersion()

		observability.CLILogger.Info("=== Daily Dish Hub Environment Information ===")
		observability.CLILogger.Info("")

		// Application Info
		identity := GetAppIdentity()
		observability.CLILogger.Info("Application:")
		observability.CLILogger.Info("  Name:       " + identity.BinaryName)
		observability.CLILogger.Info("  Version:    " + versionInfo.Version)
		observability.CLILogger.Info("  Commit:     " + versionInfo.Commit)
		observability.CLILogger.Info("  Built:      " + versionInfo.BuildDate)
		observability.CLILogger.Info("")

		// SSOT Info
		observability.CLILogger.Info("SSOT:")
		observability.CLILogger.Info("  Gofulmen:   "+version.Gofulmen, zap.String("gofulmen_version", version.Gofulmen))
		observability.CLILogger.Info("  Crucible:   "+version.Crucible, zap.String("crucible_version", version.Crucible))
		observability.CLILogger.Info("")

		// Runtime Info
		observability.CLILogger.Info("Runtime:")
		observability.CLILogger.Info("  Go Version: "+runtime.Version(), zap.String("go_version", runtime.Version()))
		observability.CLILogger.Info("  GOOS:       "+runtime.GOOS, zap.String("goos", runtime.GOOS))
		observability.CLILogger.Info("  GOARCH:     "+runtime.GOARCH, zap.String("goarch", runtime.GOARCH))
		observability.CLILogger.Info(fmt.Sprintf("  NumCPU:     %d", runtime.NumCPU()), zap.Int("num_cpu", runtime.NumCPU()))
		observability.CLILogger.Info("")

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return
		}

		// Configuration
		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info("  Server Host:    "+cfg.Server.Host, zap.String("host", cfg.Server.Host))
		observability.CLILogger.Info(fmt.Sprintf("  Server Port:    %d", cfg.Server.Port), zap.Int("port", cfg.Server.Port))
		observability.CLILogger.Info("  Log Level:      "+cfg.Logging.Level, zap.String("log_level", cfg.Logging.Level))
		observability.CLILogger.Info("  Log Profile:    "+cfg.Logging.Profile, zap.String("log_profile", cfg.Logging.Profile))
		observability.CLILogger.Info(fmt.Sprintf("  Metrics Port:   %d", cfg.Metrics.Port), zap.Int("metrics_port", cfg.Metrics.Port))
		observability.CLILogger.Info("  Config File:    "+config.DefaultConfigPath(), zap.String("config_file", config.DefaultConfigPath()))
		observability.CLILogger.Info("")

		// Rate Limit Configuration
		observability.CLILogger.Info("Rate Limit:")
		observability.CLILogger.Info("  Backend:        "+cfg.RateLimit.Backend, zap.String("rate_limit_backend", cfg.RateLimit.Backend))
		observability.CLILogger.Info(fmt.Sprintf("  Window:         %ds", cfg.RateLimit.WindowSeconds))
		observability.CLILogger.Info(fmt.Sprintf("  Public Budget:  %d", cfg.RateLimit.PublicRequests))
		observability.CLILogger.Info(fmt.Sprintf("  Admin Budget:   %d", cfg.RateLimit.AdminRequests))
		observability.CLILogger.Info(fmt.Sprintf("  Auth Budget:    %d", cfg.RateLimit.AuthAttempts))
		observability.CLILogger.Info(fmt.Sprintf("  Images Budget:  %d", cfg.RateLimit.ImageRequests))
		if cfg.RateLimit.Backend == "redis" {
			observability.CLILogger.Info("  Redis URL:      " + cfg.RateLimit.RedisURL)
			if strings.TrimSpace(cfg.RateLimit.RedisPassword) != "" {
				observability.CLILogger.Info("  Redis Password: (set)")
			} else {
				observability.CLILogger.Info("  Redis Password: (not set)")
			}
			observability.CLILogger.Info("  Retry Backoff:  " + cfg.RateLimit.RetryBackoff.String())
		}
		observability.CLILogger.Info("")

		// Proxy Trust Configuration
		observability.CLILogger.Info("Proxy Trust:")
		observability.CLILogger.Info(fmt.Sprintf("  Headers Enabled: %t", cfg.Proxy.EnableProxyHeaders), zap.Bool("proxy_headers", cfg.Proxy.EnableProxyHeaders))
		if len(cfg.Proxy.TrustedProxies) > 0 {
			observability.CLILogger.Info(fmt.Sprintf("  Trusted Proxies: %v", cfg.Proxy.TrustedProxies))
		} else {
			observability.CLILogger.Info("  Trusted Proxies: (none)")
		}
		observability.CLILogger.Info("")

		// Menu Configuration
		observability.CLILogger.Info("Menu:")
		observability.CLILogger.Info("  File:           " + cfg.Menu.File)
		if strings.TrimSpace(cfg.Menu.ImagesDir) != "" {
			observability.CLILogger.Info("  Images Dir:     " + cfg.Menu.ImagesDir)
		} else {
			observability.CLILogger.Info("  Images Dir:     (next to menu file)")
		}
		observability.CLILogger.Info("")

		// Site Configuration
		observability.CLILogger.Info("Site:")
		observability.CLILogger.Info("  Name:           " + cfg.Site.Name)
		observability.CLILogger.Info("  Description:    " + cfg.Site.Description)
		observability.CLILogger.Info(fmt.Sprintf("  Currency:       %s (%s, %s)", cfg.Site.CurrencyCode, cfg.Site.CurrencySymbol, cfg.Site.CurrencyLocale))
		observability.CLILogger.Info("")

		// Upstream Configuration
		observability.CLILogger.Info("Upstream:")
		if strings.TrimSpace(cfg.Upstream.AdminURL) != "" {
			observability.CLILogger.Info("  Admin URL:      " + cfg.Upstream.AdminURL)
			observability.CLILogger.Info("  Timeout:        " + cfg.Upstream.Timeout.String())
		} else {
			observability.CLILogger.Info("  Admin URL:      (not configured; /admin and /auth answer 503)")
		}
		observability.CLILogger.Info("")

		observability.CLILogger.Info("=== End Environment Information ===")
	},
}

func init() {
	rootCmd.AddCommand(envInfoCmd)
}
