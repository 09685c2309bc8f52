package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/khmelevskiy/daily-dish-hub/internal/config"
	errwrap "github.com/khmelevskiy/daily-dish-hub/internal/errors"
	"github.com/khmelevskiy/daily-dish-hub/internal/menu"
	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
	"github.com/khmelevskiy/daily-dish-hub/internal/ratelimit"
	"github.com/redis/go-redis/v9"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long:  "Run diagnostic checks on the system and suggest fixes for common issues.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		identity := GetAppIdentity()
		bannerName := "doctor"
		if identity != nil && identity.BinaryName != "" {
			bannerName = identity.BinaryName + " doctor"
		}
		observability.CLILogger.Info("=== " + bannerName + " ===")
		observability.CLILogger.Info("")
		observability.CLILogger.Info("Running diagnostic checks...")
		observability.CLILogger.Info("")

		allChecks := true
		totalChecks := 10

		// Check 1: Go version
		goVersion := runtime.Version()
		if goVersion >= "go1.23" {
			observability.CLILogger.Info(fmt.Sprintf("[1/%d] Checking Go version... ✅ %s", totalChecks, goVersion), zap.String("go_version", goVersion))
		} else {
			observability.CLILogger.Warn(fmt.Sprintf("[1/%d] Checking Go version... ⚠️  %s (recommended: go1.23+)", totalChecks, goVersion), zap.String("go_version", goVersion))
			allChecks = false
		}

		// Check 2: Crucible access
		version := crucible.GetVersion()
		if version.Crucible != "" {
			observability.CLILogger.Info(fmt.Sprintf("[2/%d] Checking Crucible access... ✅ v%s", totalChecks, version.Crucible), zap.String("crucible_version", version.Crucible))
		} else {
			observability.CLILogger.Error(fmt.Sprintf("[2/%d] Checking Crucible access... ❌ Cannot access Crucible", totalChecks))
			ExitWithCode(observability.CLILogger, foundry.ExitExternalServiceUnavailable, "Cannot access Crucible", errwrap.NewExternalServiceError("Crucible service unavailable"))
			allChecks = false
		}

		// Check 3: Gofulmen access
		if version.Gofulmen != "" {
			observability.CLILogger.Info(fmt.Sprintf("[3/%d] Checking Gofulmen access... ✅ v%s", totalChecks, version.Gofulmen), zap.String("gofulmen_version", version.Gofulmen))
		} else {
			observability.CLILogger.Error(fmt.Sprintf("[3/%d] Checking Gofulmen access... ❌ Cannot access Gofulmen", totalChecks))
			allChecks = false
		}

		// Check 4: Config directory
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			observability.CLILogger.Error(fmt.Sprintf("[4/%d] Checking config directory... ❌ Cannot resolve config directory", totalChecks))
			ExitWithCode(observability.CLILogger, foundry.ExitFileNotFound, "Cannot resolve config directory", errwrap.NewInternalError("config directory not resolved"))
			allChecks = false
		} else {
			configDir := filepath.Dir(configPath)
			observability.CLILogger.Info(fmt.Sprintf("[4/%d] Checking config directory... ✅ %s", totalChecks, configDir), zap.String("config_dir", configDir))
		}

		// Check 5: Environment
		observability.CLILogger.Info(fmt.Sprintf("[5/%d] Checking environment... ✅ %s/%s", totalChecks, runtime.GOOS, runtime.GOARCH),
			zap.String("os", runtime.GOOS),
			zap.String("arch", runtime.GOARCH))

		// Check 6: Menu snapshot file
		cfg, cfgErr := config.Load(ctx)
		if cfgErr != nil {
			observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking menu snapshot... ⚠️  config not loaded", totalChecks), zap.Error(cfgErr))
			allChecks = false
		} else {
			menuPath, _ := filepath.Abs(cfg.Menu.File)
			if data, readErr := os.ReadFile(menuPath); readErr == nil {
				if snap, parseErr := menu.Parse(data); parseErr == nil {
					observability.CLILogger.Info(fmt.Sprintf("[6/%d] Checking menu snapshot... ✅ %s (%d items)", totalChecks, menuPath, len(snap.Items)),
						zap.String("menu_file", menuPath),
						zap.Int("items", len(snap.Items)))
				} else {
					observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking menu snapshot... ⚠️  %s (invalid: %v)", totalChecks, menuPath, parseErr),
						zap.String("menu_file", menuPath),
						zap.Error(parseErr))
					allChecks = false
				}
			} else if os.IsNotExist(readErr) {
				observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking menu snapshot... ⚠️  %s (not published yet)", totalChecks, menuPath),
					zap.String("menu_file", menuPath))
			} else {
				observability.CLILogger.Warn(fmt.Sprintf("[6/%d] Checking menu snapshot... ⚠️  %s (error: %v)", totalChecks, menuPath, readErr),
					zap.String("menu_file", menuPath),
					zap.Error(readErr))
				allChecks = false
			}
		}

		// Check 7: Images directory
		if cfgErr == nil {
			imagesDir := strings.TrimSpace(cfg.Menu.ImagesDir)
			if imagesDir == "" && cfg.Menu.File != "" {
				imagesDir = filepath.Join(filepath.Dir(cfg.Menu.File), "images")
			}
			absImages, _ := filepath.Abs(imagesDir)
			if info, statErr := os.Stat(absImages); statErr == nil && info.IsDir() {
				observability.CLILogger.Info(fmt.Sprintf("[7/%d] Checking images directory... ✅ %s", totalChecks, absImages),
					zap.String("images_dir", absImages))
			} else {
				observability.CLILogger.Warn(fmt.Sprintf("[7/%d] Checking images directory... ⚠️  %s (missing; image routes will 404)", totalChecks, absImages),
					zap.String("images_dir", absImages))
			}
		} else {
			observability.CLILogger.Warn(fmt.Sprintf("[7/%d] Checking images directory... ⚠️  skipped (config not loaded)", totalChecks))
		}

		// Check 8: Redis backend
		if cfgErr == nil {
			if cfg.RateLimit.Backend == ratelimit.BackendRedis {
				opts, parseErr := redis.ParseURL(cfg.RateLimit.RedisURL)
				if parseErr != nil {
					observability.CLILogger.Warn(fmt.Sprintf("[8/%d] Checking Redis... ⚠️  invalid URL %s", totalChecks, cfg.RateLimit.RedisURL), zap.Error(parseErr))
					allChecks = false
				} else {
					if opts.Password == "" && cfg.RateLimit.RedisPassword != "" {
						opts.Password = cfg.RateLimit.RedisPassword
					}
					client := redis.NewClient(opts)
					pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
					pingErr := client.Ping(pingCtx).Err()
					cancel()
					_ = client.Close()
					if pingErr != nil {
						observability.CLILogger.Warn(fmt.Sprintf("[8/%d] Checking Redis... ⚠️  %s unreachable (serve falls back to memory)", totalChecks, opts.Addr),
							zap.Error(pingErr))
					} else {
						observability.CLILogger.Info(fmt.Sprintf("[8/%d] Checking Redis... ✅ %s", totalChecks, opts.Addr),
							zap.String("redis_addr", opts.Addr))
					}
				}
			} else {
				observability.CLILogger.Info(fmt.Sprintf("[8/%d] Checking Redis... ✅ skipped (backend: %s)", totalChecks, cfg.RateLimit.Backend))
			}
		} else {
			observability.CLILogger.Warn(fmt.Sprintf("[8/%d] Checking Redis... ⚠️  skipped (config not loaded)", totalChecks))
		}

		// Check 9: Proxy trust coherence
		if cfgErr == nil {
			switch {
			case cfg.Proxy.EnableProxyHeaders && len(cfg.Proxy.TrustedProxies) == 0:
				observability.CLILogger.Warn(fmt.Sprintf("[9/%d] Checking proxy trust... ⚠️  proxy headers enabled without trusted proxies (headers will be ignored)", totalChecks))
			case !cfg.Proxy.EnableProxyHeaders && len(cfg.Proxy.TrustedProxies) > 0:
				observability.CLILogger.Info(fmt.Sprintf("[9/%d] Checking proxy trust... ✅ trusted proxies listed but headers disabled", totalChecks))
			case cfg.Proxy.EnableProxyHeaders:
				observability.CLILogger.Info(fmt.Sprintf("[9/%d] Checking proxy trust... ✅ %d trusted prox(ies)", totalChecks, len(cfg.Proxy.TrustedProxies)))
			default:
				observability.CLILogger.Info(fmt.Sprintf("[9/%d] Checking proxy trust... ✅ direct connections only", totalChecks))
			}
		} else {
			observability.CLILogger.Warn(fmt.Sprintf("[9/%d] Checking proxy trust... ⚠️  skipped (config not loaded)", totalChecks))
		}

		// Check 10: Admin upstream
		if cfgErr == nil {
			adminURL := strings.TrimSpace(cfg.Upstream.AdminURL)
			if adminURL == "" {
				observability.CLILogger.Info(fmt.Sprintf("[10/%d] Checking admin upstream... ✅ not configured (/admin and /auth answer 503)", totalChecks))
			} else if parsed, parseErr := url.Parse(adminURL); parseErr != nil || parsed.Scheme == "" || parsed.Host == "" {
				observability.CLILogger.Warn(fmt.Sprintf("[10/%d] Checking admin upstream... ⚠️  invalid URL %q", totalChecks, adminURL))
				allChecks = false
			} else {
				observability.CLILogger.Info(fmt.Sprintf("[10/%d] Checking admin upstream... ✅ %s", totalChecks, adminURL),
					zap.String("upstream_url", adminURL))
			}
		} else {
			observability.CLILogger.Warn(fmt.Sprintf("[10/%d] Checking admin upstream... ⚠️  skipped (config not loaded)", totalChecks))
		}

		observability.CLILogger.Info("")
		if allChecks {
			appName := "daily-dish-hub"
			if identity != nil && identity.BinaryName != "" {
				appName = identity.BinaryName
			}
			observability.CLILogger.Info(fmt.Sprintf("✅ All checks passed! Your %s installation is healthy.", appName))
		} else {
			observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
		}
		observability.CLILogger.Info("")
		observability.CLILogger.Info("=== End Diagnostics ===")
	},
}

var (
	doctorInitForce    bool
	doctorInitRedisKey string
	doctorResetConfig  bool
	doctorResetData    bool
	doctorResetAll     bool
)

var doctorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a default config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}

		if _, err := os.Stat(configPath); err == nil && !doctorInitForce {
			return fmt.Errorf("config file already exists: %s (use --force to overwrite)", configPath)
		}

		redisPassword := strings.TrimSpace(doctorInitRedisKey)
		if strings.EqualFold(redisPassword, "prompt") {
			value, err := promptForValue("Enter Redis password (leave blank to skip): ")
			if err != nil {
				return err
			}
			redisPassword = value
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}

		mode := os.FileMode(0644)
		if redisPassword != "" {
			mode = 0600
		}

		if err := os.WriteFile(configPath, []byte(buildInitConfig(redisPassword)), mode); err != nil {
			return fmt.Errorf("write config file: %w", err)
		}

		observability.CLILogger.Info("Config initialized", zap.String("path", configPath))
		return nil
	},
}

var doctorConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show configuration status and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		configExists := fileExists(configPath)

		dataDir := config.DefaultDataDir()
		cacheDir := config.DefaultCacheDir()

		observability.CLILogger.Info("Configuration:")
		observability.CLILogger.Info(fmt.Sprintf("  Config file:   %s (%s)", configPath, existenceStatus(configExists)))
		if dataDir != "" {
			observability.CLILogger.Info(fmt.Sprintf("  Data directory: %s (%s)", dataDir, existenceStatus(fileExists(dataDir))))
		} else {
			observability.CLILogger.Info("  Data directory: (not resolved)")
		}
		if cacheDir != "" {
			observability.CLILogger.Info(fmt.Sprintf("  Cache directory: %s (%s)", cacheDir, existenceStatus(fileExists(cacheDir))))
		} else {
			observability.CLILogger.Info("  Cache directory: (not resolved)")
		}

		cfg, err := config.Load(cmd.Context())
		if err != nil {
			observability.CLILogger.Warn("Config load failed", zap.Error(err))
			return nil
		}

		menuPath, _ := filepath.Abs(cfg.Menu.File)
		if info, statErr := os.Stat(menuPath); statErr == nil {
			observability.CLILogger.Info(fmt.Sprintf("  Menu file:     %s (%s, modified %s)", menuPath, formatFileSize(info.Size()), formatTimeAgo(info.ModTime())))
		} else if os.IsNotExist(statErr) {
			observability.CLILogger.Info(fmt.Sprintf("  Menu file:     %s (not published yet)", menuPath))
		} else {
			observability.CLILogger.Warn("Menu file status error", zap.String("menu_file", menuPath), zap.Error(statErr))
		}

		observability.CLILogger.Info("")
		observability.CLILogger.Info("Environment:")
		observability.CLILogger.Info("  DDH_REDIS_PASSWORD: " + envStatus("DDH_REDIS_PASSWORD"))

		observability.CLILogger.Info("")
		observability.CLILogger.Info("Effective Settings:")
		observability.CLILogger.Info(fmt.Sprintf("  rate_limit.backend: %s", cfg.RateLimit.Backend))
		observability.CLILogger.Info(fmt.Sprintf("  rate_limit.window_seconds: %d", cfg.RateLimit.WindowSeconds))
		observability.CLILogger.Info(fmt.Sprintf("  proxy.enable_proxy_headers: %t", cfg.Proxy.EnableProxyHeaders))
		adminURL := strings.TrimSpace(cfg.Upstream.AdminURL)
		if adminURL == "" {
			adminURL = "(not configured)"
		}
		observability.CLILogger.Info(fmt.Sprintf("  upstream.admin_url: %s", adminURL))

		return nil
	},
}

var doctorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset user configuration and/or data",
	RunE: func(cmd *cobra.Command, args []string) error {
		if doctorResetAll {
			doctorResetConfig = true
			doctorResetData = true
		}

		if !doctorResetConfig && !doctorResetData {
			return fmt.Errorf("specify --config, --data, or --all")
		}

		if doctorResetConfig {
			configPath := config.DefaultConfigPath()
			if configPath == "" {
				observability.CLILogger.Warn("Config path not resolved; skipping config reset")
			} else if err := os.Remove(configPath); err == nil {
				observability.CLILogger.Info("Config removed", zap.String("path", configPath))
			} else if os.IsNotExist(err) {
				observability.CLILogger.Info("Config already removed", zap.String("path", configPath))
			} else {
				return fmt.Errorf("remove config file: %w", err)
			}
		}

		if doctorResetData {
			dataDir := config.DefaultDataDir()
			if dataDir == "" {
				observability.CLILogger.Warn("Data directory not resolved; skipping data reset")
			} else if err := os.RemoveAll(dataDir); err == nil {
				observability.CLILogger.Info("Data directory removed", zap.String("path", dataDir))
			} else {
				return fmt.Errorf("remove data directory: %w", err)
			}
		}

		return nil
	},
}

var doctorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the current config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath := config.DefaultConfigPath()
		if configPath == "" {
			return fmt.Errorf("config path not resolved")
		}
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", configPath)
		}

		if _, err := config.Load(cmd.Context()); err != nil {
			return err
		}

		observability.CLILogger.Info("Config is valid", zap.String("path", configPath))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.AddCommand(doctorInitCmd)
	doctorCmd.AddCommand(doctorConfigCmd)
	doctorCmd.AddCommand(doctorResetCmd)
	doctorCmd.AddCommand(doctorValidateCmd)

	doctorInitCmd.Flags().BoolVar(&doctorInitForce, "force", false, "overwrite existing config file")
	doctorInitCmd.Flags().StringVar(&doctorInitRedisKey, "redis-password", "", "set redis password or use 'prompt' to enter")

	doctorResetCmd.Flags().BoolVar(&doctorResetConfig, "config", false, "remove user config file")
	doctorResetCmd.Flags().BoolVar(&doctorResetData, "data", false, "remove local data directory")
	doctorResetCmd.Flags().BoolVar(&doctorResetAll, "all", false, "remove config and data")
}

// formatFileSize returns a human-readable file size
func formatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}

// formatTimeAgo returns a human-readable relative time
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case d < 24*time.Hour:
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func buildInitConfig(redisPassword string) string {
	lines := []string{
		"# daily-dish-hub config - created by 'daily-dish-hub doctor init'",
		"rate_limit:",
		"  backend: redis",
		"  redis_url: redis://redis:6379/0",
	}

	if strings.TrimSpace(redisPassword) != "" {
		lines = append(lines, fmt.Sprintf("  redis_password: %q", redisPassword))
	} else {
		lines = append(lines, "  # redis_password: \"\"  # Set via DDH_REDIS_PASSWORD or uncomment")
	}

	lines = append(lines,
		"proxy:",
		"  enable_proxy_headers: false",
		"  trusted_proxies: []",
		"site:",
		"  name: Canteen Menu",
		"  description: Fresh and tasty dishes every day",
		"upstream:",
		"  admin_url: \"\"",
	)

	return strings.Join(lines, "\n") + "\n"
}

func promptForValue(prompt string) (string, error) {
	if _, err := fmt.Fprint(os.Stdout, prompt); err != nil {
		return "", err
	}
	reader := bufio.NewReader(os.Stdin)
	value, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func existenceStatus(exists bool) string {
	if exists {
		return "exists"
	}
	return "missing"
}

func envStatus(name string) string {
	if strings.TrimSpace(os.Getenv(name)) != "" {
		return "(set)"
	}
	return "(not set)"
}
