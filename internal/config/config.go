package config

import (
	"time"
)

// Config represents the complete application configuration
// following the Fulmen Forge Workhorse Standard three-layer pattern:
// Layer 1: Crucible defaults (config/daily-dish-hub/v0/daily-dish-hub-defaults.yaml)
// Layer 2: User overrides (~/.config/daily-dish-hub/daily-dish-hub/config.yaml)
// Layer 3: Environment variables and runtime overrides
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Proxy     ProxyConfig     `mapstructure:"proxy"`
	Menu      MenuConfig      `mapstructure:"menu"`
	Site      SiteConfig      `mapstructure:"site"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
	Debug     DebugConfig     `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RateLimitConfig contains the sliding-window rate limiter configuration.
// Budgets are requests per window; the window is shared by every category.
type RateLimitConfig struct {
	// Backend selects the counting store: "memory" or "redis".
	Backend string `mapstructure:"backend"`

	WindowSeconds  int `mapstructure:"window_seconds"`
	PublicRequests int `mapstructure:"public_requests"`
	AdminRequests  int `mapstructure:"admin_requests"`
	AuthAttempts   int `mapstructure:"auth_attempts"`
	ImageRequests  int `mapstructure:"image_requests"`

	// RedisURL and RedisPassword are only consulted when Backend is "redis".
	// A password set here is injected only when the URL carries none.
	RedisURL      string `mapstructure:"redis_url"`
	RedisPassword string `mapstructure:"redis_password"`

	// RetryBackoff is how long the limiter serves from the in-memory
	// fallback after a Redis error before retrying the remote backend.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
}

// ProxyConfig controls client-IP resolution behind reverse proxies.
// EnableProxyHeaders without a trusted proxy list is ignored (with a
// one-time warning): forwarded headers are spoofable by any client.
type ProxyConfig struct {
	EnableProxyHeaders bool     `mapstructure:"enable_proxy_headers"`
	TrustedProxies     []string `mapstructure:"trusted_proxies"`
}

// MenuConfig locates the published menu snapshot and its image files.
type MenuConfig struct {
	File      string `mapstructure:"file"`
	ImagesDir string `mapstructure:"images_dir"`
}

// SiteConfig contains the public site metadata served by /public/settings.
type SiteConfig struct {
	Name           string `mapstructure:"name"`
	Description    string `mapstructure:"description"`
	CurrencyCode   string `mapstructure:"currency_code"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	CurrencyLocale string `mapstructure:"currency_locale"`
}

// UpstreamConfig points /admin/* and /auth/* at the admin backend that owns
// CRUD and token issuance. Empty AdminURL means those routes answer 503.
type UpstreamConfig struct {
	AdminURL string        `mapstructure:"admin_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LoggingConfig contains logging configuration
// Supports progressive logging profiles per Fulmen Forge Workhorse Standard:
// - SIMPLE: Console output only, minimal configuration (CLI tools)
// - STRUCTURED: Structured sinks, correlation IDs (API services)
// - ENTERPRISE: Multiple sinks, middleware, throttling, policy enforcement (production)
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED, ENTERPRISE
	// See: gofulmen/docs/crucible-go/standards/observability/logging.md
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	// Metrics are also available at the main HTTP port in JSON format
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug and profiling configuration
type DebugConfig struct {
	// Enabled controls whether debug mode is active
	Enabled bool `mapstructure:"enabled"`

	// PprofEnabled controls whether pprof endpoints are exposed
	// WARNING: Only enable in development/staging environments
	PprofEnabled bool `mapstructure:"pprof_enabled"`
}
