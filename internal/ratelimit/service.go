package ratelimit

import (
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
)

// Settings holds the rate-limit configuration consumed once at startup.
type Settings struct {
	Backend        string
	WindowSeconds  int
	PublicRequests int
	AdminRequests  int
	AuthAttempts   int
	ImageRequests  int
	RedisURL       string
	RedisPassword  string
	RetryBackoff   time.Duration
}

// Service owns one limiter per category plus the identity resolver and the
// ordered classification rules. Build it once at startup and share it.
type Service struct {
	rules    []Rule
	resolver *IdentityResolver
	client   *redis.Client
}

// NewService builds the per-category limiters from settings. Configuration
// problems (unknown backend name, unparseable Redis URL) degrade to the
// in-memory backend with a single warning instead of failing startup.
func NewService(settings Settings, resolver *IdentityResolver) *Service {
	window := time.Duration(settings.WindowSeconds) * time.Second

	var client *redis.Client
	switch settings.Backend {
	case BackendRedis:
		opts, err := redis.ParseURL(settings.RedisURL)
		if err != nil {
			if observability.ServerLogger != nil {
				observability.ServerLogger.Warn("Rate limiter: Redis backend requested but unavailable, falling back to memory",
					zap.Error(err))
			}
		} else {
			if opts.Password == "" && settings.RedisPassword != "" {
				opts.Password = settings.RedisPassword
			}
			client = redis.NewClient(opts)
			if observability.ServerLogger != nil {
				observability.ServerLogger.Info("Rate limiter: using Redis backend")
			}
		}
	case BackendMemory:
	default:
		if observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Unknown rate limit backend, using in-memory",
				zap.String("backend", settings.Backend))
		}
	}

	build := func(category Category) Limiter {
		if client == nil {
			return NewLocalLimiter()
		}
		return &FailoverLimiter{
			Category: category,
			Remote:   &RedisLimiter{Client: client, Prefix: RedisKeyPrefix(category)},
			Fallback: NewLocalLimiter(),
			Backoff:  settings.RetryBackoff,
		}
	}

	publicLimiter := build(CategoryPublic)
	adminLimiter := build(CategoryAdmin)
	authLimiter := build(CategoryAuth)
	imagesLimiter := build(CategoryImages)

	rules := []Rule{
		{Prefix: "/admin/", Descriptor: Descriptor{
			Category: CategoryAdmin, Limiter: adminLimiter,
			Limit: settings.AdminRequests, Window: window, DenyMessage: adminDenyMessage,
		}},
		{Prefix: "/auth/login", Descriptor: Descriptor{
			Category: CategoryAuth, Limiter: authLimiter,
			Limit: settings.AuthAttempts, Window: window, DenyMessage: loginDenyMessage,
		}},
		{Prefix: "/auth/", Descriptor: Descriptor{
			Category: CategoryAuth, Limiter: authLimiter,
			Limit: settings.AuthAttempts, Window: window, DenyMessage: authDenyMessage,
		}},
		{Prefix: "/public/", Descriptor: Descriptor{
			Category: CategoryPublic, Limiter: publicLimiter,
			Limit: settings.PublicRequests, Window: window, DenyMessage: publicDenyMessage,
		}},
		{Method: http.MethodGet, Prefix: "/images/", Descriptor: Descriptor{
			Category: CategoryImages, Limiter: imagesLimiter,
			Limit: settings.ImageRequests, Window: window, DenyMessage: imagesDenyMessage,
		}},
	}

	return &Service{rules: rules, resolver: resolver, client: client}
}

// Lookup classifies a request against the rule table.
func (s *Service) Lookup(method, path string) (Descriptor, bool) {
	return Match(s.rules, method, path)
}

// RedisClient returns the shared client, or nil on the in-memory backend.
func (s *Service) RedisClient() *redis.Client {
	return s.client
}

// Close releases the Redis connection pool if one was opened.
func (s *Service) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
