package cmd

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/khmelevskiy/daily-dish-hub/internal/config"
	"github.com/khmelevskiy/daily-dish-hub/internal/ratelimit"
)

// openRedis connects to the rate-limit Redis backend from configuration.
// Commands that inspect or reset live counters require the redis backend;
// the in-memory backend has no state outside the serve process.
func openRedis(ctx context.Context) (*redis.Client, *config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if cfg.RateLimit.Backend != ratelimit.BackendRedis {
		return nil, nil, fmt.Errorf("rate limit backend is %q; live counters exist only with the redis backend", cfg.RateLimit.Backend)
	}

	opts, err := redis.ParseURL(cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opts.Password == "" && cfg.RateLimit.RedisPassword != "" {
		opts.Password = cfg.RateLimit.RedisPassword
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, cfg, nil
}
