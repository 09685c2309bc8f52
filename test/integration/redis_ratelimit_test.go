package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/khmelevskiy/daily-dish-hub/internal/ratelimit"
)

// redisClientOrSkip connects to the Redis instance named by DDH_TEST_REDIS_URL
// and skips the test when none is configured or reachable.
func redisClientOrSkip(t *testing.T) *redis.Client {
	t.Helper()

	rawURL := os.Getenv("DDH_TEST_REDIS_URL")
	if rawURL == "" {
		t.Skip("DDH_TEST_REDIS_URL not set; skipping Redis integration test")
	}

	opts, err := redis.ParseURL(rawURL)
	require.NoError(t, err)

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("redis at %s unreachable: %v", opts.Addr, err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisLimiterSlidingWindow_Integration(t *testing.T) {
	client := redisClientOrSkip(t)
	ctx := context.Background()

	prefix := "rl:integration"
	key := "198.51.100.9"
	t.Cleanup(func() { client.Del(ctx, prefix+":"+key) })

	limiter := &ratelimit.RedisLimiter{Client: client, Prefix: prefix}

	const limit = 5
	window := 30 * time.Second

	for i := 0; i < limit; i++ {
		decision, err := limiter.Allow(ctx, key, limit, window)
		require.NoError(t, err)
		require.True(t, decision.Allowed, "request %d should be allowed", i+1)
		require.Equal(t, limit-i-1, decision.Remaining)
	}

	decision, err := limiter.Allow(ctx, key, limit, window)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, 0, decision.Remaining)
	require.Greater(t, decision.Reset, 0)

	// The sorted set carries a TTL so abandoned keys age out on their own.
	ttl, err := client.TTL(ctx, prefix+":"+key).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, window)
}

func TestRedisLimiterIsolatesKeys_Integration(t *testing.T) {
	client := redisClientOrSkip(t)
	ctx := context.Background()

	prefix := "rl:integration"
	t.Cleanup(func() {
		client.Del(ctx, prefix+":client-a", prefix+":client-b")
	})

	limiter := &ratelimit.RedisLimiter{Client: client, Prefix: prefix}
	window := 30 * time.Second

	decision, err := limiter.Allow(ctx, "client-a", 1, window)
	require.NoError(t, err)
	require.True(t, decision.Allowed)

	decision, err = limiter.Allow(ctx, "client-a", 1, window)
	require.NoError(t, err)
	require.False(t, decision.Allowed)

	// A different identity still has its full budget.
	decision, err = limiter.Allow(ctx, "client-b", 1, window)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}
