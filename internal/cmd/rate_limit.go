package cmd

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/khmelevskiy/daily-dish-hub/internal/ratelimit"
)

var rateLimitCmd = &cobra.Command{
	Use:   "rate-limit",
	Short: "Inspect and reset live rate limit counters",
	Long: `Inspect and reset the sliding-window rate limit counters.

These commands talk to the Redis backend directly. With the in-memory
backend there is no state outside the serve process, so there is nothing
to list or reset.`,
}

// rateLimitEntry is one live counter keyed by category and client identity.
type rateLimitEntry struct {
	Key        string `json:"key"`
	Category   string `json:"category"`
	Identity   string `json:"identity"`
	Count      int64  `json:"count"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// scanRateLimitKeys iterates the rate limit keyspace, optionally narrowed to
// one category and an identity substring.
func scanRateLimitKeys(ctx context.Context, client *redis.Client, category, identity string) ([]string, error) {
	pattern := "rl:*"
	if category != "" {
		pattern = ratelimit.RedisKeyPrefix(ratelimit.Category(category)) + ":*"
	}

	var keys []string
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if identity != "" && !strings.Contains(keyIdentity(key), identity) {
			continue
		}
		keys = append(keys, key)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// keyCategory extracts the category segment from a key like rl:public:1.2.3.4.
func keyCategory(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// keyIdentity extracts the client identity segment, which may itself contain
// colons (IPv6 addresses).
func keyIdentity(key string) string {
	parts := strings.SplitN(key, ":", 3)
	if len(parts) < 3 {
		return ""
	}
	return parts[2]
}

func init() {
	rateLimitCmd.AddCommand(rateLimitListCmd)
	rateLimitCmd.AddCommand(rateLimitResetCmd)
	rootCmd.AddCommand(rateLimitCmd)
}
