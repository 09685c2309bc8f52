package ratelimit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/khmelevskiy/daily-dish-hub/internal/metrics"
	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
)

const defaultRetryBackoff = 30 * time.Second

// FailoverLimiter routes calls to a remote limiter and falls back to a local
// one while the remote backend is unavailable. A failed remote call starts a
// cooldown during which the remote is not retried; the first failure of an
// episode is logged, repeats stay silent until a remote call succeeds again.
type FailoverLimiter struct {
	Category Category
	Remote   Limiter
	Fallback Limiter
	Backoff  time.Duration
	Clock    func() time.Time

	mu         sync.Mutex
	retryUntil time.Time
	warned     bool
}

// Allow never returns an error: remote failures are absorbed by delegating
// to the fallback, so the category stays throttled best-effort.
func (f *FailoverLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if f.Remote == nil {
		return f.Fallback.Allow(ctx, key, limit, window)
	}

	now := f.now()

	f.mu.Lock()
	coolingDown := now.Before(f.retryUntil)
	f.mu.Unlock()

	if coolingDown {
		metrics.RecordRateLimitFallback(string(f.Category))
		return f.Fallback.Allow(ctx, key, limit, window)
	}

	decision, err := f.Remote.Allow(ctx, key, limit, window)
	if err == nil {
		f.mu.Lock()
		f.retryUntil = time.Time{}
		f.warned = false
		f.mu.Unlock()
		return decision, nil
	}

	backoff := f.Backoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}

	f.mu.Lock()
	f.retryUntil = now.Add(backoff)
	firstFailure := !f.warned
	f.warned = true
	f.mu.Unlock()

	if firstFailure && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Rate limiter: Redis backend unavailable, falling back to in-memory",
			zap.Error(err),
			zap.Duration("retry_backoff", backoff))
	}

	metrics.RecordRateLimitBackendError(string(f.Category))
	metrics.RecordRateLimitFallback(string(f.Category))

	return f.Fallback.Allow(ctx, key, limit, window)
}

func (f *FailoverLimiter) now() time.Time {
	if f.Clock != nil {
		return f.Clock()
	}
	return time.Now()
}
