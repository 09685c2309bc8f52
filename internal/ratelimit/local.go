package ratelimit

import (
	"context"
	"sync"
	"time"
)

// LocalLimiter is an in-process sliding-window limiter keyed by client
// identity. Each key holds the timestamps of its recent requests, oldest
// first; stale entries are evicted lazily on access and a full sweep runs at
// most once per max(60s, window) to bound memory for abandoned clients.
// All bucket access is serialized by a single mutex.
type LocalLimiter struct {
	Clock func() time.Time

	mu      sync.Mutex
	buckets map[string][]time.Time
	gcNext  time.Time
}

// NewLocalLimiter returns an empty in-memory limiter.
func NewLocalLimiter() *LocalLimiter {
	return &LocalLimiter{buckets: make(map[string][]time.Time)}
}

// Allow records a request for key if it fits within limit per window and
// reports the remaining quota. A limit of zero denies every request.
func (l *LocalLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if !now.Before(l.gcNext) {
		l.sweep(now, window)
	}

	bucket := evictStale(l.buckets[key], now, window)

	reset := 0
	if len(bucket) > 0 {
		reset = secondsLeft(now, bucket[0], window)
	}

	if len(bucket) >= limit {
		if len(bucket) == 0 {
			delete(l.buckets, key)
		} else {
			l.buckets[key] = bucket
		}
		return Decision{Allowed: false, Remaining: 0, Reset: reset}, nil
	}

	bucket = append(bucket, now)
	l.buckets[key] = bucket

	return Decision{
		Allowed:   true,
		Remaining: limit - len(bucket),
		Reset:     secondsLeft(now, bucket[0], window),
	}, nil
}

// sweep drops stale timestamps from every bucket and removes buckets that
// end up empty. Caller holds l.mu.
func (l *LocalLimiter) sweep(now time.Time, window time.Duration) {
	for key, bucket := range l.buckets {
		bucket = evictStale(bucket, now, window)
		if len(bucket) == 0 {
			delete(l.buckets, key)
		} else {
			l.buckets[key] = bucket
		}
	}

	interval := window
	if interval < time.Minute {
		interval = time.Minute
	}
	l.gcNext = now.Add(interval)
}

// evictStale trims entries older than the window from the front of a bucket.
// Buckets are append-only, so the first surviving entry is the oldest.
func evictStale(bucket []time.Time, now time.Time, window time.Duration) []time.Time {
	i := 0
	for i < len(bucket) && now.Sub(bucket[i]) >= window {
		i++
	}
	return bucket[i:]
}

// secondsLeft returns how many whole seconds remain until oldest ages out of
// the window, floored at zero.
func secondsLeft(now, oldest time.Time, window time.Duration) int {
	left := window - now.Sub(oldest)
	if left < 0 {
		return 0
	}
	return int(left / time.Second)
}

func (l *LocalLimiter) now() time.Time {
	if l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}
