package ratelimit

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a sliding-window limiter backed by one Redis sorted set
// per key, usable by multiple replicas concurrently. Prune+count and
// add+recount are separate pipelines rather than one atomic script, so
// concurrent bursts can transiently over- or under-count by a small margin;
// that imprecision is accepted in exchange for availability.
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
	Clock  func() time.Time
}

// Allow checks and records a request for key. Any Redis error is returned
// as-is; the caller decides whether to fall back.
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error) {
	now := r.now()
	nowMS := now.UnixMilli()
	windowMS := window.Milliseconds()
	setKey := r.Prefix + ":" + key

	pipe := r.Client.Pipeline()
	pipe.ZRemRangeByScore(ctx, setKey, "0", strconv.FormatInt(nowMS-windowMS, 10))
	countCmd := pipe.ZCard(ctx, setKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}
	count := int(countCmd.Val())

	if count >= limit {
		reset := int(window / time.Second)
		oldest, err := r.Client.ZRangeWithScores(ctx, setKey, 0, 0).Result()
		if err != nil {
			return Decision{}, err
		}
		if len(oldest) > 0 {
			reset = secondsLeftMS(nowMS, int64(oldest[0].Score), windowMS)
		}
		return Decision{Allowed: false, Remaining: 0, Reset: reset}, nil
	}

	// The unique suffix keeps members distinct when several requests land in
	// the same millisecond.
	member := fmt.Sprintf("%d-%s", nowMS, uniqueSuffix())

	pipe = r.Client.Pipeline()
	pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(nowMS), Member: member})
	pipe.Expire(ctx, setKey, window)
	recountCmd := pipe.ZCard(ctx, setKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, setKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return Decision{}, err
	}

	remaining := limit - int(recountCmd.Val())
	if remaining < 0 {
		remaining = 0
	}
	reset := int(window / time.Second)
	if entries := oldestCmd.Val(); len(entries) > 0 {
		reset = secondsLeftMS(nowMS, int64(entries[0].Score), windowMS)
	}

	return Decision{Allowed: true, Remaining: remaining, Reset: reset}, nil
}

// secondsLeftMS returns how many seconds remain until oldestMS ages out of
// the window, rounded up and floored at zero.
func secondsLeftMS(nowMS, oldestMS, windowMS int64) int {
	left := windowMS - (nowMS - oldestMS)
	if left <= 0 {
		return 0
	}
	return int((left + 999) / 1000)
}

func uniqueSuffix() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

func (r *RedisLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}
