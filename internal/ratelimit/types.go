// Package ratelimit implements per-client sliding-window request throttling
// with an in-memory backend, a Redis backend shared across replicas, and
// automatic failover from the latter to the former.
package ratelimit

import (
	"context"
	"time"
)

// Category identifies a class of routes sharing one limit/window configuration.
type Category string

const (
	CategoryPublic Category = "public"
	CategoryAdmin  Category = "admin"
	CategoryAuth   Category = "auth"
	CategoryImages Category = "images"
)

// Categories lists every throttled category, in rule-table order.
var Categories = []Category{CategoryPublic, CategoryAdmin, CategoryAuth, CategoryImages}

// RedisKeyPrefix returns the sorted-set namespace for a category. Full keys
// are "<prefix>:<identity>".
func RedisKeyPrefix(c Category) string {
	return "rl:" + string(c)
}

// Backend names accepted in configuration.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Descriptor binds a route category to its limiter instance and configured
// budget. Descriptors are built once at startup and looked up per request.
type Descriptor struct {
	Category    Category
	Limiter     Limiter
	Limit       int
	Window      time.Duration
	DenyMessage string
}

// Decision is the outcome of a single rate-limit check. Reset is the number
// of seconds until the oldest counted request leaves the window.
type Decision struct {
	Allowed   bool
	Remaining int
	Reset     int
}

// Limiter is the sliding-window contract shared by all backends. A non-nil
// error means the backend could not be reached and the decision is unusable;
// only FailoverLimiter translates that into a fallback call, limiters handed
// to the HTTP layer never return one.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}
