package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/khmelevskiy/daily-dish-hub/internal/metrics"
	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
)

type denyResponse struct {
	Detail     string        `json:"detail"`
	RetryAfter int           `json:"retry_after"`
	RateLimit  denyRateLimit `json:"rate_limit"`
}

type denyRateLimit struct {
	Limit     int `json:"limit"`
	Window    int `json:"window"`
	Remaining int `json:"remaining"`
	Reset     int `json:"reset"`
}

// Middleware throttles requests per category. Unthrottled paths pass
// through untouched; throttled ones get X-RateLimit-* headers on success
// and a structured 429 on denial. It must run before routing so the rule
// table sees the raw request path.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		desc, ok := s.Lookup(r.Method, r.URL.Path)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := s.resolver.ClientIP(r)

		decision, err := desc.Limiter.Allow(r.Context(), key, desc.Limit, desc.Window)
		if err != nil {
			// Limiters wired by NewService absorb backend errors; if one
			// surfaces anyway, deny rather than leave the category open.
			if observability.ServerLogger != nil {
				observability.ServerLogger.Error("Rate limiter error",
					zap.String("category", string(desc.Category)),
					zap.Error(err))
			}
			decision = Decision{}
		}

		windowSeconds := int(desc.Window / time.Second)

		header := w.Header()
		header.Set("X-RateLimit-Limit", strconv.Itoa(desc.Limit))
		header.Set("X-RateLimit-Window", strconv.Itoa(windowSeconds))
		header.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		header.Set("X-RateLimit-Reset", strconv.Itoa(decision.Reset))

		if !decision.Allowed {
			metrics.RecordRateLimitDecision(string(desc.Category), false)
			if observability.ServerLogger != nil {
				observability.ServerLogger.Warn("Rate limit exceeded",
					zap.String("client_ip", key),
					zap.String("path", r.URL.Path),
					zap.String("category", string(desc.Category)))
			}

			header.Set("Retry-After", strconv.Itoa(decision.Reset))
			header.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(denyResponse{
				Detail:     desc.DenyMessage,
				RetryAfter: decision.Reset,
				RateLimit: denyRateLimit{
					Limit:     desc.Limit,
					Window:    windowSeconds,
					Remaining: decision.Remaining,
					Reset:     decision.Reset,
				},
			})
			return
		}

		metrics.RecordRateLimitDecision(string(desc.Category), true)
		next.ServeHTTP(w, r)
	})
}
