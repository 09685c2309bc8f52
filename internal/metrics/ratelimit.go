package metrics

import (
	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
)

// Rate limiter metrics following Prometheus conventions
var (
	RateLimitRequestsTotal      = "rate_limit_requests_total"
	RateLimitFallbackTotal      = "rate_limit_fallback_engaged_total"
	RateLimitBackendErrorsTotal = "rate_limit_backend_errors_total"
)

// RecordRateLimitDecision records one throttled request and its outcome.
func RecordRateLimitDecision(category string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}

	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitRequestsTotal,
			1,
			map[string]string{
				"category": category,
				"outcome":  outcome,
			},
		)
	}
}

// RecordRateLimitFallback records a request served by the in-memory
// fallback while the remote backend is unavailable.
func RecordRateLimitFallback(category string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitFallbackTotal,
			1,
			map[string]string{
				"category": category,
			},
		)
	}
}

// RecordRateLimitBackendError records a failed remote backend round-trip.
func RecordRateLimitBackendError(category string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RateLimitBackendErrorsTotal,
			1,
			map[string]string{
				"category": category,
			},
		)
	}
}
