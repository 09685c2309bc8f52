package ratelimit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	config := &telemetry.Config{
		Enabled: true,
		Emitter: collector,
	}

	sys, err := telemetry.NewSystem(config)
	require.NoError(t, err)

	originalTelemetry := observability.TelemetrySystem
	observability.TelemetrySystem = sys

	t.Cleanup(func() {
		observability.TelemetrySystem = originalTelemetry
	})

	return collector
}

func testService() *Service {
	return NewService(Settings{
		Backend:        BackendMemory,
		WindowSeconds:  10,
		PublicRequests: 2,
		AdminRequests:  2,
		AuthAttempts:   1,
		ImageRequests:  1,
	}, NewIdentityResolver(false, nil))
}

func TestMiddlewareBypassesUnthrottledPaths(t *testing.T) {
	svc := testService()

	reached := false
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestMiddlewareDecoratesAllowedRequests(t *testing.T) {
	svc := testService()

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/public/daily-menu", nil)
	req.RemoteAddr = "198.51.100.7:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Window"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "10", rec.Header().Get("X-RateLimit-Reset"))
	assert.Empty(t, rec.Header().Get("Retry-After"))
}

func TestMiddlewareDeniesOverLimit(t *testing.T) {
	svc := testService()

	hits := 0
	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	first.RemoteAddr = "198.51.100.7:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, first)
	require.Equal(t, http.StatusOK, rec.Code)

	// Same client from another source port: still one identity.
	second := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	second.RemoteAddr = "198.51.100.7:40001"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, second)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, 1, hits)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, rec.Header().Get("X-RateLimit-Reset"), rec.Header().Get("Retry-After"))

	var body denyResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Too many login attempts. Please try again later.", body.Detail)
	assert.Equal(t, 1, body.RateLimit.Limit)
	assert.Equal(t, 10, body.RateLimit.Window)
	assert.Equal(t, 0, body.RateLimit.Remaining)
	assert.Equal(t, body.RateLimit.Reset, body.RetryAfter)

	// A different client is not affected.
	third := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	third.RemoteAddr = "203.0.113.9:40000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, third)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 2, hits)
}

func TestMiddlewareImagesMethodScoped(t *testing.T) {
	svc := testService()

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	get := httptest.NewRequest(http.MethodGet, "/images/7", nil)
	get.RemoteAddr = "198.51.100.7:40000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, get)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, get)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Non-GET image requests are not throttled at all.
	post := httptest.NewRequest(http.MethodPost, "/images/7", nil)
	post.RemoteAddr = "198.51.100.7:40000"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, post)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestMiddlewareUsesForwardedIdentity(t *testing.T) {
	svc := NewService(Settings{
		Backend:       BackendMemory,
		WindowSeconds: 10,
		AuthAttempts:  1,
	}, NewIdentityResolver(true, []string{"198.51.100.7"}))

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(realIP string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:40000"
		req.Header.Set("X-Real-IP", realIP)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("203.0.113.50"))
	require.Equal(t, http.StatusOK, send("203.0.113.51"))
	require.Equal(t, http.StatusTooManyRequests, send("203.0.113.50"))
}

func TestMiddlewareEmitsMetrics(t *testing.T) {
	collector := setupTelemetry(t)
	svc := testService()

	handler := svc.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = "198.51.100.7:40000"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, 2, collector.CountMetricsByName("rate_limit_requests_total"),
		"expected one allowed and one denied emission")
}
