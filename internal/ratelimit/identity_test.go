package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func identityRequest(remoteAddr string, headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/public/daily-menu", nil)
	req.RemoteAddr = remoteAddr
	for name, value := range headers {
		req.Header.Set(name, value)
	}
	return req
}

func TestClientIPTrustDisabled(t *testing.T) {
	resolver := NewIdentityResolver(false, nil)

	req := identityRequest("198.51.100.7:51334", map[string]string{
		"X-Forwarded-For": "9.9.9.9",
		"X-Real-IP":       "9.9.9.9",
	})
	require.Equal(t, "198.51.100.7", resolver.ClientIP(req))
}

func TestClientIPEmptyTrustList(t *testing.T) {
	resolver := NewIdentityResolver(true, nil)

	req := identityRequest("198.51.100.7:51334", map[string]string{
		"X-Forwarded-For": "9.9.9.9",
	})
	for i := 0; i < 20; i++ {
		require.Equal(t, "198.51.100.7", resolver.ClientIP(req))
	}
	require.True(t, resolver.warnedEmpty.Load())
}

func TestClientIPTrustedProxy(t *testing.T) {
	resolver := NewIdentityResolver(true, []string{"10.0.0.0/8"})

	// X-Real-IP wins over X-Forwarded-For.
	req := identityRequest("10.1.2.3:7070", map[string]string{
		"X-Real-IP":       "203.0.113.50",
		"X-Forwarded-For": "198.51.100.1, 10.1.2.3",
	})
	require.Equal(t, "203.0.113.50", resolver.ClientIP(req))

	// Without X-Real-IP the left-most forwarded token is the client.
	req = identityRequest("10.1.2.3:7070", map[string]string{
		"X-Forwarded-For": "198.51.100.1, 10.1.2.3",
	})
	require.Equal(t, "198.51.100.1", resolver.ClientIP(req))

	// No forwarded headers at all: the proxy itself is the identity.
	req = identityRequest("10.1.2.3:7070", nil)
	require.Equal(t, "10.1.2.3", resolver.ClientIP(req))
}

func TestClientIPUntrustedPeerIgnoresHeaders(t *testing.T) {
	resolver := NewIdentityResolver(true, []string{"10.0.0.0/8"})

	req := identityRequest("172.16.0.9:2222", map[string]string{
		"X-Real-IP": "203.0.113.50",
	})
	require.Equal(t, "172.16.0.9", resolver.ClientIP(req))
}

func TestClientIPMalformedForwardedValues(t *testing.T) {
	resolver := NewIdentityResolver(true, []string{"10.0.0.0/8"})

	// A bad X-Real-IP falls through to X-Forwarded-For.
	req := identityRequest("10.1.2.3:7070", map[string]string{
		"X-Real-IP":       "not-an-ip",
		"X-Forwarded-For": "9.9.9.9",
	})
	require.Equal(t, "9.9.9.9", resolver.ClientIP(req))

	// Only the left-most forwarded token counts; if it is garbage the peer
	// address is used even when later tokens would parse.
	req = identityRequest("10.1.2.3:7070", map[string]string{
		"X-Forwarded-For": "garbage, 9.9.9.9",
	})
	require.Equal(t, "10.1.2.3", resolver.ClientIP(req))
}

func TestTrustedProxyEntryForms(t *testing.T) {
	cases := []struct {
		name    string
		entries []string
		peer    string
		trusted bool
	}{
		{"exact ip", []string{"10.1.2.3"}, "10.1.2.3", true},
		{"cidr block", []string{"10.0.0.0/8"}, "10.200.1.1", true},
		{"cidr with host bits", []string{"10.0.0.5/8"}, "10.200.1.1", true},
		{"ipv6 block", []string{"2001:db8::/32"}, "2001:db8::1", true},
		{"outside block", []string{"10.0.0.0/8"}, "192.168.1.1", false},
		{"garbage entry", []string{"not-a-network"}, "10.1.2.3", false},
		{"empty entries skipped", []string{" ", "", "10.0.0.0/8"}, "10.0.0.1", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := NewIdentityResolver(true, tc.entries)
			require.Equal(t, tc.trusted, resolver.isTrustedProxy(tc.peer))
		})
	}
}

func TestPeerAddrWithoutPort(t *testing.T) {
	resolver := NewIdentityResolver(false, nil)

	req := identityRequest("198.51.100.7", nil)
	require.Equal(t, "198.51.100.7", resolver.ClientIP(req))

	req = identityRequest("[2001:db8::1]:443", nil)
	require.Equal(t, "2001:db8::1", resolver.ClientIP(req))
}
