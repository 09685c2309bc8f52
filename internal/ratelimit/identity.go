package ratelimit

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"

	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
)

// IdentityResolver derives the per-client rate-limit key from the socket
// peer address. When proxy headers are trusted and the peer matches the
// configured proxy list, the forwarded client IP is used instead.
type IdentityResolver struct {
	trustHeaders bool
	prefixes     []netip.Prefix
	exact        []string
	warnedEmpty  atomic.Bool
}

// NewIdentityResolver parses the trusted proxy list once. Entries may be
// plain IPs or CIDR blocks; entries that parse as neither are kept for
// exact string comparison against the peer address.
func NewIdentityResolver(trustHeaders bool, trustedProxies []string) *IdentityResolver {
	resolver := &IdentityResolver{trustHeaders: trustHeaders}
	for _, entry := range trustedProxies {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			resolver.prefixes = append(resolver.prefixes, prefix.Masked())
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			addr = addr.Unmap()
			resolver.prefixes = append(resolver.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		resolver.exact = append(resolver.exact, entry)
	}
	return resolver
}

// ClientIP resolves the identity key for a request. It never fails: any
// unusable forwarded header falls back to the peer address.
func (ir *IdentityResolver) ClientIP(r *http.Request) string {
	peer := peerAddr(r)
	if !ir.trustHeaders {
		return peer
	}

	if len(ir.prefixes) == 0 && len(ir.exact) == 0 {
		if ir.warnedEmpty.CompareAndSwap(false, true) && observability.ServerLogger != nil {
			observability.ServerLogger.Warn("ENABLE_PROXY_HEADERS is set but TRUSTED_PROXIES is empty; ignoring forwarded client IP headers")
		}
		return peer
	}

	if !ir.isTrustedProxy(peer) {
		return peer
	}

	if forwarded := forwardedIP(r.Header); forwarded != "" {
		return forwarded
	}
	return peer
}

func (ir *IdentityResolver) isTrustedProxy(peer string) bool {
	addr, err := netip.ParseAddr(peer)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range ir.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	for _, entry := range ir.exact {
		if peer == entry {
			return true
		}
	}
	return false
}

// forwardedIP picks the client IP advertised by a trusted proxy: a
// single-value X-Real-IP wins, otherwise the left-most X-Forwarded-For
// token. Values that do not parse as an IP are treated as absent.
func forwardedIP(header http.Header) string {
	if ip := validIP(header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	xff := header.Get("X-Forwarded-For")
	if xff == "" {
		return ""
	}
	first, _, _ := strings.Cut(xff, ",")
	return validIP(first)
}

func validIP(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if _, err := netip.ParseAddr(raw); err != nil {
		return ""
	}
	return raw
}

func peerAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
