package server

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	"github.com/khmelevskiy/daily-dish-hub/internal/observability"
)

// hop-by-hop headers per RFC 9110 §7.6.1; never forwarded.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"TE", "Trailer", "Transfer-Encoding", "Upgrade",
}

// UpstreamProxy forwards /admin/* and /auth/* requests to the admin backend
// that owns CRUD and token issuance. The edge rate limiter has already run
// by the time a request reaches the proxy.
type UpstreamProxy struct {
	base   *url.URL
	client *http.Client
}

// NewUpstreamProxy parses the admin backend URL. An empty URL returns a nil
// proxy (the routes then answer 503), an unparseable one an error.
func NewUpstreamProxy(adminURL string, timeout time.Duration) (*UpstreamProxy, error) {
	adminURL = strings.TrimSpace(adminURL)
	if adminURL == "" {
		return nil, nil
	}

	base, err := url.Parse(adminURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("upstream URL %q requires scheme and host", adminURL)
	}

	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &UpstreamProxy{
		base:   base,
		client: &http.Client{Timeout: timeout},
	}, nil
}

// ServeHTTP forwards the request verbatim: same method, path, and query,
// body streamed through, hop-by-hop headers stripped both ways.
func (p *UpstreamProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := *p.base
	target.Path = singleJoiningSlash(p.base.Path, r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target.String(), r.Body)
	if err != nil {
		wrapped, _ := errors.NewErrorEnvelope("INTERNAL_ERROR", "Unable to construct upstream request").
			WithContext(map[string]interface{}{
				"upstream_url":   target.String(),
				"original_error": err.Error(),
			})
		HandleError(w, r, wrapped)
		return
	}

	copyHeaders(req.Header, r.Header)
	appendForwardedFor(req.Header, r.RemoteAddr)

	resp, err := p.client.Do(req)
	if err != nil {
		wrapped, _ := errors.NewErrorEnvelope("EXTERNAL_SERVICE_ERROR", "Admin backend unavailable").
			WithContext(map[string]interface{}{
				"upstream_url":   target.String(),
				"original_error": err.Error(),
			})
		HandleError(w, r, wrapped)
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && observability.ServerLogger != nil {
			observability.ServerLogger.Warn("Failed to close upstream response body",
				zap.Error(err))
		}
	}()

	copyHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil && observability.ServerLogger != nil {
		observability.ServerLogger.Warn("Failed to write upstream response",
			zap.Error(err))
	}
}

// UpstreamUnavailableHandler answers for admin/auth routes when no upstream
// is configured. The routes stay registered so the rate limiter still
// classifies and throttles them.
func UpstreamUnavailableHandler(w http.ResponseWriter, r *http.Request) {
	HandleError(w, r, errors.NewErrorEnvelope("SERVICE_UNAVAILABLE", "Admin backend is not configured"))
}

func copyHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopByHop(key) {
			continue
		}
		for _, v := range values {
			dst.Add(key, v)
		}
	}
}

func isHopByHop(key string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(key, h) {
			return true
		}
	}
	return false
}

func appendForwardedFor(header http.Header, remoteAddr string) {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	if host == "" {
		return
	}
	if prior := header.Get("X-Forwarded-For"); prior != "" {
		header.Set("X-Forwarded-For", prior+", "+host)
		return
	}
	header.Set("X-Forwarded-For", host)
}

// singleJoiningSlash joins URL paths without doubling or dropping the slash.
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
