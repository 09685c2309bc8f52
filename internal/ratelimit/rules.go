package ratelimit

import "strings"

// Deny messages returned in 429 bodies, one per rule.
const (
	publicDenyMessage = "Too many requests to public APIs. Please try again later."
	adminDenyMessage  = "Too many requests to admin APIs. Please try again later."
	authDenyMessage   = "Too many auth requests. Please try again later."
	loginDenyMessage  = "Too many login attempts. Please try again later."
	imagesDenyMessage = "Too many image requests. Please slow down and try again."
)

// Rule pairs a request matcher with the descriptor to enforce. Rules are
// evaluated in order and the first match wins, so narrower prefixes must
// come before the broader ones they overlap (/auth/login before /auth/).
type Rule struct {
	Method     string // empty matches every method
	Prefix     string
	Descriptor Descriptor
}

// Match returns the descriptor of the first rule matching the request.
// ok=false means the path is not throttled at all.
func Match(rules []Rule, method, path string) (Descriptor, bool) {
	for _, rule := range rules {
		if rule.Method != "" && rule.Method != method {
			continue
		}
		if strings.HasPrefix(path, rule.Prefix) {
			return rule.Descriptor, true
		}
	}
	return Descriptor{}, false
}
