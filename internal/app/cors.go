package app

import (
	"net/url"
	"strings"
)

// originHost reduces an Origin header value to its "host[:port]" part so
// allow-list patterns never have to mention the scheme.
func originHost(origin string) string {
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return origin
	}
	return u.Host
}

// originAllowed reports whether host satisfies one allow-list pattern.
// "*.domain" matches any subdomain, "host:*" matches any port, anything
// else must match exactly.
func originAllowed(pattern, host string) bool {
	switch {
	case pattern == host:
		return true
	case strings.HasPrefix(pattern, "*."):
		return strings.HasSuffix(host, pattern[1:])
	case strings.HasSuffix(pattern, ":*"):
		return strings.HasPrefix(host, strings.TrimSuffix(pattern, "*"))
	default:
		return false
	}
}
