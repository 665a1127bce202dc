// Package origin validates browser Origin headers for the WebSocket handshake
// and the ICE configuration endpoint.
package origin

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Normalize validates an Origin header value and returns it in canonical
// scheme://host[:port] form, plus the host[:port] portion for same-host
// comparisons. Default ports (80/443) are stripped. The special value "null"
// is allowed and returned as-is.
func Normalize(raw string) (normalized string, host string, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", "", false
	}
	if trimmed == "null" {
		return "null", "", true
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", "", false
	}
	if u.User != nil || u.RawQuery != "" || u.Fragment != "" {
		return "", "", false
	}
	if u.Path != "" && u.Path != "/" {
		return "", "", false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", "", false
	}

	hostname := strings.ToLower(u.Hostname())
	if hostname == "" {
		return "", "", false
	}

	var port uint64
	if rawPort := u.Port(); rawPort != "" {
		n, err := strconv.ParseUint(rawPort, 10, 16)
		if err != nil || n == 0 {
			return "", "", false
		}
		port = n
	}
	if (scheme == "http" && port == 80) || (scheme == "https" && port == 443) {
		port = 0
	}

	host = hostname
	if strings.Contains(hostname, ":") {
		host = "[" + hostname + "]"
	}
	if port != 0 {
		host = host + ":" + strconv.FormatUint(port, 10)
	}
	return scheme + "://" + host, host, true
}

// IsAllowed reports whether a normalized origin may access the given request
// host.
//
// A non-empty allowlist is authoritative: each entry must be "*" or a
// normalized origin string. With an empty allowlist the policy is same-host
// only (default ports treated as equivalent).
func IsAllowed(normalized, originHost, requestHost string, allowed []string) bool {
	if len(allowed) > 0 {
		for _, a := range allowed {
			if a == "*" || a == normalized {
				return true
			}
		}
		return false
	}

	if normalized == "null" {
		return false
	}
	return originHost != "" && hostsEqual(originHost, requestHost)
}

// CheckRequest applies the origin policy to an HTTP request. Requests without
// an Origin header (non-browser clients) are always allowed.
func CheckRequest(r *http.Request, allowed []string) bool {
	raw := r.Header.Get("Origin")
	if raw == "" {
		return true
	}
	normalized, host, ok := Normalize(raw)
	if !ok {
		return false
	}
	return IsAllowed(normalized, host, r.Host, allowed)
}

func hostsEqual(a, b string) bool {
	return strings.ToLower(stripDefaultPort(a)) == strings.ToLower(stripDefaultPort(b))
}

func stripDefaultPort(host string) string {
	if strings.HasSuffix(host, ":80") {
		return strings.TrimSuffix(host, ":80")
	}
	if strings.HasSuffix(host, ":443") {
		return strings.TrimSuffix(host, ":443")
	}
	return host
}
