package validation

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL validates an http(s) or ws(s) URL with a host.
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("invalid URL scheme %q (must be http, https, ws, or wss)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateOrigin accepts "*" or a bare scheme://host[:port] origin.
func ValidateOrigin(origin string) error {
	origin = strings.TrimSpace(origin)
	if origin == "*" {
		return nil
	}
	if err := ValidateURL(origin); err != nil {
		return fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	u, _ := url.Parse(origin)
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("invalid origin %q: must not contain a path, query or fragment", origin)
	}
	return nil
}

// ValidateICEServerURL checks a STUN/TURN URI as accepted by RTCPeerConnection
// (RFC 7064 / RFC 7065), e.g. "stun:host:3478" or "turn:host?transport=tcp".
func ValidateICEServerURL(raw string) error {
	scheme, rest, ok := strings.Cut(raw, ":")
	if !ok {
		return fmt.Errorf("ice server url %q has no scheme", raw)
	}

	switch strings.ToLower(scheme) {
	case "stun", "stuns", "turn", "turns":
	default:
		return fmt.Errorf("ice server url %q: unsupported scheme %q", raw, scheme)
	}

	hostPort, query, _ := strings.Cut(rest, "?")
	if hostPort == "" || strings.HasPrefix(hostPort, "//") {
		return fmt.Errorf("ice server url %q: missing host", raw)
	}

	if query != "" {
		if strings.HasPrefix(strings.ToLower(scheme), "stun") {
			return fmt.Errorf("ice server url %q: stun urls take no query", raw)
		}
		values, err := url.ParseQuery(query)
		if err != nil {
			return fmt.Errorf("ice server url %q: %w", raw, err)
		}
		if t := values.Get("transport"); t != "" && t != "udp" && t != "tcp" {
			return fmt.Errorf("ice server url %q: unsupported transport %q", raw, t)
		}
	}
	return nil
}
