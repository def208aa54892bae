package model

import (
	"net"
	"net/url"
	"strings"
)

// ProxyDescriptor is a network egress identity for one browser session.
// It is created by a proxy pool and consumed read-only by a single attempt.
type ProxyDescriptor struct {
	// Server is the proxy address as "scheme://host:port".
	// A bare "host:port" is treated as http.
	Server string

	// Username is the optional proxy user. When a session token is set the
	// pool has already appended it in the provider's format.
	Username string

	// Password is the optional proxy password.
	Password string

	// SessionToken is the optional session-affinity token that pins the
	// provider's exit IP for the lifetime of the session.
	SessionToken string
}

// HasCredentials reports whether the proxy requires authentication.
func (p ProxyDescriptor) HasCredentials() bool {
	return p.Username != "" || p.Password != ""
}

// Scheme returns the lower-case proxy scheme, defaulting to http.
func (p ProxyDescriptor) Scheme() string {
	if i := strings.Index(p.Server, "://"); i > 0 {
		return strings.ToLower(p.Server[:i])
	}
	return "http"
}

// HostPort returns the "host:port" part of Server.
func (p ProxyDescriptor) HostPort() string {
	if i := strings.Index(p.Server, "://"); i >= 0 {
		rest := p.Server[i+3:]
		return strings.TrimSuffix(rest, "/")
	}
	return strings.TrimSuffix(p.Server, "/")
}

// URL returns the proxy as a URL including credentials, suitable for HTTP
// clients. It returns nil if Server does not parse.
func (p ProxyDescriptor) URL() *url.URL {
	host, port, err := net.SplitHostPort(p.HostPort())
	if err != nil {
		return nil
	}
	u := &url.URL{Scheme: p.Scheme(), Host: net.JoinHostPort(host, port)}
	if p.HasCredentials() {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// String returns the proxy address without credentials.
// It is the only representation that may appear in logs or history.
func (p ProxyDescriptor) String() string {
	if p.Server == "" {
		return "direct"
	}
	return p.Scheme() + "://" + p.HostPort()
}
