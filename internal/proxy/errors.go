package proxy

import "errors"

// Proxy errors.
//
// Design decision: Health failures map to distinct sentinels so that the
// proxy-check command and the logs can tell a dead proxy from a
// misconfigured one.
var (
	// ErrNoServers is returned when a static pool is built without servers.
	ErrNoServers = errors.New("no proxy servers configured")

	// ErrInvalidServer is returned when a server is not a host:port or URL.
	ErrInvalidServer = errors.New("invalid proxy server: expected host:port or scheme://host:port")

	// ErrPoolClosed is returned by Next after Close.
	ErrPoolClosed = errors.New("proxy pool is closed")

	// ErrNotSOCKS5 is returned when the server answers but not as a SOCKS5 proxy.
	ErrNotSOCKS5 = errors.New("proxy is not a SOCKS5 proxy")

	// ErrAuthRejected is returned when the SOCKS5 proxy rejects the credentials.
	ErrAuthRejected = errors.New("proxy rejected the credentials")

	// ErrCannotConnect is returned when no TCP connection can be made to the proxy.
	ErrCannotConnect = errors.New("cannot connect to proxy")

	// ErrTimeout is returned when the proxy does not answer in time.
	ErrTimeout = errors.New("timeout connecting to proxy")

	// ErrIPLookup is returned when the public IP cannot be read through the proxy.
	ErrIPLookup = errors.New("public IP lookup through proxy failed")
)

// Status is the result of a SOCKS5 handshake probe.
type Status int

const (
	// StatusOK indicates a working SOCKS5 proxy.
	StatusOK Status = iota

	// StatusWrongType indicates the server answered but not as SOCKS5.
	StatusWrongType

	// StatusAuthRejected indicates the credentials were refused.
	StatusAuthRejected

	// StatusCannotConnect indicates no connection could be established.
	StatusCannotConnect

	// StatusTimeout indicates the probe timed out.
	StatusTimeout
)

// String returns a human-readable description of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWrongType:
		return "wrong type (not SOCKS5)"
	case StatusAuthRejected:
		return "credentials rejected"
	case StatusCannotConnect:
		return "cannot connect"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error returns the sentinel for this status, or nil if OK.
func (s Status) Error() error {
	switch s {
	case StatusOK:
		return nil
	case StatusWrongType:
		return ErrNotSOCKS5
	case StatusAuthRejected:
		return ErrAuthRejected
	case StatusCannotConnect:
		return ErrCannotConnect
	case StatusTimeout:
		return ErrTimeout
	default:
		return errors.New("unknown proxy status")
	}
}
