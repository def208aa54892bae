package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	xproxy "golang.org/x/net/proxy"

	"github.com/nao1215/citawatch/internal/model"
)

const (
	// DefaultProbeTimeout bounds the SOCKS5 handshake.
	DefaultProbeTimeout = 5 * time.Second

	// DefaultLookupTimeout bounds the public IP lookup.
	DefaultLookupTimeout = 15 * time.Second

	// DefaultIPLookupURL returns the caller's public IP as plain text.
	DefaultIPLookupURL = "https://api.ipify.org"
)

// SOCKS5 protocol constants.
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5AuthPassword  = 0x02
	socks5AuthNoAccept  = 0xFF
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03
	socks5AuthVersion   = 0x01

	// socks5ProbeHost is the destination of the probe CONNECT request.
	socks5ProbeHost = "api.ipify.org"
)

// Health is the result of a full descriptor check.
type Health struct {
	// Proxy is the checked descriptor without credentials.
	Proxy string

	// SOCKS is the handshake status; only set for socks5 descriptors.
	SOCKS *Status

	// PublicIP is the egress address seen by the lookup service.
	PublicIP string

	// Latency is the duration of the IP lookup.
	Latency time.Duration

	// Err is the first failure, nil when healthy.
	Err error
}

// Healthy reports whether the descriptor can be used.
func (h Health) Healthy() bool {
	return h.Err == nil
}

// Checker verifies descriptors before use.
type Checker struct {
	lookupURL     string
	probeTimeout  time.Duration
	lookupTimeout time.Duration
	logger        *slog.Logger
}

// CheckerOption configures a Checker.
type CheckerOption func(*Checker)

// WithLookupURL sets the public IP lookup endpoint.
func WithLookupURL(u string) CheckerOption {
	return func(c *Checker) {
		c.lookupURL = u
	}
}

// WithProbeTimeout sets the SOCKS5 handshake timeout.
func WithProbeTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) {
		c.probeTimeout = d
	}
}

// WithLookupTimeout sets the IP lookup timeout.
func WithLookupTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) {
		c.lookupTimeout = d
	}
}

// WithCheckerLogger sets a custom logger.
func WithCheckerLogger(logger *slog.Logger) CheckerOption {
	return func(c *Checker) {
		c.logger = logger
	}
}

// NewChecker returns a checker.
func NewChecker(opts ...CheckerOption) *Checker {
	c := &Checker{
		lookupURL:     DefaultIPLookupURL,
		probeTimeout:  DefaultProbeTimeout,
		lookupTimeout: DefaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Check probes p and looks up the public IP through it. A nil p checks
// the default egress.
func (c *Checker) Check(ctx context.Context, p *model.ProxyDescriptor) Health {
	h := Health{Proxy: "direct"}
	if p != nil {
		h.Proxy = p.String()
		if p.Scheme() == "socks5" {
			status := c.ProbeSOCKS5(ctx, p)
			h.SOCKS = &status
			if err := status.Error(); err != nil {
				h.Err = err
				return h
			}
		}
	}

	start := time.Now()
	ip, err := c.PublicIP(ctx, p)
	h.Latency = time.Since(start)
	if err != nil {
		h.Err = err
		return h
	}
	h.PublicIP = ip
	return h
}

// Healthy implements the retry policy's health checker.
func (c *Checker) Healthy(ctx context.Context, p *model.ProxyDescriptor) error {
	h := c.Check(ctx, p)
	if h.Err != nil {
		return h.Err
	}
	c.logger.Debug("proxy healthy", "proxy", h.Proxy, "ip", h.PublicIP, "latency", h.Latency)
	return nil
}

// ProbeSOCKS5 performs a SOCKS5 handshake and CONNECT request against the
// descriptor's server.
//
// Design decision: We implement a raw handshake instead of dialing through
// x/net/proxy because the library collapses every failure into one error;
// the raw exchange tells a non-SOCKS service, rejected credentials and an
// unreachable server apart.
func (c *Checker) ProbeSOCKS5(ctx context.Context, p *model.ProxyDescriptor) Status {
	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", p.HostPort())
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return StatusTimeout
		}
		return StatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.probeTimeout)); err != nil {
		return StatusCannotConnect
	}

	methods := []byte{socks5AuthNone}
	if p.HasCredentials() {
		methods = append(methods, socks5AuthPassword)
	}
	greeting := append([]byte{socks5Version, byte(len(methods))}, methods...)
	if _, err := conn.Write(greeting); err != nil {
		return StatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		return readStatus(err)
	}
	if authResp[0] != socks5Version {
		return StatusWrongType
	}

	switch authResp[1] {
	case socks5AuthNone:
	case socks5AuthPassword:
		if !p.HasCredentials() {
			return StatusAuthRejected
		}
		if status := authenticate(conn, p.Username, p.Password); status != StatusOK {
			return status
		}
	case socks5AuthNoAccept:
		return StatusAuthRejected
	default:
		return StatusWrongType
	}

	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00, // reserved
		socks5AddrTypeDomID,
		byte(len(socks5ProbeHost)),
	}
	connectReq = append(connectReq, []byte(socks5ProbeHost)...)
	connectReq = append(connectReq, 0x00, 80)
	if _, err := conn.Write(connectReq); err != nil {
		return StatusCannotConnect
	}

	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		return readStatus(err)
	}
	if connectResp[0] != socks5Version {
		return StatusWrongType
	}
	return StatusOK
}

// authenticate runs the username/password sub-negotiation (RFC 1929).
func authenticate(conn net.Conn, user, pass string) Status {
	if len(user) > 255 || len(pass) > 255 {
		return StatusAuthRejected
	}
	req := []byte{socks5AuthVersion, byte(len(user))}
	req = append(req, user...)
	req = append(req, byte(len(pass)))
	req = append(req, pass...)
	if _, err := conn.Write(req); err != nil {
		return StatusCannotConnect
	}
	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return readStatus(err)
	}
	if resp[1] != 0x00 {
		return StatusAuthRejected
	}
	return StatusOK
}

// readStatus maps a read failure to a status.
func readStatus(err error) Status {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusTimeout
	}
	return StatusWrongType
}

// PublicIP returns the egress address seen through p. A nil p uses the
// default egress.
func (c *Checker) PublicIP(ctx context.Context, p *model.ProxyDescriptor) (string, error) {
	client, err := c.client(p)
	if err != nil {
		return "", err
	}
	resp, err := client.R().SetContext(ctx).Get(c.lookupURL)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrIPLookup, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("%w: status %d", ErrIPLookup, resp.StatusCode())
	}
	ip := strings.TrimSpace(resp.String())
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("%w: unexpected body %q", ErrIPLookup, truncate(ip, 64))
	}
	return ip, nil
}

// client returns an HTTP client leaving through p.
func (c *Checker) client(p *model.ProxyDescriptor) (*resty.Client, error) {
	client := resty.New().SetTimeout(c.lookupTimeout)
	if p == nil {
		return client, nil
	}

	if p.Scheme() == "socks5" {
		var auth *xproxy.Auth
		if p.HasCredentials() {
			auth = &xproxy.Auth{User: p.Username, Password: p.Password}
		}
		dialer, err := xproxy.SOCKS5("tcp", p.HostPort(), auth, xproxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := dialer.(xproxy.ContextDialer)
		if !ok {
			return nil, errors.New("SOCKS5 dialer does not support contexts")
		}
		return client.SetTransport(&http.Transport{
			DialContext:         cd.DialContext,
			TLSHandshakeTimeout: c.lookupTimeout,
		}), nil
	}

	u := p.URL()
	if u == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidServer, p.String())
	}
	return client.SetProxy(u.String()), nil
}

// truncate shortens s to n bytes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
