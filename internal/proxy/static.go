package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	random "github.com/mazen160/go-random"

	"github.com/nao1215/citawatch/internal/model"
)

// sessionTokenLength is the length of the sticky-session token.
const sessionTokenLength = 10

// StaticConfig configures a StaticPool.
type StaticConfig struct {
	// Servers are host:port or scheme://host:port addresses. A bare
	// host:port is taken as http.
	Servers []string

	// Username and Password authenticate against every server.
	Username string
	Password string

	// SessionInUser appends "-session-<token>" to the username on every Next.
	SessionInUser bool

	// RotateURL, when set, is requested by Rotate to ask the provider for
	// a new exit address.
	RotateURL string
}

// StaticPool hands out configured proxy servers round-robin.
type StaticPool struct {
	cfg    StaticConfig
	client *resty.Client
	logger *slog.Logger
	token  func() (string, error)

	mu   sync.Mutex
	next int
}

// StaticOption configures a StaticPool.
type StaticOption func(*StaticPool)

// WithStaticLogger sets a custom logger.
func WithStaticLogger(logger *slog.Logger) StaticOption {
	return func(p *StaticPool) {
		p.logger = logger
	}
}

// WithRotateClient sets the HTTP client used by Rotate.
func WithRotateClient(c *resty.Client) StaticOption {
	return func(p *StaticPool) {
		p.client = c
	}
}

// NewStaticPool validates the servers and returns a pool.
func NewStaticPool(cfg StaticConfig, opts ...StaticOption) (*StaticPool, error) {
	if len(cfg.Servers) == 0 {
		return nil, ErrNoServers
	}
	servers := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		normalized, err := NormalizeServer(s)
		if err != nil {
			return nil, err
		}
		servers = append(servers, normalized)
	}
	cfg.Servers = servers

	p := &StaticPool{
		cfg:   cfg,
		token: func() (string, error) { return random.String(sessionTokenLength) },
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	if p.client == nil {
		p.client = resty.New().SetTimeout(10 * time.Second)
	}
	return p, nil
}

// NormalizeServer returns s as scheme://host:port, defaulting to http.
func NormalizeServer(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrInvalidServer
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidServer, s)
	}
	switch u.Scheme {
	case "http", "https", "socks5":
	default:
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidServer, u.Scheme)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil || host == "" || port == "" {
		return "", fmt.Errorf("%w: %s", ErrInvalidServer, s)
	}
	return u.Scheme + "://" + u.Host, nil
}

// Next returns the next server with credentials and, when configured, a
// fresh session token.
func (p *StaticPool) Next(_ context.Context) (*model.ProxyDescriptor, error) {
	p.mu.Lock()
	server := p.cfg.Servers[p.next%len(p.cfg.Servers)]
	p.next++
	p.mu.Unlock()

	desc := &model.ProxyDescriptor{
		Server:   server,
		Username: p.cfg.Username,
		Password: p.cfg.Password,
	}
	if p.cfg.SessionInUser && p.cfg.Username != "" {
		token, err := p.token()
		if err != nil {
			return nil, fmt.Errorf("generate session token: %w", err)
		}
		desc.SessionToken = token
		desc.Username = p.cfg.Username + "-session-" + token
	}
	p.logger.Debug("proxy descriptor issued", "proxy", desc.String())
	return desc, nil
}

// Rotate requests the provider's rotation endpoint, if configured.
func (p *StaticPool) Rotate(ctx context.Context) error {
	if p.cfg.RotateURL == "" {
		return nil
	}
	resp, err := p.client.R().SetContext(ctx).Get(p.cfg.RotateURL)
	if err != nil {
		return fmt.Errorf("rotate proxy: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("rotate proxy: unexpected status %d", resp.StatusCode())
	}
	p.logger.Info("proxy rotation requested")
	return nil
}

// Size returns the number of configured servers.
func (p *StaticPool) Size() int {
	return len(p.cfg.Servers)
}
