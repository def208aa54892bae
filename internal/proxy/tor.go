package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/tornago"

	"github.com/nao1215/citawatch/internal/model"
)

// DefaultTorStartupTimeout bounds the Tor bootstrap.
const DefaultTorStartupTimeout = 3 * time.Minute

// daemon is a running Tor process.
type daemon interface {
	SocksAddr() string
	Stop() error
}

// startFunc launches a Tor daemon.
type startFunc func(ctx context.Context, startupTimeout time.Duration) (daemon, error)

// TorPool hands out the SOCKS5 address of an embedded Tor daemon.
//
// Design decision: A fresh exit is obtained by restarting the daemon
// rather than by signalling NEWNYM over the control port. The restart costs
// a bootstrap but also drops every circuit the previous browser touched,
// and it only happens after a blocked attempt.
//
// Note: Starting the embedded Tor daemon takes up to a few minutes as it
// needs to download directory information and build initial circuits.
type TorPool struct {
	startupTimeout time.Duration
	start          startFunc
	logger         *slog.Logger

	mu      sync.Mutex
	process daemon
	closed  bool
	starts  int
}

// TorOption configures a TorPool.
type TorOption func(*TorPool)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
func WithStartupTimeout(timeout time.Duration) TorOption {
	return func(p *TorPool) {
		if timeout > 0 {
			p.startupTimeout = timeout
		}
	}
}

// WithTorLogger sets a custom logger.
func WithTorLogger(logger *slog.Logger) TorOption {
	return func(p *TorPool) {
		p.logger = logger
	}
}

// NewTorPool returns a pool. The daemon is started by the first Next.
func NewTorPool(opts ...TorOption) *TorPool {
	p := &TorPool{
		startupTimeout: DefaultTorStartupTimeout,
		start:          startTornago,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// startTornago launches a Tor daemon on OS-assigned ports.
func startTornago(ctx context.Context, startupTimeout time.Duration) (daemon, error) {
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(startupTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	// This call blocks until Tor is fully bootstrapped or times out.
	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	select {
	case <-ctx.Done():
		_ = process.Stop() //nolint:errcheck // Best effort cleanup
		return nil, ctx.Err()
	default:
	}
	return process, nil
}

// Next starts the daemon on the first call and restarts it on every later
// call, then returns its SOCKS5 address.
func (p *TorPool) Next(ctx context.Context) (*model.ProxyDescriptor, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrPoolClosed
	}
	if p.process != nil {
		p.logger.Info("restarting Tor for fresh circuits")
		if err := p.process.Stop(); err != nil {
			p.logger.Warn("stop Tor", "error", err)
		}
		p.process = nil
	}

	p.logger.Info("starting embedded Tor daemon", "timeout", p.startupTimeout)
	process, err := p.start(ctx, p.startupTimeout)
	if err != nil {
		return nil, err
	}
	p.process = process
	p.starts++
	return &model.ProxyDescriptor{Server: "socks5://" + process.SocksAddr()}, nil
}

// Close stops the daemon. It is safe to call more than once.
func (p *TorPool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.process == nil {
		return nil
	}
	err := p.process.Stop()
	p.process = nil
	return err
}

// Running reports whether the daemon is up.
func (p *TorPool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.process != nil
}
