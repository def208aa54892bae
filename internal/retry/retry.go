package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/wait"
)

const (
	// MaxAllowedRetries is the upper bound of Config.MaxRetries.
	MaxAllowedRetries = 3

	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 2

	// DefaultRetryDelay separates a blocked attempt from the next one.
	DefaultRetryDelay = 3 * time.Second

	// UnhealthyProxyReason is the reason recorded for a failed health check.
	UnhealthyProxyReason = "unhealthy proxy"
)

// SessionFactory opens browser sessions. A nil descriptor means the
// default egress.
type SessionFactory interface {
	Open(ctx context.Context, p *model.ProxyDescriptor) (browser.Session, error)
}

// Runner runs one navigation over an open session.
type Runner interface {
	Run(ctx context.Context, s browser.Session, t model.Target) model.Result
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, s browser.Session, t model.Target) model.Result

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, s browser.Session, t model.Target) model.Result {
	return f(ctx, s, t)
}

// Pool hands out egress descriptors.
type Pool interface {
	Next(ctx context.Context) (*model.ProxyDescriptor, error)
}

// HealthChecker verifies a descriptor before use.
type HealthChecker interface {
	Healthy(ctx context.Context, p *model.ProxyDescriptor) error
}

// Rotator is implemented by pools that can ask the provider for a new
// exit address out of band.
type Rotator interface {
	Rotate(ctx context.Context) error
}

// Config configures a Policy. It is copied at construction.
type Config struct {
	// MaxRetries is the number of attempts after the first one (0..3).
	MaxRetries int

	// AlwaysProxy takes the first attempt's descriptor from the pool too.
	AlwaysProxy bool

	// CheckHealth health-checks every pool descriptor before use.
	CheckHealth bool

	// RetryDelay separates a blocked attempt from the next one.
	RetryDelay time.Duration
}

// DefaultConfig returns the default retry configuration.
func DefaultConfig() Config {
	return Config{
		MaxRetries:  DefaultMaxRetries,
		CheckHealth: true,
		RetryDelay:  DefaultRetryDelay,
	}
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	if c.MaxRetries < 0 || c.MaxRetries > MaxAllowedRetries {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxRetries, c.MaxRetries)
	}
	return nil
}

// Report is the outcome of one Check.
type Report struct {
	// AttemptID identifies the check in logs and history.
	AttemptID string

	// Result is the verdict of the last attempt.
	Result model.Result

	// Attempts is the number of attempts consumed, health check failures included.
	Attempts int

	// Proxy is the descriptor of the last attempt; nil means the default egress.
	Proxy *model.ProxyDescriptor

	// ProbableBlock is set when every attempt ended BLOCKED.
	ProbableBlock bool
}

// Policy runs navigation attempts with retries and proxy recovery.
type Policy struct {
	cfg     Config
	factory SessionFactory
	runner  Runner
	pool    Pool
	checker HealthChecker
	sem     *semaphore.Weighted
	logger  *slog.Logger
}

// Option configures a Policy.
type Option func(*Policy)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// WithPool sets the proxy pool retries draw descriptors from.
// Without a pool every attempt uses the default egress.
func WithPool(pool Pool) Option {
	return func(p *Policy) {
		p.pool = pool
	}
}

// WithHealthChecker sets the checker used when Config.CheckHealth is set.
func WithHealthChecker(c HealthChecker) Option {
	return func(p *Policy) {
		p.checker = c
	}
}

// New returns a policy.
func New(cfg Config, factory SessionFactory, runner Runner, opts ...Option) (*Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, ErrNilFactory
	}
	if runner == nil {
		return nil, ErrNilRunner
	}

	p := &Policy{
		cfg:     cfg,
		factory: factory,
		runner:  runner,
		sem:     semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Check runs up to MaxRetries+1 attempts against t. It returns an error
// only when a session cannot be opened or ctx is cancelled; every
// navigation outcome is part of the report.
func (p *Policy) Check(ctx context.Context, t model.Target) (Report, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Report{}, err
	}
	defer p.sem.Release(1)

	rep := Report{AttemptID: uuid.NewString()}
	total := p.cfg.MaxRetries + 1

	for attempt := range total {
		if attempt > 0 {
			p.rotate(ctx)
			if err := wait.Sleep(ctx, p.cfg.RetryDelay); err != nil {
				return rep, err
			}
		}

		desc := p.descriptor(ctx, attempt)
		rep.Proxy = desc
		rep.Attempts++

		if err := p.healthy(ctx, desc); err != nil {
			p.logger.Warn("proxy failed health check",
				"target", t.Name,
				"attempt", attempt+1,
				"proxy", proxyName(desc),
				"error", err,
			)
			rep.Result = model.NewResult(model.OutcomeBlocked, model.Diagnostics{Reason: UnhealthyProxyReason})
			continue
		}

		res, err := p.attempt(ctx, t, desc)
		if err != nil {
			return rep, fmt.Errorf("attempt %d for %s: %w", attempt+1, t.Name, err)
		}
		rep.Result = res

		p.logger.Debug("attempt finished",
			"target", t.Name,
			"attempt", attempt+1,
			"of", total,
			"outcome", res.Outcome.String(),
			"proxy", proxyName(desc),
		)

		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if res.Outcome != model.OutcomeBlocked {
			return rep, nil
		}
		if attempt+1 < total {
			p.logger.Info("blocked, retrying with a new egress",
				"target", t.Name,
				"attempt", attempt+1,
				"reason", res.Diagnostics.Reason,
			)
		}
	}

	rep.ProbableBlock = rep.Result.Outcome == model.OutcomeBlocked
	return rep, nil
}

// attempt opens a session, runs the navigator and closes the session.
func (p *Policy) attempt(ctx context.Context, t model.Target, desc *model.ProxyDescriptor) (model.Result, error) {
	s, err := p.factory.Open(ctx, desc)
	if err != nil {
		return model.Result{}, fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil {
			p.logger.Debug("close session", "error", cerr)
		}
	}()
	return p.runner.Run(ctx, s, t), nil
}

// descriptor returns the egress of the given attempt; nil means default.
// Pool failures fall back to the default egress.
func (p *Policy) descriptor(ctx context.Context, attempt int) *model.ProxyDescriptor {
	if p.pool == nil || (attempt == 0 && !p.cfg.AlwaysProxy) {
		return nil
	}
	desc, err := p.pool.Next(ctx)
	if err != nil {
		p.logger.Warn("proxy pool unavailable, using default egress", "error", err)
		return nil
	}
	return desc
}

// healthy runs the health check on pool descriptors when enabled.
func (p *Policy) healthy(ctx context.Context, desc *model.ProxyDescriptor) error {
	if desc == nil || !p.cfg.CheckHealth || p.checker == nil {
		return nil
	}
	return p.checker.Healthy(ctx, desc)
}

// rotate asks a rotating pool for a new exit address before a retry.
func (p *Policy) rotate(ctx context.Context) {
	r, ok := p.pool.(Rotator)
	if !ok {
		return
	}
	if err := r.Rotate(ctx); err != nil {
		p.logger.Warn("proxy rotation failed", "error", err)
	}
}

// proxyName returns a credential-free name of the descriptor.
func proxyName(desc *model.ProxyDescriptor) string {
	if desc == nil {
		return "direct"
	}
	return desc.String()
}
