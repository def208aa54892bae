package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nao1215/citawatch/internal/gate"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/retry"
	"github.com/nao1215/citawatch/internal/wait"
)

// Default timings.
const (
	DefaultHitCooldown   = 5 * time.Minute
	DefaultBlockCooldown = 20 * time.Second
	DefaultErrorCooldown = 2 * time.Minute
	DefaultRoundBase     = 6 * time.Minute
	DefaultRoundJitter   = time.Minute
	DefaultRoundMin      = 30 * time.Second
)

// Config configures a Scheduler. It is copied at construction.
type Config struct {
	// HitCooldown follows a SLOTS_FOUND result.
	HitCooldown time.Duration

	// BlockCooldown follows a BLOCKED result.
	BlockCooldown time.Duration

	// ErrorCooldown follows a fault or panic.
	ErrorCooldown time.Duration

	// RoundBase, RoundJitter and RoundMin bound the delay between rounds.
	RoundBase   time.Duration
	RoundJitter time.Duration
	RoundMin    time.Duration

	// MaxRounds caps the number of rounds; zero runs until cancelled.
	MaxRounds int
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		HitCooldown:   DefaultHitCooldown,
		BlockCooldown: DefaultBlockCooldown,
		ErrorCooldown: DefaultErrorCooldown,
		RoundBase:     DefaultRoundBase,
		RoundJitter:   DefaultRoundJitter,
		RoundMin:      DefaultRoundMin,
	}
}

// Validate rejects negative values.
func (c Config) Validate() error {
	for name, d := range map[string]time.Duration{
		"hit cool-down":   c.HitCooldown,
		"block cool-down": c.BlockCooldown,
		"error cool-down": c.ErrorCooldown,
		"round base":      c.RoundBase,
		"round jitter":    c.RoundJitter,
		"round minimum":   c.RoundMin,
	} {
		if d < 0 {
			return fmt.Errorf("%w: negative %s %s", ErrInvalidConfig, name, d)
		}
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("%w: negative max rounds %d", ErrInvalidConfig, c.MaxRounds)
	}
	return nil
}

// RoundDelayBounds returns the inclusive range of the delay between rounds.
func (c Config) RoundDelayBounds() (lo, hi time.Duration) {
	lo = max(c.RoundMin, c.RoundBase-c.RoundJitter)
	hi = max(lo, c.RoundBase+c.RoundJitter)
	return lo, hi
}

// Checker checks one target; retry.Policy implements it.
type Checker interface {
	Check(ctx context.Context, t model.Target) (retry.Report, error)
}

// Observer receives every successful check; gate.Gate implements it.
type Observer interface {
	Observe(ctx context.Context, t model.Target, r model.Result) gate.Decision
}

// Observation is the record of one target check.
type Observation struct {
	Round    int
	Target   model.Target
	Report   retry.Report
	Decision gate.Decision
	Err      error
	Started  time.Time
	Duration time.Duration
}

// Recorder persists or prints observations.
type Recorder interface {
	Record(ctx context.Context, obs Observation) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, obs Observation) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, obs Observation) error {
	return f(ctx, obs)
}

// Sleeper waits between checks and rounds.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// contextSleeper sleeps with wait.Sleep.
type contextSleeper struct{}

func (contextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return wait.Sleep(ctx, d)
}

// Scheduler runs monitoring rounds.
type Scheduler struct {
	cfg       Config
	targets   []model.Target
	checker   Checker
	observer  Observer
	recorders []Recorder
	sleeper   Sleeper
	logger    *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithObserver sets the notification gate. Without one no alert is sent.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		s.observer = o
	}
}

// WithRecorder adds a recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Scheduler) {
		s.recorders = append(s.recorders, r)
	}
}

// WithSleeper replaces the sleeper.
func WithSleeper(sl Sleeper) Option {
	return func(s *Scheduler) {
		s.sleeper = sl
	}
}

// New returns a scheduler over targets.
func New(cfg Config, targets []model.Target, checker Checker, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if checker == nil {
		return nil, ErrNilChecker
	}

	s := &Scheduler{
		cfg:     cfg,
		targets: append([]model.Target(nil), targets...),
		checker: checker,
		sleeper: contextSleeper{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Run executes rounds until MaxRounds is reached or ctx is cancelled.
// Cancellation is a clean stop and returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	for round := 1; s.cfg.MaxRounds == 0 || round <= s.cfg.MaxRounds; round++ {
		final := s.cfg.MaxRounds > 0 && round == s.cfg.MaxRounds

		s.logger.Info("round started", "round", round, "targets", len(s.targets))
		if err := s.round(ctx, round, final); err != nil {
			return stopped(err)
		}
		if final {
			break
		}

		delay := s.RoundDelay()
		s.logger.Info("round finished", "round", round, "next_in", delay.Round(time.Second))
		if err := s.sleeper.Sleep(ctx, delay); err != nil {
			return stopped(err)
		}
	}
	return nil
}

// stopped maps context cancellation to a clean stop.
func stopped(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// round checks every target once. It returns an error only when ctx ends.
func (s *Scheduler) round(ctx context.Context, round int, final bool) error {
	for i, t := range s.targets {
		if err := ctx.Err(); err != nil {
			return err
		}

		obs := s.check(ctx, round, t)
		if err := ctx.Err(); err != nil {
			return err
		}
		s.record(ctx, obs)

		if final && i == len(s.targets)-1 {
			continue
		}
		if d, why := s.cooldown(obs); d > 0 {
			s.logger.Info("cooling down", "target", t.Name, "after", why, "for", d)
			if err := s.sleeper.Sleep(ctx, d); err != nil {
				return err
			}
		}
	}
	return nil
}

// check runs the checker and the observer for t, turning a panic into an
// error.
func (s *Scheduler) check(ctx context.Context, round int, t model.Target) (obs Observation) {
	obs = Observation{Round: round, Target: t, Started: time.Now()}
	defer func() {
		if r := recover(); r != nil {
			obs.Err = fmt.Errorf("%w %s: %v", ErrPanic, t.Name, r)
		}
		obs.Duration = time.Since(obs.Started)
		if obs.Err != nil && ctx.Err() == nil {
			s.logger.Error("check failed", "target", t.Name, "round", round, "error", obs.Err)
		}
	}()

	rep, err := s.checker.Check(ctx, t)
	obs.Report = rep
	if err != nil {
		obs.Err = err
		return obs
	}

	res := rep.Result
	s.logger.Info("check finished",
		"target", t.Name,
		"outcome", res.Outcome.String(),
		"labels", res.Labels,
		"attempts", rep.Attempts,
		"reason", res.Diagnostics.Reason,
	)
	if s.observer != nil {
		obs.Decision = s.observer.Observe(ctx, t, res)
	}
	return obs
}

// record hands obs to every recorder, logging failures.
func (s *Scheduler) record(ctx context.Context, obs Observation) {
	for _, r := range s.recorders {
		if err := r.Record(ctx, obs); err != nil {
			s.logger.Warn("record observation", "target", obs.Target.Name, "error", err)
		}
	}
}

// cooldown returns the pause owed after obs and its cause.
func (s *Scheduler) cooldown(obs Observation) (time.Duration, string) {
	switch {
	case obs.Err != nil:
		return s.cfg.ErrorCooldown, "error"
	case obs.Report.Result.Outcome == model.OutcomeSlotsFound:
		return s.cfg.HitCooldown, "slots"
	case obs.Report.Result.Outcome == model.OutcomeBlocked:
		return s.cfg.BlockCooldown, "block"
	default:
		return 0, ""
	}
}

// RoundDelay draws the delay before the next round.
func (s *Scheduler) RoundDelay() time.Duration {
	lo, hi := s.cfg.RoundDelayBounds()
	if hi == lo {
		return lo
	}
	return lo + rand.N(hi-lo+1)
}

// Targets returns the monitored targets in round order.
func (s *Scheduler) Targets() []model.Target {
	return append([]model.Target(nil), s.targets...)
}
