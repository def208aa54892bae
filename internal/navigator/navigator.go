package navigator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/classify"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/wait"
)

// Default budgets and pauses.
const (
	// DefaultWidgetTimeout bounds the wait for the widget to become ready.
	DefaultWidgetTimeout = 30 * time.Second

	// DefaultCalendarTimeout bounds the wait for the calendar to show slots
	// or a no availability message.
	DefaultCalendarTimeout = 20 * time.Second

	// DefaultPauseMin and DefaultPauseMax bound the random pause between steps.
	DefaultPauseMin = 700 * time.Millisecond
	DefaultPauseMax = 1500 * time.Millisecond
)

// Config configures a Navigator. It is copied at construction.
type Config struct {
	// WidgetTimeout bounds the landing link search and the widget readiness wait.
	WidgetTimeout time.Duration

	// CalendarTimeout bounds the calendar poll.
	CalendarTimeout time.Duration

	// PollInterval is the interval of every bounded wait.
	PollInterval time.Duration

	// PauseMin and PauseMax bound the random pause between steps.
	// A zero PauseMax disables pauses.
	PauseMin time.Duration
	PauseMax time.Duration

	// Humanize moves the mouse and scrolls between steps when the driver supports it.
	Humanize bool

	// CaptureEvidence attaches a screenshot and the main markup to positive results.
	CaptureEvidence bool
}

// DefaultConfig returns the default navigator configuration.
func DefaultConfig() Config {
	return Config{
		WidgetTimeout:   DefaultWidgetTimeout,
		CalendarTimeout: DefaultCalendarTimeout,
		PollInterval:    wait.DefaultInterval,
		PauseMin:        DefaultPauseMin,
		PauseMax:        DefaultPauseMax,
		Humanize:        true,
		CaptureEvidence: true,
	}
}

// Step is one stage of a navigation run.
type Step interface {
	// Do advances the attempt. A returned error ends the run and is folded
	// into a TIMEOUT or BLOCKED result; a step that reaches a verdict sets it
	// on the attempt and returns nil.
	Do(ctx context.Context, a *Attempt) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Navigator runs the navigation state machine over browser sessions.
type Navigator struct {
	cfg        Config
	classifier *classify.Classifier
	logger     *slog.Logger
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Navigator) {
		n.logger = logger
	}
}

// New returns a navigator that classifies calendars with c.
// Zero budgets take their defaults.
func New(cfg Config, c *classify.Classifier, opts ...Option) *Navigator {
	if cfg.WidgetTimeout <= 0 {
		cfg.WidgetTimeout = DefaultWidgetTimeout
	}
	if cfg.CalendarTimeout <= 0 {
		cfg.CalendarTimeout = DefaultCalendarTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = wait.DefaultInterval
	}
	if cfg.PauseMin > cfg.PauseMax {
		cfg.PauseMin = cfg.PauseMax
	}
	if c == nil {
		c = classify.New(classify.DefaultConfig())
	}

	n := &Navigator{cfg: cfg, classifier: c}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = slog.Default()
	}
	return n
}

// Steps returns the steps a run over t executes, in order.
func (n *Navigator) Steps(t model.Target) []Step {
	steps := make([]Step, 0, 5)
	if t.Mode.NeedsLanding() {
		steps = append(steps, &landingStep{n: n})
	}
	steps = append(steps, &widgetStep{n: n}, &continueStep{n: n})
	if t.Mode.NeedsPanel() {
		steps = append(steps, &panelStep{n: n})
	}
	return append(steps, &calendarStep{n: n})
}

// Run navigates s through t's steps and returns the verdict. It never
// returns an error: failures are part of the verdict.
func (n *Navigator) Run(ctx context.Context, s browser.Session, t model.Target) model.Result {
	a := &Attempt{Target: t, Session: s, State: StateStart}
	n.execute(ctx, a, n.Steps(t))

	res, _ := a.Result()
	diag := res.Diagnostics
	diag.State = a.State.String()
	diag.NavigationFaults += a.Faults
	if diag.URL == "" {
		diag.URL = s.URL(ctx)
	}
	res = res.WithDiagnostics(diag)

	if res.Outcome == model.OutcomeSlotsFound && n.cfg.CaptureEvidence {
		res = res.WithEvidence(n.evidence(ctx, s))
	}

	n.logger.Debug("navigation finished",
		"target", t.Name,
		"outcome", res.Outcome.String(),
		"state", diag.State,
		"reason", diag.Reason,
		"steps", a.Steps,
	)
	return res
}

// execute runs steps in sequence until one fails or a verdict is reached.
func (n *Navigator) execute(ctx context.Context, a *Attempt, steps []Step) {
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			n.fold(ctx, a, err)
			return
		}
		if i > 0 {
			n.pause(ctx, a)
		}

		n.logger.Debug("executing step",
			"step", step.Name(),
			"target", a.Target.Name,
			"state", a.State.String(),
		)

		if err := step.Do(ctx, a); err != nil {
			n.logger.Debug("step failed",
				"step", step.Name(),
				"target", a.Target.Name,
				"error", err,
			)
			n.fold(ctx, a, fmt.Errorf("%s: %w", step.Name(), err))
			return
		}
		a.Steps = append(a.Steps, step.Name())

		if a.Done() {
			return
		}
	}
	if !a.Done() {
		n.fold(ctx, a, ErrNoVerdict)
	}
}

// fold turns a step failure into a terminal result: BLOCKED when the page
// left behind is blank, TIMEOUT otherwise.
func (n *Navigator) fold(ctx context.Context, a *Attempt, err error) {
	if browser.IsFault(err) {
		a.Faults++
	}
	if ctx.Err() != nil {
		diag := model.Diagnostics{Reason: "cancelled: " + err.Error()}
		a.finish(model.NewResult(model.OutcomeTimeout, diag))
		return
	}

	snap, cerr := n.classifier.Capture(ctx, a.Session)
	if cerr != nil {
		a.Faults++
		diag := model.Diagnostics{Reason: err.Error()}
		a.finish(model.NewResult(model.OutcomeTimeout, diag))
		return
	}

	diag := snap.Diagnostics()
	if n.classifier.IsBlank(snap) {
		diag.Reason = fmt.Sprintf("blank page after failure: %v", err)
		a.finish(model.NewResult(model.OutcomeBlocked, diag))
		return
	}
	diag.Reason = err.Error()
	a.finish(model.NewResult(model.OutcomeTimeout, diag))
}

// navigate loads url, moves to next and runs the blank check.
func (n *Navigator) navigate(ctx context.Context, a *Attempt, url string, next State) error {
	if err := a.Session.Navigate(ctx, url); err != nil {
		return err
	}
	a.State = next
	n.checkBlank(ctx, a)
	return nil
}

// checkBlank ends the run as BLOCKED when the current page is blank.
// A failed capture is counted and left to later steps.
func (n *Navigator) checkBlank(ctx context.Context, a *Attempt) {
	snap, err := n.classifier.Capture(ctx, a.Session)
	if err != nil {
		a.Faults++
		return
	}
	a.snapshot = &snap
	if n.classifier.IsBlank(snap) {
		n.logger.Debug("blank page", "target", a.Target.Name, "state", a.State.String(), "url", snap.URL)
		a.finish(n.classifier.Result(snap, n.classifier.Evaluate(snap)))
	}
}

// pause waits a random time between PauseMin and PauseMax and jitters the
// pointer when enabled.
func (n *Navigator) pause(ctx context.Context, a *Attempt) {
	if n.cfg.PauseMax <= 0 {
		return
	}
	d := n.cfg.PauseMin
	if span := n.cfg.PauseMax - n.cfg.PauseMin; span > 0 {
		d += rand.N(span)
	}
	_ = wait.Sleep(ctx, d)

	if !n.cfg.Humanize {
		return
	}
	if h, ok := a.Session.(browser.Humanizer); ok {
		if err := h.Humanize(ctx); err != nil {
			n.logger.Debug("humanize failed", "error", err)
		}
	}
}

// evidence captures a screenshot and the main document markup.
func (n *Navigator) evidence(ctx context.Context, s browser.Session) *model.Evidence {
	e := &model.Evidence{}
	if img, err := s.Screenshot(ctx); err == nil {
		e.Screenshot = img
	} else {
		n.logger.Debug("screenshot failed", "error", err)
	}
	if main, err := s.Main(ctx); err == nil {
		if markup, err := main.RawMarkup(ctx); err == nil {
			e.Markup = markup
		}
	}
	if e.Empty() {
		return nil
	}
	return e
}

// documents returns the session documents, counting a failure as a fault.
func (n *Navigator) documents(ctx context.Context, a *Attempt) []browser.Document {
	docs, err := browser.Documents(ctx, a.Session)
	if err != nil {
		a.Faults++
		return nil
	}
	return docs
}

// locate polls every document for the first element matching queries
// until found or the budget elapses.
func (n *Navigator) locate(ctx context.Context, a *Attempt, budget time.Duration, queries ...browser.Query) (browser.Element, error) {
	var found browser.Element
	err := wait.Until(ctx, budget, n.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		el, err := browser.LocateAny(ctx, n.documents(ctx, a), queries...)
		switch {
		case err == nil:
			found = el
			return true, nil
		case errors.Is(err, browser.ErrNotFound), browser.IsFault(err):
			return false, nil
		default:
			return false, err
		}
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
