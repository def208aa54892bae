package gate

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/notify"
)

// DefaultBlockThreshold is the number of consecutive blocked checks that
// raise a probable-block alert.
const DefaultBlockThreshold = 2

// Config configures a Gate. It is copied at construction.
type Config struct {
	// BlockThreshold is the consecutive BLOCKED count that raises an alert.
	BlockThreshold int

	// SendEvidence attaches the screenshot and markup to slot alerts.
	SendEvidence bool
}

// DefaultConfig returns the default gate configuration.
func DefaultConfig() Config {
	return Config{
		BlockThreshold: DefaultBlockThreshold,
		SendEvidence:   true,
	}
}

// TargetState is the per-target memory of the gate.
type TargetState struct {
	// LastSignature is the signature of the last notified slot set.
	LastSignature model.Signature

	// ConsecutiveBlocked counts BLOCKED results since the last other outcome
	// or alert.
	ConsecutiveBlocked int
}

// Action is what the gate did with a result.
type Action int

const (
	// ActionNone means the result needed no alert.
	ActionNone Action = iota

	// ActionNotified means a slot alert was sent.
	ActionNotified

	// ActionSuppressed means the slot set was already notified.
	ActionSuppressed

	// ActionBlockAlert means a probable-block alert was sent.
	ActionBlockAlert
)

// String returns the action name used in logs and history.
func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionNotified:
		return "notified"
	case ActionSuppressed:
		return "suppressed"
	case ActionBlockAlert:
		return "block_alert"
	default:
		return "unknown"
	}
}

// Decision describes how a result was handled.
type Decision struct {
	Action Action

	// Signature is the signature of the result's labels, if any.
	Signature model.Signature

	// State is the target's state after the result.
	State TargetState
}

// Gate deduplicates slot alerts and raises probable-block alerts.
type Gate struct {
	cfg     Config
	channel notify.Channel
	logger  *slog.Logger

	mu     sync.Mutex
	states map[string]TargetState
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// New returns a gate sending alerts to ch.
func New(cfg Config, ch notify.Channel, opts ...Option) (*Gate, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	if cfg.BlockThreshold < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidThreshold, cfg.BlockThreshold)
	}

	g := &Gate{
		cfg:     cfg,
		channel: ch,
		states:  make(map[string]TargetState),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	return g, nil
}

// Observe records r for t and sends the alerts it calls for.
// Channel failures are logged and never change the decision.
func (g *Gate) Observe(ctx context.Context, t model.Target, r model.Result) Decision {
	g.mu.Lock()
	st := g.states[t.Name]
	d := Decision{Signature: r.Signature()}

	switch r.Outcome {
	case model.OutcomeSlotsFound:
		st.ConsecutiveBlocked = 0
		if d.Signature == st.LastSignature {
			d.Action = ActionSuppressed
		} else {
			st.LastSignature = d.Signature
			d.Action = ActionNotified
		}
	case model.OutcomeBlocked:
		st.ConsecutiveBlocked++
		if st.ConsecutiveBlocked >= g.cfg.BlockThreshold {
			d.Action = ActionBlockAlert
		}
	default:
		st.ConsecutiveBlocked = 0
	}

	blocked := st.ConsecutiveBlocked
	if d.Action == ActionBlockAlert {
		st.ConsecutiveBlocked = 0
	}
	g.states[t.Name] = st
	d.State = st
	g.mu.Unlock()

	switch d.Action {
	case ActionNotified:
		g.logger.Info("new slots, notifying",
			"target", t.Name,
			"labels", r.Labels,
			"signature", d.Signature.Short(),
		)
		g.notifySlots(ctx, t, r)
	case ActionSuppressed:
		g.logger.Info("slots unchanged, alert suppressed",
			"target", t.Name,
			"signature", d.Signature.Short(),
		)
	case ActionBlockAlert:
		g.logger.Warn("probable block", "target", t.Name, "consecutive", blocked)
		g.logFailure(t, "text", g.channel.SendText(ctx, notify.BlockMessage(t, blocked, r)))
	}
	return d
}

// notifySlots sends the slot summary and, when enabled, the evidence.
func (g *Gate) notifySlots(ctx context.Context, t model.Target, r model.Result) {
	g.logFailure(t, "text", g.channel.SendText(ctx, notify.HitMessage(t, r)))

	if !g.cfg.SendEvidence || r.Evidence.Empty() {
		return
	}
	caption := notify.EvidenceCaption(t, r)
	if len(r.Evidence.Screenshot) > 0 {
		g.logFailure(t, "photo", g.channel.SendPhoto(ctx, r.Evidence.Screenshot, caption))
	}
	if r.Evidence.Markup != "" {
		g.logFailure(t, "document", g.channel.SendDocument(ctx, []byte(r.Evidence.Markup), notify.EvidenceFilename(t), caption))
	}
}

// logFailure logs a channel failure.
func (g *Gate) logFailure(t model.Target, kind string, err error) {
	if err != nil {
		g.logger.Error("notification failed", "target", t.Name, "kind", kind, "error", err)
	}
}

// State returns the state of the named target.
func (g *Gate) State(name string) (TargetState, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.states[name]
	return st, ok
}
