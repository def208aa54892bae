package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/nao1215/citawatch/internal/gate"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/notify"
	"github.com/nao1215/citawatch/internal/retry"
	"github.com/nao1215/citawatch/internal/scheduler"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// step is one scripted check.
type step struct {
	result model.Result
	err    error
	panic  string
}

// scriptedChecker replays steps per target; an exhausted script yields NO_SLOTS.
type scriptedChecker struct {
	mu      sync.Mutex
	scripts map[string][]step
	calls   []string
}

func (c *scriptedChecker) Check(_ context.Context, t model.Target) (retry.Report, error) {
	c.mu.Lock()
	c.calls = append(c.calls, t.Name)
	var st step
	if s := c.scripts[t.Name]; len(s) > 0 {
		st, c.scripts[t.Name] = s[0], s[1:]
	} else {
		st.result = model.NewResult(model.OutcomeNoSlots, model.Diagnostics{})
	}
	c.mu.Unlock()

	if st.panic != "" {
		panic(st.panic)
	}
	if st.err != nil {
		return retry.Report{Attempts: 1}, st.err
	}
	return retry.Report{Result: st.result, Attempts: 1}, nil
}

// recordingSleeper records waits without sleeping; onSleep may cancel.
type recordingSleeper struct {
	mu      sync.Mutex
	waits   []time.Duration
	onSleep func(n int)
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	n := len(s.waits)
	s.mu.Unlock()
	if s.onSleep != nil {
		s.onSleep(n)
	}
	return ctx.Err()
}

// observations collects recorded observations.
type observations struct {
	mu   sync.Mutex
	list []scheduler.Observation
}

func (o *observations) Record(_ context.Context, obs scheduler.Observation) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.list = append(o.list, obs)
	return nil
}

func target(name string) model.Target {
	return model.Target{Name: name, Mode: model.ModeDirectWidget, WidgetURL: "https://example.org/" + name}
}

func testConfig(rounds int) scheduler.Config {
	return scheduler.Config{
		HitCooldown:   5 * time.Minute,
		BlockCooldown: 20 * time.Second,
		ErrorCooldown: 2 * time.Minute,
		RoundBase:     6 * time.Minute,
		RoundJitter:   time.Minute,
		RoundMin:      30 * time.Second,
		MaxRounds:     rounds,
	}
}

// TestRunCooldowns tests the per-outcome pauses.
func TestRunCooldowns(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("hit and block cool-downs, none after the last target", func(t *testing.T) {
		t.Parallel()

		checker := &scriptedChecker{scripts: map[string][]step{
			"Lima":   {{result: model.SlotsFound([]string{"09:00"}, model.Diagnostics{})}},
			"Bogota": {{result: model.NewResult(model.OutcomeBlocked, model.Diagnostics{})}},
			"CDMX":   {{result: model.SlotsFound([]string{"10:00"}, model.Diagnostics{})}},
		}}
		sleeper := &recordingSleeper{}
		obs := &observations{}

		s, err := scheduler.New(testConfig(1),
			[]model.Target{target("Lima"), target("Bogota"), target("Madrid"), target("CDMX")},
			checker, scheduler.WithSleeper(sleeper), scheduler.WithRecorder(obs))
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}

		if diff := cmp.Diff([]string{"Lima", "Bogota", "Madrid", "CDMX"}, checker.calls); diff != "" {
			t.Errorf("order mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]time.Duration{5 * time.Minute, 20 * time.Second}, sleeper.waits); diff != "" {
			t.Errorf("waits mismatch (-want +got):\n%s", diff)
		}
		if len(obs.list) != 4 {
			t.Errorf("recorded %d observations", len(obs.list))
		}
	})

	t.Run("errors and panics are contained", func(t *testing.T) {
		t.Parallel()

		errLaunch := errors.New("launch chromium")
		checker := &scriptedChecker{scripts: map[string][]step{
			"Lima":   {{panic: "nil map"}},
			"Bogota": {{err: errLaunch}},
		}}
		sleeper := &recordingSleeper{}
		obs := &observations{}

		s, err := scheduler.New(testConfig(1),
			[]model.Target{target("Lima"), target("Bogota"), target("CDMX")},
			checker, scheduler.WithSleeper(sleeper), scheduler.WithRecorder(obs))
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}

		if !errors.Is(obs.list[0].Err, scheduler.ErrPanic) {
			t.Errorf("expected ErrPanic, got %v", obs.list[0].Err)
		}
		if !errors.Is(obs.list[1].Err, errLaunch) {
			t.Errorf("expected the launch error, got %v", obs.list[1].Err)
		}
		if obs.list[2].Err != nil || obs.list[2].Report.Result.Outcome != model.OutcomeNoSlots {
			t.Errorf("unexpected last observation %+v", obs.list[2])
		}
		if diff := cmp.Diff([]time.Duration{2 * time.Minute, 2 * time.Minute}, sleeper.waits); diff != "" {
			t.Errorf("waits mismatch (-want +got):\n%s", diff)
		}
	})
}

// TestRunRounds tests the round loop.
func TestRunRounds(t *testing.T) {
	t.Parallel()

	t.Run("rounds are separated by a bounded random delay", func(t *testing.T) {
		t.Parallel()

		checker := &scriptedChecker{}
		sleeper := &recordingSleeper{}
		s, err := scheduler.New(testConfig(3), []model.Target{target("Lima")}, checker, scheduler.WithSleeper(sleeper))
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(context.Background()); err != nil {
			t.Fatal(err)
		}

		if len(checker.calls) != 3 {
			t.Errorf("checks = %d", len(checker.calls))
		}
		if len(sleeper.waits) != 2 {
			t.Fatalf("waits = %v", sleeper.waits)
		}
		for _, w := range sleeper.waits {
			if w < 5*time.Minute || w > 7*time.Minute {
				t.Errorf("round delay %v out of [5m, 7m]", w)
			}
		}
	})

	t.Run("cancellation stops cleanly between waits", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		checker := &scriptedChecker{}
		sleeper := &recordingSleeper{onSleep: func(n int) {
			if n == 2 {
				cancel()
			}
		}}
		s, err := scheduler.New(testConfig(0), []model.Target{target("Lima")}, checker, scheduler.WithSleeper(sleeper))
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(checker.calls) != 2 {
			t.Errorf("checks = %d", len(checker.calls))
		}
	})

	t.Run("cancelled before the first round", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		checker := &scriptedChecker{}
		s, err := scheduler.New(testConfig(0), []model.Target{target("Lima")}, checker)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Run(ctx); err != nil {
			t.Fatalf("Run: %v", err)
		}
		if len(checker.calls) != 0 {
			t.Errorf("checks = %d", len(checker.calls))
		}
	})
}

// sink counts texts sent by the gate.
type sink struct {
	mu    sync.Mutex
	texts []string
}

func (s *sink) SendText(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *sink) SendPhoto(context.Context, []byte, string) error { return nil }

func (s *sink) SendDocument(context.Context, []byte, string, string) error { return nil }

var _ notify.Channel = (*sink)(nil)

// TestRunWithGate tests deduplication across rounds.
func TestRunWithGate(t *testing.T) {
	t.Parallel()

	checker := &scriptedChecker{scripts: map[string][]step{
		"Lima": {
			{result: model.SlotsFound([]string{"09:00"}, model.Diagnostics{})},
			{result: model.SlotsFound([]string{"09:00"}, model.Diagnostics{})},
			{result: model.SlotsFound([]string{"09:00", "11:00"}, model.Diagnostics{})},
		},
	}}
	ch := &sink{}
	g, err := gate.New(gate.DefaultConfig(), ch)
	if err != nil {
		t.Fatal(err)
	}
	obs := &observations{}

	s, err := scheduler.New(testConfig(3), []model.Target{target("Lima")}, checker,
		scheduler.WithSleeper(&recordingSleeper{}),
		scheduler.WithObserver(g),
		scheduler.WithRecorder(obs))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	var actions []gate.Action
	for _, o := range obs.list {
		actions = append(actions, o.Decision.Action)
	}
	want := []gate.Action{gate.ActionNotified, gate.ActionSuppressed, gate.ActionNotified}
	if diff := cmp.Diff(want, actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
	if len(ch.texts) != 2 {
		t.Errorf("sent %d alerts", len(ch.texts))
	}
}

// TestRoundDelayBounds tests the inter-round delay range.
func TestRoundDelayBounds(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		base   time.Duration
		jitter time.Duration
		min    time.Duration
		lo, hi time.Duration
	}{
		{"defaults", 6 * time.Minute, time.Minute, 30 * time.Second, 5 * time.Minute, 7 * time.Minute},
		{"minimum raises the lower bound", 40 * time.Second, 20 * time.Second, 30 * time.Second, 30 * time.Second, time.Minute},
		{"jitter larger than base", 10 * time.Second, time.Minute, 30 * time.Second, 30 * time.Second, 70 * time.Second},
		{"minimum above the whole range", 10 * time.Second, 0, time.Minute, time.Minute, time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			cfg := scheduler.Config{RoundBase: tc.base, RoundJitter: tc.jitter, RoundMin: tc.min}
			lo, hi := cfg.RoundDelayBounds()
			if lo != tc.lo || hi != tc.hi {
				t.Errorf("bounds = [%v, %v], want [%v, %v]", lo, hi, tc.lo, tc.hi)
			}

			s, err := scheduler.New(cfg, []model.Target{target("Lima")}, &scriptedChecker{})
			if err != nil {
				t.Fatal(err)
			}
			for range 200 {
				if d := s.RoundDelay(); d < lo || d > hi {
					t.Fatalf("RoundDelay() = %v out of [%v, %v]", d, lo, hi)
				}
			}
		})
	}
}

// TestNew tests constructor validation.
func TestNew(t *testing.T) {
	t.Parallel()

	checker := &scriptedChecker{}
	targets := []model.Target{target("Lima")}

	testCases := []struct {
		name    string
		cfg     scheduler.Config
		targets []model.Target
		checker scheduler.Checker
		wantErr error
	}{
		{"defaults are valid", scheduler.DefaultConfig(), targets, checker, nil},
		{"no targets", scheduler.DefaultConfig(), nil, checker, scheduler.ErrNoTargets},
		{"nil checker", scheduler.DefaultConfig(), targets, nil, scheduler.ErrNilChecker},
		{"negative cool-down", scheduler.Config{HitCooldown: -time.Second}, targets, checker, scheduler.ErrInvalidConfig},
		{"negative rounds", scheduler.Config{MaxRounds: -1}, targets, checker, scheduler.ErrInvalidConfig},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, err := scheduler.New(tc.cfg, tc.targets, tc.checker)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if err == nil && len(s.Targets()) != 1 {
				t.Errorf("targets = %v", s.Targets())
			}
		})
	}
}
