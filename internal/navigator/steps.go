package navigator

import (
	"context"
	"errors"
	"fmt"

	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/wait"
)

// Selectors of the affordances each step looks for.
const (
	linkSelector     = "a, button"
	continueSelector = "button, input[type=submit], a, .btn, [role=button]"
	panelSelector    = "a, button, [role=button], li, div, span"
)

// landingStep loads the landing page and follows the link to the widget.
//
// Design decision: The link is searched by its visible text first and by
// an href containing the widget hint second, because consulates rename
// the button ("ELEGIR FECHA Y HORA", "ELEGIR FECHA") more often than they
// move the booking host.
type landingStep struct {
	n *Navigator
}

// Name returns the step name.
func (s *landingStep) Name() string {
	return "landing"
}

// Do executes the landing step.
func (s *landingStep) Do(ctx context.Context, a *Attempt) error {
	if err := s.n.navigate(ctx, a, a.Target.LandingURL, StateLandingReady); err != nil {
		return err
	}
	if a.Done() {
		return nil
	}

	el, err := s.n.locate(ctx, a, s.n.cfg.WidgetTimeout,
		browser.Query{Selector: linkSelector, Texts: a.Target.LinkTexts()},
		browser.Query{Selector: "a", Href: a.Target.Hint()},
	)
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			return ErrWidgetLinkNotFound
		}
		return err
	}

	if err := a.Session.Follow(ctx, el); err != nil {
		return err
	}
	a.State = StateWidgetRequested
	s.n.checkBlank(ctx, a)
	return nil
}

// widgetStep requests the widget in direct mode and waits until it shows
// a continue button, a no availability message or slots.
type widgetStep struct {
	n *Navigator
}

// Name returns the step name.
func (s *widgetStep) Name() string {
	return "widget"
}

// Do executes the widget step.
func (s *widgetStep) Do(ctx context.Context, a *Attempt) error {
	if !a.Target.Mode.NeedsLanding() {
		if err := s.n.navigate(ctx, a, a.Target.WidgetURL, StateWidgetRequested); err != nil {
			return err
		}
		if a.Done() {
			return nil
		}
	}

	c := s.n.classifier
	continueQuery := browser.Query{Selector: continueSelector, Texts: c.Config().Phrases.Continue}
	decided := false

	err := wait.Until(ctx, s.n.cfg.WidgetTimeout, s.n.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		snap, err := c.Capture(ctx, a.Session)
		if err != nil {
			return false, nil
		}
		a.snapshot = &snap
		// Widgets without a continue button open on the calendar. A
		// continue button next to visible slots leads away from them.
		if c.Evaluate(snap).Decisive() {
			decided = true
			return true, nil
		}
		_, err = browser.LocateAny(ctx, s.n.documents(ctx, a), continueQuery)
		return err == nil, nil
	})
	if err != nil {
		if errors.Is(err, wait.ErrTimeout) {
			return fmt.Errorf("%w within %s", ErrWidgetNotReady, s.n.cfg.WidgetTimeout)
		}
		return err
	}

	a.State = StateWidgetReady
	if decided && a.snapshot != nil {
		a.finish(c.Result(*a.snapshot, c.Evaluate(*a.snapshot)))
	}
	return nil
}

// continueStep activates the continue button. A missing button is not an error.
type continueStep struct {
	n *Navigator
}

// Name returns the step name.
func (s *continueStep) Name() string {
	return "continue"
}

// Do executes the continue step.
func (s *continueStep) Do(ctx context.Context, a *Attempt) error {
	q := browser.Query{Selector: continueSelector, Texts: s.n.classifier.Config().Phrases.Continue}
	el, err := browser.LocateAny(ctx, s.n.documents(ctx, a), q)
	switch {
	case err == nil:
		if err := el.Click(ctx); err != nil {
			return err
		}
	case errors.Is(err, browser.ErrNotFound):
		s.n.logger.Debug("no continue button", "target", a.Target.Name)
	default:
		return err
	}
	a.State = StateContinued
	return nil
}

// panelStep opens the panel named by the target's marker phrase. A missing
// marker is tolerated; some days the widget opens the panel by itself.
type panelStep struct {
	n *Navigator
}

// Name returns the step name.
func (s *panelStep) Name() string {
	return "panel"
}

// Do executes the panel step.
func (s *panelStep) Do(ctx context.Context, a *Attempt) error {
	q := browser.Query{Selector: panelSelector, Texts: []string{a.Target.PanelMarker}}
	el, err := browser.LocateAny(ctx, s.n.documents(ctx, a), q)
	switch {
	case err == nil:
		if err := el.Click(ctx); err != nil {
			return err
		}
	case errors.Is(err, browser.ErrNotFound):
		s.n.logger.Debug("panel marker not found", "target", a.Target.Name, "marker", a.Target.PanelMarker)
	default:
		return err
	}
	a.State = StatePanelOpened
	return nil
}

// calendarStep polls the calendar until it shows slots or a no
// availability message, then classifies what is on screen. An exhausted
// budget still classifies the last snapshot, which then reads as blank or
// ambiguous.
type calendarStep struct {
	n *Navigator
}

// Name returns the step name.
func (s *calendarStep) Name() string {
	return "calendar"
}

// Do executes the calendar step.
func (s *calendarStep) Do(ctx context.Context, a *Attempt) error {
	c := s.n.classifier
	captured := false

	err := wait.Until(ctx, s.n.cfg.CalendarTimeout, s.n.cfg.PollInterval, func(ctx context.Context) (bool, error) {
		snap, err := c.Capture(ctx, a.Session)
		if err != nil {
			return false, nil
		}
		captured = true
		a.snapshot = &snap
		return c.Evaluate(snap).Decisive(), nil
	})
	switch {
	case err == nil:
		a.State = StateCalendarReady
	case errors.Is(err, wait.ErrTimeout):
		if !captured {
			return fmt.Errorf("%w within %s", ErrCalendarNotReady, s.n.cfg.CalendarTimeout)
		}
	default:
		return err
	}

	snap := *a.snapshot
	a.finish(c.Result(snap, c.Evaluate(snap)))
	return nil
}
