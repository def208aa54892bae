package navigator

import (
	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/classify"
	"github.com/nao1215/citawatch/internal/model"
)

// State is a position in the navigation state machine.
type State int

const (
	// StateStart is the state before anything was loaded.
	StateStart State = iota
	// StateLandingReady means the landing page is loaded.
	StateLandingReady
	// StateWidgetRequested means the widget was navigated to or its link followed.
	StateWidgetRequested
	// StateWidgetReady means a continue button, a no availability message or slots are visible.
	StateWidgetReady
	// StateContinued means the continue step ran, whether a button was found or not.
	StateContinued
	// StatePanelOpened means the panel step ran, whether the marker was found or not.
	StatePanelOpened
	// StateCalendarReady means slots or a no availability message are visible.
	StateCalendarReady
)

// String returns the upper-case state name.
func (s State) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateLandingReady:
		return "LANDING_READY"
	case StateWidgetRequested:
		return "WIDGET_REQUESTED"
	case StateWidgetReady:
		return "WIDGET_READY"
	case StateContinued:
		return "CONTINUED"
	case StatePanelOpened:
		return "PANEL_OPENED"
	case StateCalendarReady:
		return "CALENDAR_READY"
	default:
		return "UNKNOWN"
	}
}

// Attempt is the mutable record a run's steps share.
// It plays the role a scan report plays in a pipeline: each step reads it
// and advances it.
type Attempt struct {
	// Target is the target being navigated.
	Target model.Target

	// Session is the browser session of this run.
	Session browser.Session

	// State is the last state reached.
	State State

	// Faults counts driver errors absorbed so far.
	Faults int

	// Steps lists the names of completed steps.
	Steps []string

	snapshot *classify.Snapshot
	result   *model.Result
}

// Done reports whether a terminal result was set.
func (a *Attempt) Done() bool {
	return a.result != nil
}

// Result returns the terminal result, if any.
func (a *Attempt) Result() (model.Result, bool) {
	if a.result == nil {
		return model.Result{}, false
	}
	return *a.result, true
}

// finish sets the terminal result. The first result wins.
func (a *Attempt) finish(r model.Result) {
	if a.result == nil {
		a.result = &r
	}
}
