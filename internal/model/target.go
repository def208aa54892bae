package model

import (
	"fmt"
	"net/url"
	"strings"
)

// NavigationMode tells the navigator how a target's booking calendar is reached.
type NavigationMode int

const (
	// ModeDirectWidget opens the booking widget URL directly.
	ModeDirectWidget NavigationMode = iota

	// ModeViaLandingPage opens a public landing page first and follows the
	// link that launches the booking widget.
	ModeViaLandingPage

	// ModeViaLandingWithPanel is ModeViaLandingPage plus an extra disclosure
	// panel that must be clicked away before the calendar renders.
	ModeViaLandingWithPanel
)

// String returns the configuration name of the mode.
func (m NavigationMode) String() string {
	switch m {
	case ModeDirectWidget:
		return "direct-widget"
	case ModeViaLandingPage:
		return "via-landing-page"
	case ModeViaLandingWithPanel:
		return "via-landing-with-panel"
	default:
		return "unknown"
	}
}

// NeedsLanding reports whether the mode starts on a landing page.
func (m NavigationMode) NeedsLanding() bool {
	return m == ModeViaLandingPage || m == ModeViaLandingWithPanel
}

// NeedsPanel reports whether the mode requires the disclosure panel click.
func (m NavigationMode) NeedsPanel() bool {
	return m == ModeViaLandingWithPanel
}

// MarshalText implements encoding.TextMarshaler.
func (m NavigationMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *NavigationMode) UnmarshalText(text []byte) error {
	parsed, err := ParseNavigationMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseNavigationMode converts a configuration string into a NavigationMode.
// Matching is case-insensitive and accepts underscores in place of dashes.
// The short aliases "direct", "landing" and "panel" are accepted as well.
func ParseNavigationMode(s string) (NavigationMode, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
	switch normalized {
	case "direct-widget", "direct", "widget":
		return ModeDirectWidget, nil
	case "via-landing-page", "landing":
		return ModeViaLandingPage, nil
	case "via-landing-with-panel", "panel":
		return ModeViaLandingWithPanel, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownNavigationMode, s)
	}
}

// Default values applied to targets that leave the optional fields empty.
var (
	// DefaultWidgetLinkTexts are the anchor labels that launch the widget
	// from a consulate landing page.
	DefaultWidgetLinkTexts = []string{"ELEGIR FECHA Y HORA", "ELEGIR FECHA"}

	// DefaultWidgetHint is a fragment of the widget host used to recognize
	// the widget link when its label differs.
	DefaultWidgetHint = "citaconsular.es"
)

// Target is one monitored booking flow.
// A Target is immutable once loaded; every component receives it by value.
type Target struct {
	// Name identifies the target in logs, notifications and history.
	Name string `json:"name"`

	// Mode selects the navigation path to the calendar.
	Mode NavigationMode `json:"mode"`

	// LandingURL is the public page that links to the widget.
	// Required for landing modes.
	LandingURL string `json:"landingUrl,omitempty"`

	// WidgetURL is the booking widget itself.
	// Required for ModeDirectWidget, optional otherwise.
	WidgetURL string `json:"widgetUrl,omitempty"`

	// PanelMarker is the phrase of the disclosure element to click.
	// Required for ModeViaLandingWithPanel.
	PanelMarker string `json:"panelMarker,omitempty"`

	// WidgetLinkTexts are the labels of the landing page link that opens
	// the widget. Empty means DefaultWidgetLinkTexts.
	WidgetLinkTexts []string `json:"widgetLinkTexts,omitempty"`

	// WidgetHint is a host fragment identifying the widget link by its href.
	// Empty means DefaultWidgetHint.
	WidgetHint string `json:"widgetHint,omitempty"`
}

// Validate checks that the fields required by the target's mode are present.
// It is called once at load time so that the engine never sees a half
// configured target.
func (t Target) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrEmptyTargetName
	}

	switch t.Mode {
	case ModeDirectWidget:
		if t.WidgetURL == "" {
			return fmt.Errorf("target %q: %w", t.Name, ErrMissingWidgetURL)
		}
	case ModeViaLandingPage, ModeViaLandingWithPanel:
		if t.LandingURL == "" {
			return fmt.Errorf("target %q: %w", t.Name, ErrMissingLandingURL)
		}
		if t.Mode == ModeViaLandingWithPanel && strings.TrimSpace(t.PanelMarker) == "" {
			return fmt.Errorf("target %q: %w", t.Name, ErrMissingPanelMarker)
		}
	default:
		return fmt.Errorf("target %q: %w", t.Name, ErrUnknownNavigationMode)
	}

	for _, raw := range []string{t.LandingURL, t.WidgetURL} {
		if raw == "" {
			continue
		}
		if !isHTTPURL(raw) {
			return fmt.Errorf("target %q: %w: %s", t.Name, ErrInvalidURL, raw)
		}
	}

	return nil
}

// StartURL returns the first URL the navigator opens.
func (t Target) StartURL() string {
	if t.Mode.NeedsLanding() {
		return t.LandingURL
	}
	return t.WidgetURL
}

// AccessURL returns the link an operator should open to book.
// The widget URL is preferred because it skips the landing page.
func (t Target) AccessURL() string {
	if t.WidgetURL != "" {
		return t.WidgetURL
	}
	return t.LandingURL
}

// LinkTexts returns the configured widget link labels or the defaults.
func (t Target) LinkTexts() []string {
	if len(t.WidgetLinkTexts) > 0 {
		return t.WidgetLinkTexts
	}
	return DefaultWidgetLinkTexts
}

// Hint returns the configured widget hint or the default.
func (t Target) Hint() string {
	if t.WidgetHint != "" {
		return t.WidgetHint
	}
	return DefaultWidgetHint
}

// isHTTPURL reports whether raw parses as an absolute http or https URL.
func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
