package config

import (
	"fmt"
	"strings"

	"dario.cat/mergo"

	"github.com/nao1215/citawatch/internal/model"
)

// TargetConfig is one entry of the targets list.
type TargetConfig struct {
	// Name identifies the target in logs, notifications and history.
	Name string `yaml:"name,omitempty"`

	// Mode is direct-widget, via-landing-page or via-landing-with-panel.
	Mode string `yaml:"mode,omitempty"`

	// LandingURL is the consulate page that links to the widget.
	LandingURL string `yaml:"landingUrl,omitempty"`

	// WidgetURL is the booking widget itself.
	WidgetURL string `yaml:"widgetUrl,omitempty"`

	// PanelMarker is the phrase of the disclosure element to click.
	PanelMarker string `yaml:"panelMarker,omitempty"`

	// WidgetLinkTexts are the labels of the landing link that opens the widget.
	WidgetLinkTexts []string `yaml:"widgetLinkTexts,omitempty"`

	// WidgetHint is a host fragment identifying the widget link.
	WidgetHint string `yaml:"widgetHint,omitempty"`

	// Disabled keeps the entry in the file without watching it.
	Disabled bool `yaml:"disabled,omitempty"`
}

// Merged returns the entry with its empty fields filled from defaults.
//
// Design decision: mergo only fills zero values, so a field set on the
// entry always wins and lists are replaced, never concatenated.
func (tc TargetConfig) Merged(defaults TargetConfig) (TargetConfig, error) {
	out := tc
	defaults.Name = ""
	defaults.Disabled = false
	if err := mergo.Merge(&out, defaults); err != nil {
		return TargetConfig{}, fmt.Errorf("merge defaults into %q: %w", tc.Name, err)
	}
	return out, nil
}

// Target converts the entry into a validated model.Target.
// An empty mode means direct-widget.
func (tc TargetConfig) Target() (model.Target, error) {
	t := model.Target{
		Name:            strings.TrimSpace(tc.Name),
		LandingURL:      strings.TrimSpace(tc.LandingURL),
		WidgetURL:       strings.TrimSpace(tc.WidgetURL),
		PanelMarker:     strings.TrimSpace(tc.PanelMarker),
		WidgetLinkTexts: tc.WidgetLinkTexts,
		WidgetHint:      strings.TrimSpace(tc.WidgetHint),
	}
	if tc.Mode != "" {
		mode, err := model.ParseNavigationMode(tc.Mode)
		if err != nil {
			return model.Target{}, fmt.Errorf("target %q: %w", tc.Name, err)
		}
		t.Mode = mode
	}
	if err := t.Validate(); err != nil {
		return model.Target{}, fmt.Errorf("target %q: %w", tc.Name, err)
	}
	return t, nil
}

// Targets returns the enabled targets of the file with defaults applied.
// Names must be unique.
func (cf *File) Targets() ([]model.Target, error) {
	seen := make(map[string]bool, len(cf.TargetList))
	targets := make([]model.Target, 0, len(cf.TargetList))
	for _, tc := range cf.TargetList {
		if tc.Disabled {
			continue
		}
		merged, err := tc.Merged(cf.Defaults)
		if err != nil {
			return nil, err
		}
		t, err := merged.Target()
		if err != nil {
			return nil, err
		}
		key := strings.ToLower(t.Name)
		if seen[key] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateTarget, t.Name)
		}
		seen[key] = true
		targets = append(targets, t)
	}
	if len(targets) == 0 {
		return nil, ErrNoTarget
	}
	return targets, nil
}

// SelectTargets returns the targets named in names, in the order given.
// No names selects every target. Matching is case-insensitive.
func SelectTargets(targets []model.Target, names []string) ([]model.Target, error) {
	if len(names) == 0 {
		return targets, nil
	}
	selected := make([]model.Target, 0, len(names))
	for _, name := range names {
		found := false
		for _, t := range targets {
			if strings.EqualFold(t.Name, strings.TrimSpace(name)) {
				selected = append(selected, t)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
		}
	}
	return selected, nil
}
