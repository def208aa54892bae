package model

import (
	"errors"
	"testing"
)

// TestParseNavigationMode tests parsing of configuration mode names.
func TestParseNavigationMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    NavigationMode
		wantErr bool
	}{
		{input: "direct-widget", want: ModeDirectWidget},
		{input: "DIRECT_WIDGET", want: ModeDirectWidget},
		{input: "direct", want: ModeDirectWidget},
		{input: "via-landing-page", want: ModeViaLandingPage},
		{input: "landing", want: ModeViaLandingPage},
		{input: "via_landing_with_panel", want: ModeViaLandingWithPanel},
		{input: "panel", want: ModeViaLandingWithPanel},
		{input: "carrier-pigeon", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseNavigationMode(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownNavigationMode) {
					t.Errorf("expected ErrUnknownNavigationMode, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

// TestNavigationModeText tests the text round trip used by YAML and JSON.
func TestNavigationModeText(t *testing.T) {
	t.Parallel()

	for _, m := range []NavigationMode{ModeDirectWidget, ModeViaLandingPage, ModeViaLandingWithPanel} {
		text, err := m.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText: %v", err)
		}
		var back NavigationMode
		if err := back.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if back != m {
			t.Errorf("round trip of %s gave %s", m, back)
		}
	}

	if NavigationMode(42).String() != "unknown" {
		t.Error("expected unknown for out of range mode")
	}
}

// TestTargetValidate tests the per-mode required fields.
func TestTargetValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		target  Target
		wantErr error
	}{
		{
			name: "direct widget with widget URL is valid",
			target: Target{
				Name:      "Widget",
				Mode:      ModeDirectWidget,
				WidgetURL: "https://www.citaconsular.es/es/hosteds/widgetdefault/abc",
			},
		},
		{
			name:    "direct widget without widget URL is rejected",
			target:  Target{Name: "Widget", Mode: ModeDirectWidget},
			wantErr: ErrMissingWidgetURL,
		},
		{
			name: "landing page with landing URL is valid",
			target: Target{
				Name:       "Monterrey",
				Mode:       ModeViaLandingPage,
				LandingURL: "https://www.exteriores.gob.es/Consulados/monterrey/es/Paginas/index.aspx",
			},
		},
		{
			name:    "landing page without landing URL is rejected",
			target:  Target{Name: "Monterrey", Mode: ModeViaLandingPage},
			wantErr: ErrMissingLandingURL,
		},
		{
			name: "panel mode without marker is rejected",
			target: Target{
				Name:       "CDMX",
				Mode:       ModeViaLandingWithPanel,
				LandingURL: "https://www.exteriores.gob.es/Consulados/mexico/es/Paginas/index.aspx",
			},
			wantErr: ErrMissingPanelMarker,
		},
		{
			name: "panel mode with marker is valid",
			target: Target{
				Name:        "CDMX",
				Mode:        ModeViaLandingWithPanel,
				LandingURL:  "https://www.exteriores.gob.es/Consulados/mexico/es/Paginas/index.aspx",
				PanelMarker: "Cambiar de día",
			},
		},
		{
			name:    "empty name is rejected",
			target:  Target{Mode: ModeDirectWidget, WidgetURL: "https://example.com"},
			wantErr: ErrEmptyTargetName,
		},
		{
			name:    "relative URL is rejected",
			target:  Target{Name: "x", Mode: ModeDirectWidget, WidgetURL: "/widget"},
			wantErr: ErrInvalidURL,
		},
		{
			name:    "unknown mode is rejected",
			target:  Target{Name: "x", Mode: NavigationMode(9)},
			wantErr: ErrUnknownNavigationMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.target.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestTargetURLs tests StartURL, AccessURL and the defaults helpers.
func TestTargetURLs(t *testing.T) {
	t.Parallel()

	landing := Target{
		Name:       "Monterrey",
		Mode:       ModeViaLandingPage,
		LandingURL: "https://landing.example/",
	}
	if landing.StartURL() != "https://landing.example/" {
		t.Errorf("unexpected start URL %q", landing.StartURL())
	}
	if landing.AccessURL() != "https://landing.example/" {
		t.Errorf("unexpected access URL %q", landing.AccessURL())
	}
	if landing.Hint() != DefaultWidgetHint {
		t.Errorf("unexpected hint %q", landing.Hint())
	}
	if len(landing.LinkTexts()) != len(DefaultWidgetLinkTexts) {
		t.Errorf("expected default link texts, got %v", landing.LinkTexts())
	}

	landing.WidgetURL = "https://widget.example/"
	if landing.AccessURL() != "https://widget.example/" {
		t.Errorf("expected widget URL to be preferred, got %q", landing.AccessURL())
	}
	if landing.StartURL() != "https://landing.example/" {
		t.Errorf("landing modes must start on the landing page, got %q", landing.StartURL())
	}
}
