package model

import "errors"

// Target validation errors.
// These are returned by Target.Validate and ParseNavigationMode so that the
// configuration layer can report exactly which field is wrong.
var (
	// ErrEmptyTargetName is returned when a target has no name.
	ErrEmptyTargetName = errors.New("target name must not be empty")

	// ErrUnknownNavigationMode is returned when the navigation mode is not one
	// of direct-widget, via-landing-page or via-landing-with-panel.
	ErrUnknownNavigationMode = errors.New("unknown navigation mode")

	// ErrMissingWidgetURL is returned when a direct-widget target has no widget URL.
	ErrMissingWidgetURL = errors.New("direct-widget target requires a widget URL")

	// ErrMissingLandingURL is returned when a landing-page target has no landing URL.
	ErrMissingLandingURL = errors.New("landing-page target requires a landing URL")

	// ErrMissingPanelMarker is returned when a panel target has no marker phrase.
	ErrMissingPanelMarker = errors.New("via-landing-with-panel target requires a panel marker")

	// ErrInvalidURL is returned when a configured URL is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid URL: must be an absolute http or https URL")

	// ErrUnknownOutcome is returned when decoding an outcome name fails.
	ErrUnknownOutcome = errors.New("unknown outcome")
)
