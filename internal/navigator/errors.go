package navigator

import "errors"

var (
	// ErrWidgetLinkNotFound is returned when the landing page has no link to the widget.
	ErrWidgetLinkNotFound = errors.New("widget link not found on landing page")

	// ErrWidgetNotReady is returned when neither a continue button nor a
	// no availability message appeared within the widget budget.
	ErrWidgetNotReady = errors.New("widget not ready")

	// ErrCalendarNotReady is returned when the calendar could not be read at all.
	ErrCalendarNotReady = errors.New("calendar not ready")

	// ErrNoVerdict is returned when the steps ended without a result.
	ErrNoVerdict = errors.New("navigation ended without a verdict")
)
