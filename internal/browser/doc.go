// Package browser is the thin façade between the monitoring engine and the
// browser automation driver.
//
// The engine only needs a handful of capabilities: navigate to a URL, find
// an element by selector and text (in the main document and in every
// embedded frame), click it, read visible text and raw markup, take a
// screenshot and list embedded documents. These are expressed as the
// Session, Document and Element interfaces so that the navigator and the
// classifier can be tested against the scriptable fake in the browsertest
// sub-package.
//
// # Fault handling
//
// Every method is fallible. Driver-level failures (navigation errors,
// detached frames, timeouts inside the driver) are returned wrapped in
// ErrNavigationFault so callers can fold them into a single outcome with
// errors.Is, instead of swallowing exceptions at each call site.
//
// # Rod implementation
//
// Launcher opens one Chromium process per Session using go-rod. A session
// is never reused: each attempt gets a fresh browser with its own proxy,
// user agent and viewport, and Close kills the process and removes its
// profile directory.
package browser
