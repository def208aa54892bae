// Package navigator drives one browser session from a target's start URL
// to its slot calendar and hands the calendar to the classifier.
//
// A run is a pipeline of steps built from the target's navigation mode:
//
//	landing  -> START to LANDING_READY to WIDGET_REQUESTED (landing modes)
//	widget   -> WIDGET_REQUESTED to WIDGET_READY
//	continue -> WIDGET_READY to CONTINUED
//	panel    -> CONTINUED to PANEL_OPENED (panel mode)
//	calendar -> CALENDAR_READY, then classification
//
// Each step advances the Attempt's State and may end the run early by
// setting a terminal result (a blank page right after a navigation, or an
// explicit "no availability" message on the widget).
//
// Design decision: Every step failure is folded into a result at the
// pipeline boundary instead of being returned. Driver faults and exhausted
// wait budgets become TIMEOUT, except when the page that is left is blank,
// which becomes BLOCKED so that the retry policy can rotate the egress.
// No step is retried within a run; retries restart the whole run with a
// fresh session.
package navigator
