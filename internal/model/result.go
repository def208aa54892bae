package model

import "slices"

// Diagnostics carries the measurements behind a verdict.
// It is attached to every Result so that operators can tell a genuine
// "no slots" from a blank page or a half loaded widget.
type Diagnostics struct {
	// TextChars is the length of the visible text summed over all documents.
	TextChars int `json:"textChars"`

	// MarkupChars is the whitespace-collapsed markup length summed over all documents.
	MarkupChars int `json:"markupChars"`

	// Documents is the number of documents inspected (main plus embedded).
	Documents int `json:"documents"`

	// NavigationFaults counts driver-level errors absorbed during the attempt.
	NavigationFaults int `json:"navigationFaults"`

	// State is the last navigation state reached before the verdict.
	State string `json:"state,omitempty"`

	// Reason is a short human-readable explanation of the verdict.
	Reason string `json:"reason,omitempty"`

	// DateLabel is the calendar day heading visible when slots were read.
	DateLabel string `json:"dateLabel,omitempty"`

	// URL is the address of the page the verdict was taken on.
	URL string `json:"url,omitempty"`
}

// Evidence holds opaque artifacts captured for the operator.
type Evidence struct {
	// Screenshot is an encoded image of the page (JPEG).
	Screenshot []byte `json:"-"`

	// Markup is the raw HTML of the main document.
	Markup string `json:"-"`
}

// Empty reports whether no artifact was captured.
func (e *Evidence) Empty() bool {
	return e == nil || (len(e.Screenshot) == 0 && e.Markup == "")
}

// Result is the immutable verdict of one attempt.
// Build it with NewResult or SlotsFound; callers must not mutate Labels.
type Result struct {
	// Outcome is the enumerated verdict.
	Outcome Outcome `json:"outcome"`

	// Labels is the sorted set of distinct free time labels.
	// It is only populated when Outcome is OutcomeSlotsFound.
	Labels []string `json:"labels,omitempty"`

	// Diagnostics describes how the verdict was reached.
	Diagnostics Diagnostics `json:"diagnostics"`

	// Evidence is optional and only captured when enabled.
	Evidence *Evidence `json:"-"`
}

// NewResult returns a result without time labels.
// Use SlotsFound for positive results.
func NewResult(outcome Outcome, diag Diagnostics) Result {
	return Result{Outcome: outcome, Diagnostics: diag}
}

// SlotsFound returns a positive result whose labels are normalized,
// deduplicated and sorted.
func SlotsFound(labels []string, diag Diagnostics) Result {
	return Result{
		Outcome:     OutcomeSlotsFound,
		Labels:      NormalizeLabels(labels),
		Diagnostics: diag,
	}
}

// WithEvidence returns a copy of r carrying the given evidence.
func (r Result) WithEvidence(e *Evidence) Result {
	r.Labels = slices.Clone(r.Labels)
	r.Evidence = e
	return r
}

// WithDiagnostics returns a copy of r with the diagnostics replaced.
func (r Result) WithDiagnostics(d Diagnostics) Result {
	r.Labels = slices.Clone(r.Labels)
	r.Diagnostics = d
	return r
}

// Signature returns the slot signature of the result's labels.
// It returns the empty signature for results without labels.
func (r Result) Signature() Signature {
	if r.Outcome != OutcomeSlotsFound || len(r.Labels) == 0 {
		return ""
	}
	return NewSignature(r.Labels)
}
