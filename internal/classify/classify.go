package classify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"unicode/utf8"

	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/textfold"
)

// timeLabel matches an hour:minute label between 0:00 and 23:59.
var timeLabel = regexp.MustCompile(`\b([01]?\d|2[0-3]):[0-5]\d\b`)

// DocumentSnapshot is what was read from one document.
type DocumentSnapshot struct {
	Name       string
	Text       string
	Markup     string
	Candidates []browser.Candidate

	// CandidatesFailed is set when the driver could not list candidates.
	// Only then are candidates parsed from Markup, since an empty list is
	// the normal state of a day without slots.
	CandidatesFailed bool
}

// Snapshot is what was read from every document of a session.
type Snapshot struct {
	// Documents are in traversal order, main document first.
	Documents []DocumentSnapshot

	// URL is the address of the main document.
	URL string

	// Faults counts documents that could not be read completely.
	Faults int
}

// TextChars returns the visible text length summed over all documents,
// whitespace collapsed, in runes.
func (s Snapshot) TextChars() int {
	n := 0
	for _, d := range s.Documents {
		n += utf8.RuneCountInString(textfold.CollapseSpace(d.Text))
	}
	return n
}

// MarkupChars returns the markup length summed over all documents,
// whitespace collapsed, in runes.
func (s Snapshot) MarkupChars() int {
	n := 0
	for _, d := range s.Documents {
		n += utf8.RuneCountInString(textfold.CollapseSpace(d.Markup))
	}
	return n
}

// Diagnostics returns the measurements of the snapshot.
func (s Snapshot) Diagnostics() model.Diagnostics {
	return model.Diagnostics{
		TextChars:        s.TextChars(),
		MarkupChars:      s.MarkupChars(),
		Documents:        len(s.Documents),
		NavigationFaults: s.Faults,
		URL:              s.URL,
	}
}

// Decision is the verdict of Evaluate.
type Decision struct {
	Outcome   model.Outcome
	Labels    []string
	Reason    string
	DateLabel string
}

// Decisive reports whether the decision is final for a calendar page:
// either slots or an explicit no-availability message.
func (d Decision) Decisive() bool {
	return d.Outcome == model.OutcomeSlotsFound || d.Outcome == model.OutcomeNoSlots
}

// Classifier applies the decision rules to browser sessions.
type Classifier struct {
	cfg    Config
	logger *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Classifier) {
		c.logger = logger
	}
}

// New returns a classifier. Zero thresholds, limits and phrase lists of cfg
// take their defaults; Tolerant is taken as is, so start from DefaultConfig.
func New(cfg Config, opts ...Option) *Classifier {
	c := &Classifier{
		cfg:    cfg.withDefaults(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Classifier) Config() Config {
	return c.cfg
}

// Capture reads the visible text, markup and slot candidates of every
// document of s. Unreadable sub-documents are counted as faults and
// skipped; only a failure to read the main document is returned.
func (c *Classifier) Capture(ctx context.Context, s browser.Session) (Snapshot, error) {
	docs, err := browser.Documents(ctx, s)
	if err != nil {
		return Snapshot{URL: s.URL(ctx), Faults: 1}, err
	}

	snap := Snapshot{URL: s.URL(ctx)}
	for i, d := range docs {
		ds := DocumentSnapshot{Name: d.Name()}
		text, terr := d.VisibleText(ctx)
		markup, merr := d.RawMarkup(ctx)
		if terr != nil || merr != nil {
			snap.Faults++
			if i == 0 && terr != nil && merr != nil {
				return snap, browser.Fault("capture", terr)
			}
		}
		ds.Text = text
		ds.Markup = markup

		cands, cerr := d.Candidates(ctx, c.cfg.CandidateSelector, c.cfg.CandidateLimit)
		if cerr != nil {
			ds.CandidatesFailed = true
			snap.Faults++
			c.logger.Debug("candidates unavailable", "document", ds.Name, "error", cerr)
		}
		ds.Candidates = cands
		snap.Documents = append(snap.Documents, ds)
	}
	return snap, nil
}

// IsBlank reports whether the snapshot is materially empty.
func (c *Classifier) IsBlank(snap Snapshot) bool {
	return snap.TextChars() < c.cfg.MinTextChars && snap.MarkupChars() < c.cfg.MinMarkupChars
}

// NoSlotsMessage returns the negative phrase visible in any document.
func (c *Classifier) NoSlotsMessage(snap Snapshot) (string, bool) {
	for _, d := range snap.Documents {
		if phrase, ok := textfold.ContainsAny(d.Text, c.cfg.Phrases.NoSlots); ok {
			return phrase, true
		}
	}
	return "", false
}

// SlotLabels returns the time labels of free slots and of all
// time-labelled candidates. Candidates come from the driver; documents
// whose candidates could not be read are parsed from their markup instead.
func (c *Classifier) SlotLabels(snap Snapshot) (marked, unmarked []string) {
	for _, d := range snap.Documents {
		cands := d.Candidates
		if d.CandidatesFailed && d.Markup != "" {
			cands = markupCandidates(d.Markup, c.cfg.CandidateSelector, c.cfg.CandidateLimit)
		}
		for _, cand := range cands {
			label := timeLabel.FindString(cand.Text)
			if label == "" {
				continue
			}
			unmarked = append(unmarked, label)
			if c.hasFreeMarker(cand) {
				marked = append(marked, label)
			}
		}
	}
	return model.NormalizeLabels(marked), model.NormalizeLabels(unmarked)
}

// hasFreeMarker reports whether the candidate or its context is marked free.
func (c *Classifier) hasFreeMarker(cand browser.Candidate) bool {
	for _, s := range []string{cand.Text, cand.Title, cand.Context} {
		if _, ok := textfold.ContainsAny(s, c.cfg.Phrases.FreeMarkers); ok {
			return true
		}
	}
	return false
}

// Evaluate applies the decision rules to a snapshot. The first matching
// rule wins.
func (c *Classifier) Evaluate(snap Snapshot) Decision {
	if c.IsBlank(snap) {
		return Decision{
			Outcome: model.OutcomeBlocked,
			Reason:  fmt.Sprintf("blank page: %d text chars, %d markup chars", snap.TextChars(), snap.MarkupChars()),
		}
	}

	if phrase, ok := c.NoSlotsMessage(snap); ok {
		return Decision{
			Outcome: model.OutcomeNoSlots,
			Reason:  fmt.Sprintf("no availability message %q", phrase),
		}
	}

	marked, unmarked := c.SlotLabels(snap)
	if len(marked) > 0 {
		return Decision{
			Outcome:   model.OutcomeSlotsFound,
			Labels:    marked,
			Reason:    fmt.Sprintf("%d free slots", len(marked)),
			DateLabel: dateLabel(snap),
		}
	}
	if c.cfg.Tolerant && len(unmarked) > 0 {
		return Decision{
			Outcome:   model.OutcomeSlotsFound,
			Labels:    unmarked,
			Reason:    fmt.Sprintf("%d time-labelled slots without a free marker", len(unmarked)),
			DateLabel: dateLabel(snap),
		}
	}

	return Decision{
		Outcome: model.OutcomeTimeout,
		Reason:  "ambiguous page: neither slots nor a no availability message",
	}
}

// Result turns a decision on snap into a model.Result.
func (c *Classifier) Result(snap Snapshot, d Decision) model.Result {
	diag := snap.Diagnostics()
	diag.Reason = d.Reason
	diag.DateLabel = d.DateLabel
	if d.Outcome == model.OutcomeSlotsFound {
		return model.SlotsFound(d.Labels, diag)
	}
	return model.NewResult(d.Outcome, diag)
}
