package browser

import (
	"context"
	"errors"
	"strings"

	"github.com/nao1215/citawatch/internal/textfold"
)

// MaxFrameDepth bounds how deep Documents descends into nested frames.
const MaxFrameDepth = 3

// Session is one browser page owned by a single attempt.
type Session interface {
	// Navigate loads url in the current page and waits for it to load.
	Navigate(ctx context.Context, url string) error

	// Main returns the top-level document of the current page.
	Main(ctx context.Context) (Document, error)

	// Follow clicks el and follows the result: if a new browsing context
	// opens, it becomes the current page; otherwise the in-place navigation
	// is awaited.
	Follow(ctx context.Context, el Element) error

	// Screenshot captures the current page as a JPEG image.
	Screenshot(ctx context.Context) ([]byte, error)

	// URL returns the address of the current page, or "" if unknown.
	URL(ctx context.Context) string

	// Close releases every resource held by the session. It is safe to call
	// more than once.
	Close() error
}

// Humanizer is implemented by sessions that can emit small mouse and
// scroll movements between actions.
type Humanizer interface {
	Humanize(ctx context.Context) error
}

// Document is a main document or an embedded frame.
type Document interface {
	// Name identifies the document in diagnostics ("main", a frame src...).
	Name() string

	// Locate returns the first visible element matching q, or ErrNotFound.
	Locate(ctx context.Context, q Query) (Element, error)

	// Candidates returns up to limit visible elements matching selector
	// together with the text of their immediate context.
	Candidates(ctx context.Context, selector string, limit int) ([]Candidate, error)

	// VisibleText returns the rendered text of the document.
	VisibleText(ctx context.Context) (string, error)

	// RawMarkup returns the serialized HTML of the document.
	RawMarkup(ctx context.Context) (string, error)

	// Embedded lists the documents of the frames directly inside this one.
	Embedded(ctx context.Context) ([]Document, error)
}

// Element is a clickable node inside a Document.
type Element interface {
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
}

// Query selects an element by CSS selector and, optionally, by text or href.
type Query struct {
	// Selector is a CSS selector list. Empty means "a, button".
	Selector string

	// Texts, when non-empty, require the element text to contain one of the
	// phrases (accent and case insensitive).
	Texts []string

	// Href, when non-empty, requires the element's href attribute to contain it.
	Href string
}

// SelectorOrDefault returns the query selector, defaulting to links and buttons.
func (q Query) SelectorOrDefault() string {
	if strings.TrimSpace(q.Selector) == "" {
		return "a, button"
	}
	return q.Selector
}

// MatchesText reports whether text satisfies the query's text filter.
func (q Query) MatchesText(text string) bool {
	if len(q.Texts) == 0 {
		return true
	}
	_, ok := textfold.ContainsAny(text, q.Texts)
	return ok
}

// MatchesHref reports whether href satisfies the query's href filter.
func (q Query) MatchesHref(href string) bool {
	if q.Href == "" {
		return true
	}
	return strings.Contains(strings.ToLower(href), strings.ToLower(q.Href))
}

// Candidate is an interactive element seen by the classifier.
type Candidate struct {
	// Text is the element's own visible text.
	Text string `json:"text"`

	// Context is the visible text of the element's parent, used to find a
	// "free" marker rendered next to the time label.
	Context string `json:"context"`

	// Title is the title or aria-label attribute, if any.
	Title string `json:"title"`
}

// Documents returns the main document followed by every embedded document,
// breadth first, up to MaxFrameDepth levels. A failure to read the main
// document is returned; failures on individual frames are skipped because
// frames come and go while a widget renders.
func Documents(ctx context.Context, s Session) ([]Document, error) {
	main, err := s.Main(ctx)
	if err != nil {
		return nil, err
	}

	docs := []Document{main}
	level := []Document{main}
	for depth := 0; depth < MaxFrameDepth && len(level) > 0; depth++ {
		var next []Document
		for _, d := range level {
			children, err := d.Embedded(ctx)
			if err != nil {
				continue
			}
			next = append(next, children...)
		}
		docs = append(docs, next...)
		level = next
	}
	return docs, nil
}

// LocateAny tries each query against each document in order and returns
// the first match. When nothing matches it returns the first navigation
// fault seen, or ErrNotFound if no document failed.
func LocateAny(ctx context.Context, docs []Document, queries ...Query) (Element, error) {
	var firstFault error
	for _, q := range queries {
		for _, d := range docs {
			el, err := d.Locate(ctx, q)
			if err == nil {
				return el, nil
			}
			if !errors.Is(err, ErrNotFound) && firstFault == nil {
				firstFault = err
			}
		}
	}
	if firstFault != nil {
		return nil, firstFault
	}
	return nil, ErrNotFound
}
