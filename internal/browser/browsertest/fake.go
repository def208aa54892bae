// Package browsertest provides a scriptable in-memory browser.Session for
// tests of the navigator, the classifier and the retry policy.
//
// A fake session holds a map of URL to Page. Pages carry visible text,
// markup, interactive elements and frames. Clicking an element runs its
// OnClick hook, which typically calls Session.Show to switch the current
// page, imitating an in-place navigation or a newly opened tab.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/model"
)

// Element is a fake interactive element.
type Element struct {
	// Kind is the tag or class the element matches, e.g. "a", "button", ".btn".
	Kind string

	// Text is the element's visible text.
	Text string

	// Context is the visible text of the element's parent.
	Context string

	// Href is the link target for anchors.
	Href string

	// Hidden elements are never located nor listed as candidates.
	Hidden bool

	// OnClick runs when the element is clicked.
	OnClick func(s *Session)

	// ClickErr, when set, is returned by Click.
	ClickErr error

	mu     sync.Mutex
	clicks int
}

// Clicks returns how many times the element was clicked.
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Page is a fake document.
type Page struct {
	// Name identifies the page in diagnostics.
	Name string

	// Text is the visible text. Element texts are appended automatically.
	Text string

	// Markup is the raw HTML. When empty a markup is synthesized from Text
	// and the elements.
	Markup string

	// Elements are the interactive elements of the page.
	Elements []*Element

	// Frames are the embedded documents.
	Frames []*Page

	// Err, when set, is returned by every read on this page.
	Err error

	// CandidatesErr, when set, is returned by Candidates only.
	CandidatesErr error
}

// visibleText returns the page text plus the text of visible elements.
func (p *Page) visibleText() string {
	parts := []string{p.Text}
	for _, el := range p.Elements {
		if !el.Hidden {
			parts = append(parts, el.Text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// markup returns the page markup, synthesizing one when none is set.
func (p *Page) markup() string {
	if p.Markup != "" {
		return p.Markup
	}
	var b strings.Builder
	b.WriteString("<html><head><title>")
	b.WriteString(p.Name)
	b.WriteString("</title></head><body><p>")
	b.WriteString(p.Text)
	b.WriteString("</p>")
	for _, el := range p.Elements {
		tag := strings.TrimPrefix(el.Kind, ".")
		fmt.Fprintf(&b, "<%s>%s</%s>", tag, el.Text, tag)
	}
	b.WriteString("</body></html>")
	return b.String()
}

// Session is a fake browser.Session.
type Session struct {
	// Pages maps URLs to the page shown after navigating there.
	Pages map[string]*Page

	// NavigateErr maps URLs to a navigation failure.
	NavigateErr map[string]error

	// Image is returned by Screenshot.
	Image []byte

	// OnClose runs once when the session is closed.
	OnClose func()

	mu        sync.Mutex
	current   *Page
	url       string
	visited   []string
	closed    bool
	humanized int
}

// NewSession returns a session over the given pages, starting on a blank page.
func NewSession(pages map[string]*Page) *Session {
	return &Session{
		Pages:   pages,
		current: &Page{Name: "about:blank"},
		url:     "about:blank",
	}
}

// Show switches the current page without a navigation.
func (s *Session) Show(p *Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = p
}

// ShowURL switches to the page registered for url, as a followed link would.
func (s *Session) ShowURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Pages[url]; ok {
		s.current = p
		s.url = url
	}
}

// Visited returns the URLs navigated to, in order.
func (s *Session) Visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.visited...)
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Humanized returns how many times Humanize was called.
func (s *Session) Humanized() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.humanized
}

// page returns the current page or ErrSessionClosed.
func (s *Session) page() (*Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, browser.ErrSessionClosed
	}
	return s.current, nil
}

// Navigate implements browser.Session.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return browser.ErrSessionClosed
	}
	s.visited = append(s.visited, url)
	if err, ok := s.NavigateErr[url]; ok {
		return browser.Fault("navigate", err)
	}
	p, ok := s.Pages[url]
	if !ok {
		return browser.Fault("navigate", fmt.Errorf("no fake page for %s", url))
	}
	s.current = p
	s.url = url
	return nil
}

// Main implements browser.Session.
func (s *Session) Main(_ context.Context) (browser.Document, error) {
	p, err := s.page()
	if err != nil {
		return nil, err
	}
	return &document{session: s, page: p, name: "main"}, nil
}

// Follow implements browser.Session.
func (s *Session) Follow(ctx context.Context, el browser.Element) error {
	return el.Click(ctx)
}

// Screenshot implements browser.Session.
func (s *Session) Screenshot(_ context.Context) ([]byte, error) {
	if _, err := s.page(); err != nil {
		return nil, err
	}
	if s.Image == nil {
		return []byte{0xFF, 0xD8, 0xFF, 0xD9}, nil
	}
	return s.Image, nil
}

// URL implements browser.Session.
func (s *Session) URL(_ context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url
}

// Humanize implements browser.Humanizer.
func (s *Session) Humanize(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.humanized++
	return nil
}

// Close implements browser.Session.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	hook := s.OnClose
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// document implements browser.Document over a fake page.
type document struct {
	session *Session
	page    *Page
	name    string
}

// Name implements browser.Document.
func (d *document) Name() string {
	if d.page.Name != "" {
		return d.page.Name
	}
	return d.name
}

// Locate implements browser.Document.
func (d *document) Locate(_ context.Context, q browser.Query) (browser.Element, error) {
	if d.page.Err != nil {
		return nil, browser.Fault("query", d.page.Err)
	}
	for _, el := range d.page.Elements {
		if el.Hidden || !matchesSelector(q.SelectorOrDefault(), el.Kind) {
			continue
		}
		if !q.MatchesText(el.Text) || !q.MatchesHref(el.Href) {
			continue
		}
		return &element{session: d.session, el: el}, nil
	}
	return nil, browser.ErrNotFound
}

// Candidates implements browser.Document.
func (d *document) Candidates(_ context.Context, selector string, limit int) ([]browser.Candidate, error) {
	if d.page.Err != nil {
		return nil, browser.Fault("candidates", d.page.Err)
	}
	if d.page.CandidatesErr != nil {
		return nil, browser.Fault("candidates", d.page.CandidatesErr)
	}
	var out []browser.Candidate
	for _, el := range d.page.Elements {
		if len(out) >= limit {
			break
		}
		if el.Hidden || !matchesSelector(selector, el.Kind) {
			continue
		}
		out = append(out, browser.Candidate{Text: el.Text, Context: el.Context})
	}
	return out, nil
}

// VisibleText implements browser.Document.
func (d *document) VisibleText(_ context.Context) (string, error) {
	if d.page.Err != nil {
		return "", browser.Fault("visible text", d.page.Err)
	}
	return d.page.visibleText(), nil
}

// RawMarkup implements browser.Document.
func (d *document) RawMarkup(_ context.Context) (string, error) {
	if d.page.Err != nil {
		return "", browser.Fault("markup", d.page.Err)
	}
	return d.page.markup(), nil
}

// Embedded implements browser.Document.
func (d *document) Embedded(_ context.Context) ([]browser.Document, error) {
	if d.page.Err != nil {
		return nil, browser.Fault("frames", d.page.Err)
	}
	docs := make([]browser.Document, 0, len(d.page.Frames))
	for i, f := range d.page.Frames {
		docs = append(docs, &document{session: d.session, page: f, name: fmt.Sprintf("%s/frame[%d]", d.name, i)})
	}
	return docs, nil
}

// matchesSelector reports whether kind is one of the comma-separated selectors.
func matchesSelector(selector, kind string) bool {
	for _, part := range strings.Split(selector, ",") {
		if strings.TrimSpace(part) == kind {
			return true
		}
	}
	return false
}

// element implements browser.Element.
type element struct {
	session *Session
	el      *Element
}

// Text implements browser.Element.
func (e *element) Text(_ context.Context) (string, error) {
	return e.el.Text, nil
}

// Click implements browser.Element.
func (e *element) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.el.mu.Lock()
	e.el.clicks++
	e.el.mu.Unlock()
	if e.el.ClickErr != nil {
		return browser.Fault("click", e.el.ClickErr)
	}
	if e.el.OnClick != nil {
		e.el.OnClick(e.session)
	}
	return nil
}

// Factory is a fake session factory that records every session it opens
// and the peak number of sessions open at once.
type Factory struct {
	// New builds the session for the given zero-based attempt.
	New func(attempt int, p *model.ProxyDescriptor) (*Session, error)

	mu        sync.Mutex
	sessions  []*Session
	proxies   []*model.ProxyDescriptor
	active    int
	maxActive int
}

// Open implements the retry policy's session factory.
func (f *Factory) Open(ctx context.Context, p *model.ProxyDescriptor) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	attempt := len(f.proxies)
	f.proxies = append(f.proxies, p)
	f.mu.Unlock()

	if f.New == nil {
		return nil, errors.New("browsertest: Factory.New is nil")
	}
	s, err := f.New(attempt, p)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	prev := s.OnClose
	s.OnClose = func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
		if prev != nil {
			prev()
		}
	}
	return s, nil
}

// Sessions returns the sessions opened so far.
func (f *Factory) Sessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

// Proxies returns the descriptor passed to each Open call.
func (f *Factory) Proxies() []*model.ProxyDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.ProxyDescriptor(nil), f.proxies...)
}

// Active returns the number of sessions currently open.
func (f *Factory) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

// MaxActive returns the peak number of sessions open at once.
func (f *Factory) MaxActive() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxActive
}
