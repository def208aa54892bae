package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/nao1215/citawatch/internal/model"
)

// Default launch values.
const (
	// DefaultNavigationTimeout bounds a single page load.
	DefaultNavigationTimeout = 45 * time.Second

	// DefaultFollowTimeout is how long Follow waits for a new tab to open
	// before assuming an in-place navigation.
	DefaultFollowTimeout = 5 * time.Second

	// DefaultClickTimeout bounds a single click, including scrolling the
	// element into view.
	DefaultClickTimeout = 10 * time.Second

	// DefaultLocale is the browser UI language; the portals are Spanish.
	DefaultLocale = "es-ES"

	// DefaultAcceptLanguage is sent with every request.
	DefaultAcceptLanguage = "es-ES,es;q=0.9,en;q=0.8"

	// screenshotQuality is the JPEG quality of evidence screenshots.
	screenshotQuality = 70
)

// DefaultUserAgents is the desktop user agent pool rotated per session.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
}

// LaunchConfig controls how each browser process is started.
type LaunchConfig struct {
	// Bin is the Chromium binary. Empty lets rod find or download one.
	Bin string

	// Headless hides the browser window.
	Headless bool

	// NoSandbox disables the Chromium sandbox (needed in some containers).
	NoSandbox bool

	// NavigationTimeout bounds each page load.
	NavigationTimeout time.Duration

	// FollowTimeout bounds the wait for a new tab after clicking a link.
	FollowTimeout time.Duration

	// UserAgents is the pool one user agent is drawn from per session.
	UserAgents []string

	// Locale is the browser language.
	Locale string

	// AcceptLanguage is the Accept-Language header.
	AcceptLanguage string
}

// DefaultLaunchConfig returns a headless configuration with the default pools.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{
		Headless:          true,
		NavigationTimeout: DefaultNavigationTimeout,
		FollowTimeout:     DefaultFollowTimeout,
		UserAgents:        DefaultUserAgents,
		Locale:            DefaultLocale,
		AcceptLanguage:    DefaultAcceptLanguage,
	}
}

// Launcher opens rod-backed sessions, one browser process per session.
type Launcher struct {
	cfg    LaunchConfig
	logger *slog.Logger
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithLogger sets the logger used for session lifecycle events.
func WithLogger(logger *slog.Logger) LauncherOption {
	return func(l *Launcher) {
		l.logger = logger
	}
}

// NewLauncher creates a Launcher. Zero fields of cfg fall back to defaults.
func NewLauncher(cfg LaunchConfig, opts ...LauncherOption) *Launcher {
	def := DefaultLaunchConfig()
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = def.NavigationTimeout
	}
	if cfg.FollowTimeout <= 0 {
		cfg.FollowTimeout = def.FollowTimeout
	}
	if len(cfg.UserAgents) == 0 {
		cfg.UserAgents = def.UserAgents
	}
	if cfg.Locale == "" {
		cfg.Locale = def.Locale
	}
	if cfg.AcceptLanguage == "" {
		cfg.AcceptLanguage = def.AcceptLanguage
	}

	l := &Launcher{cfg: cfg}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Open starts a browser routed through p (nil means the default egress)
// and returns a session on a blank page.
func (l *Launcher) Open(ctx context.Context, p *model.ProxyDescriptor) (Session, error) {
	ln := launcher.New().
		Headless(l.cfg.Headless).
		Set(flags.Flag("lang"), l.cfg.Locale).
		Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	if l.cfg.Bin != "" {
		ln = ln.Bin(l.cfg.Bin)
	}
	if l.cfg.NoSandbox {
		ln = ln.NoSandbox(true)
	}
	if p != nil && p.Server != "" {
		ln = ln.Proxy(p.String())
	}

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	sctx, cancel := context.WithCancel(ctx)
	b := rod.New().ControlURL(controlURL).Context(sctx)
	if err := b.Connect(); err != nil {
		cancel()
		ln.Kill()
		ln.Cleanup()
		return nil, fmt.Errorf("%w: connect: %w", ErrLaunch, err)
	}

	s := &rodSession{
		ctx:      sctx,
		cancel:   cancel,
		launcher: ln,
		browser:  b,
		cfg:      l.cfg,
		logger:   l.logger,
	}

	if p != nil && p.HasCredentials() {
		waitAuth := b.HandleAuth(p.Username, p.Password)
		go func() {
			if err := waitAuth(); err != nil && sctx.Err() == nil {
				l.logger.Debug("proxy authentication handler ended", "error", err)
			}
		}()
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: create page: %w", ErrLaunch, err)
	}
	s.preparePage(page)
	s.page = page

	l.logger.Debug("browser session opened", "proxy", proxyName(p), "userAgent", s.userAgent)
	return s, nil
}

// proxyName renders p for logs without credentials.
func proxyName(p *model.ProxyDescriptor) string {
	if p == nil {
		return "direct"
	}
	return p.String()
}

// rodSession implements Session on top of a dedicated rod browser.
type rodSession struct {
	ctx      context.Context
	cancel   context.CancelFunc
	launcher *launcher.Launcher
	browser  *rod.Browser
	cfg      LaunchConfig
	logger   *slog.Logger

	mu        sync.Mutex
	page      *rod.Page
	userAgent string

	closeOnce sync.Once
	closeErr  error
}

// preparePage applies user agent, viewport and dialog handling to a page.
// Failures are logged because a page without them is still usable.
func (s *rodSession) preparePage(page *rod.Page) {
	if s.userAgent == "" {
		s.userAgent = s.cfg.UserAgents[rand.IntN(len(s.cfg.UserAgents))]
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      s.userAgent,
		AcceptLanguage: s.cfg.AcceptLanguage,
	}); err != nil {
		s.logger.Debug("failed to set user agent", "error", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             1200 + rand.IntN(241),
		Height:            800 + rand.IntN(161),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		s.logger.Debug("failed to set viewport", "error", err)
	}

	// Some widgets greet with an alert() that blocks rendering until accepted.
	waitDialog, handleDialog := page.HandleDialog()
	go func() {
		if ev := waitDialog(); ev != nil {
			_ = handleDialog(&proto.PageHandleJavaScriptDialog{Accept: true})
		}
	}()
}

// current returns the page the session is on.
func (s *rodSession) current() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page == nil {
		return nil, ErrSessionClosed
	}
	return s.page, nil
}

// Navigate implements Session.
func (s *rodSession) Navigate(ctx context.Context, url string) error {
	page, err := s.current()
	if err != nil {
		return err
	}
	p := page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(url); err != nil {
		return Fault("navigate", err)
	}
	if err := p.WaitLoad(); err != nil {
		return Fault("wait load", err)
	}
	return nil
}

// Main implements Session.
func (s *rodSession) Main(_ context.Context) (Document, error) {
	page, err := s.current()
	if err != nil {
		return nil, err
	}
	return &rodDocument{page: page, name: "main"}, nil
}

// Follow implements Session.
func (s *rodSession) Follow(ctx context.Context, el Element) error {
	page, err := s.current()
	if err != nil {
		return err
	}

	watcher := page.Context(ctx).Timeout(s.cfg.FollowTimeout)
	defer watcher.CancelTimeout()
	waitOpen := watcher.WaitOpen()

	if err := el.Click(ctx); err != nil {
		return err
	}

	opened, err := waitOpen()
	if err == nil && opened != nil {
		// The opened page inherits the watcher's deadline; rebind it.
		opened = opened.Context(s.ctx)
		s.preparePage(opened)
		s.mu.Lock()
		s.page = opened
		s.mu.Unlock()
		page = opened
		s.logger.Debug("followed link into a new tab")
	}

	p := page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	defer p.CancelTimeout()
	if err := p.WaitLoad(); err != nil {
		return Fault("wait load after follow", err)
	}
	return nil
}

// Screenshot implements Session.
func (s *rodSession) Screenshot(ctx context.Context) ([]byte, error) {
	page, err := s.current()
	if err != nil {
		return nil, err
	}
	quality := screenshotQuality
	img, err := page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, Fault("screenshot", err)
	}
	return img, nil
}

// URL implements Session.
func (s *rodSession) URL(ctx context.Context) string {
	page, err := s.current()
	if err != nil {
		return ""
	}
	info, err := page.Context(ctx).Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

// Humanize moves the mouse to a random point and scrolls a little.
func (s *rodSession) Humanize(ctx context.Context) error {
	page, err := s.current()
	if err != nil {
		return err
	}
	p := page.Context(ctx)
	target := proto.NewPoint(float64(100+rand.IntN(800)), float64(100+rand.IntN(500)))
	if err := p.Mouse.MoveLinear(target, 5+rand.IntN(10)); err != nil {
		return Fault("mouse move", err)
	}
	if err := p.Mouse.Scroll(0, float64(100+rand.IntN(300)), 4); err != nil {
		return Fault("scroll", err)
	}
	return nil
}

// Close implements Session. It closes the browser, kills the process and
// removes the temporary profile.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.page = nil
		s.mu.Unlock()

		var errs []error
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.cancel()
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.closeErr = errors.Join(errs...)
		s.logger.Debug("browser session closed")
	})
	return s.closeErr
}

// candidateScript collects visible elements matching a selector together
// with the text of their parent.
const candidateScript = `(selector, limit) => {
	const out = [];
	for (const el of document.querySelectorAll(selector)) {
		if (out.length >= limit) break;
		const rect = el.getBoundingClientRect();
		const style = window.getComputedStyle(el);
		if (rect.width === 0 || rect.height === 0 || style.visibility === 'hidden' || style.display === 'none') continue;
		const parent = el.parentElement;
		out.push({
			text: (el.innerText || el.textContent || '').trim(),
			context: parent ? (parent.innerText || parent.textContent || '').trim().slice(0, 300) : '',
			title: el.getAttribute('title') || el.getAttribute('aria-label') || '',
		});
	}
	return out;
}`

// visibleTextScript returns the rendered text of the document body.
const visibleTextScript = `() => document.body ? document.body.innerText : ''`

// rodDocument implements Document for a page or a frame.
type rodDocument struct {
	page *rod.Page
	name string
}

// Name implements Document.
func (d *rodDocument) Name() string {
	return d.name
}

// Locate implements Document.
func (d *rodDocument) Locate(ctx context.Context, q Query) (Element, error) {
	els, err := d.page.Context(ctx).Elements(q.SelectorOrDefault())
	if err != nil {
		return nil, Fault("query "+d.name, err)
	}
	for _, el := range els {
		visible, err := el.Visible()
		if err != nil || !visible {
			continue
		}
		if len(q.Texts) > 0 {
			text, err := el.Text()
			if err != nil || !q.MatchesText(text) {
				continue
			}
		}
		if q.Href != "" {
			href, err := el.Attribute("href")
			if err != nil || href == nil || !q.MatchesHref(*href) {
				continue
			}
		}
		return &rodElement{el: el}, nil
	}
	return nil, ErrNotFound
}

// Candidates implements Document.
func (d *rodDocument) Candidates(ctx context.Context, selector string, limit int) ([]Candidate, error) {
	res, err := d.page.Context(ctx).Eval(candidateScript, selector, limit)
	if err != nil {
		return nil, Fault("candidates "+d.name, err)
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, Fault("candidates "+d.name, err)
	}
	var out []Candidate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, Fault("candidates "+d.name, err)
	}
	return out, nil
}

// VisibleText implements Document.
func (d *rodDocument) VisibleText(ctx context.Context) (string, error) {
	res, err := d.page.Context(ctx).Eval(visibleTextScript)
	if err != nil {
		return "", Fault("visible text "+d.name, err)
	}
	return res.Value.Str(), nil
}

// RawMarkup implements Document.
func (d *rodDocument) RawMarkup(ctx context.Context) (string, error) {
	html, err := d.page.Context(ctx).HTML()
	if err != nil {
		return "", Fault("markup "+d.name, err)
	}
	return html, nil
}

// Embedded implements Document.
func (d *rodDocument) Embedded(ctx context.Context) ([]Document, error) {
	els, err := d.page.Context(ctx).Elements("iframe, frame")
	if err != nil {
		return nil, Fault("frames "+d.name, err)
	}
	docs := make([]Document, 0, len(els))
	for i, el := range els {
		frame, err := el.Frame()
		if err != nil {
			continue
		}
		name := fmt.Sprintf("%s/frame[%d]", d.name, i)
		if src, err := el.Attribute("src"); err == nil && src != nil && *src != "" {
			name = *src
		}
		docs = append(docs, &rodDocument{page: frame, name: name})
	}
	return docs, nil
}

// rodElement implements Element.
type rodElement struct {
	el *rod.Element
}

// Text implements Element.
func (e *rodElement) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	if err != nil {
		return "", Fault("element text", err)
	}
	return text, nil
}

// Click implements Element.
func (e *rodElement) Click(ctx context.Context) error {
	el := e.el.Context(ctx).Timeout(DefaultClickTimeout)
	defer el.CancelTimeout()

	_ = el.ScrollIntoView()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return Fault("click", err)
	}
	return nil
}
