package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"strings"
)

// MaskValue replaces a value that is a secret as a whole.
const MaskValue = "***REDACTED***"

// sensitiveKeys are attribute keys whose value is always masked.
var sensitiveKeys = map[string]bool{
	"authorization":       true,
	"proxy-authorization": true,
	"cookie":              true,
	"password":            true,
	"passwd":              true,
	"pass":                true,
	"secret":              true,
	"token":               true,
	"bot_token":           true,
	"session":             true,
	"session_token":       true,
	"credentials":         true,
	"auth":                true,
	"proxy_user":          true,
	"proxy_pass":          true,
}

// sensitiveKeywords mask any key containing them.
var sensitiveKeywords = []string{"password", "passwd", "secret", "token", "auth", "credential"}

// wholeValuePatterns mark a value that is itself a secret.
var wholeValuePatterns = []*regexp.Regexp{
	// JWT
	regexp.MustCompile(`^eyJ[A-Za-z0-9_-]*\.eyJ[A-Za-z0-9_-]*\.[A-Za-z0-9_-]*$`),
	// Bearer and basic authorization values
	regexp.MustCompile(`(?i)^bearer\s+.+`),
	regexp.MustCompile(`(?i)^basic\s+[A-Za-z0-9+/=]+$`),
}

var (
	// botToken matches a Telegram bot token such as 123456:AA...
	botToken = regexp.MustCompile(`\d{6,12}:[A-Za-z0-9_-]{30,}`)

	// urlUserinfo matches the userinfo part of a URL.
	urlUserinfo = regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/\s:@]+(:[^/\s@]*)?@`)
)

// SecureHandler wraps an slog.Handler and scrubs secrets from every
// attribute.
//
// Design decision: Bot tokens and proxy credentials are scrubbed inside
// values, not only when the whole value is a secret. They routinely end up
// in error strings (a failed request echoes its URL) that are logged under
// a harmless key such as "error".
type SecureHandler struct {
	handler slog.Handler
}

// NewSecureHandler wraps handler. A nil handler wraps slog.Default().Handler().
func NewSecureHandler(handler slog.Handler) *SecureHandler {
	if handler == nil {
		handler = slog.Default().Handler()
	}
	return &SecureHandler{handler: handler}
}

// Enabled implements slog.Handler.
func (h *SecureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *SecureHandler) Handle(ctx context.Context, r slog.Record) error {
	sanitized := slog.NewRecord(r.Time, r.Level, Scrub(r.Message), r.PC)
	r.Attrs(func(a slog.Attr) bool {
		sanitized.AddAttrs(sanitizeAttr(a))
		return true
	})
	return h.handler.Handle(ctx, sanitized)
}

// WithAttrs implements slog.Handler.
func (h *SecureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = sanitizeAttr(a)
	}
	return &SecureHandler{handler: h.handler.WithAttrs(out)}
}

// WithGroup implements slog.Handler.
func (h *SecureHandler) WithGroup(name string) slog.Handler {
	return &SecureHandler{handler: h.handler.WithGroup(name)}
}

// sanitizeAttr scrubs one attribute, recursing into groups.
func sanitizeAttr(a slog.Attr) slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Value.Kind() == slog.KindGroup {
		group := a.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, g := range group {
			out[i] = sanitizeAttr(g)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}

	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, MaskValue)
	}

	switch a.Value.Kind() {
	case slog.KindString:
		return slog.String(a.Key, scrubValue(a.Value.String()))
	case slog.KindAny:
		if err, ok := a.Value.Any().(error); ok && err != nil {
			return slog.String(a.Key, scrubValue(err.Error()))
		}
	}
	return a
}

// isSensitiveKey reports whether a key names a secret.
func isSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	if sensitiveKeys[k] {
		return true
	}
	for _, kw := range sensitiveKeywords {
		if strings.Contains(k, kw) {
			return true
		}
	}
	return false
}

// scrubValue masks a whole-secret value or scrubs embedded secrets.
func scrubValue(v string) string {
	for _, p := range wholeValuePatterns {
		if p.MatchString(v) {
			return MaskValue
		}
	}
	return Scrub(v)
}

// Scrub removes bot tokens and URL credentials embedded in s.
func Scrub(s string) string {
	s = botToken.ReplaceAllString(s, "<bot-token>")
	return urlUserinfo.ReplaceAllString(s, "${1}***:***@")
}

// Level returns Debug when verbose, otherwise base.
func Level(verbose bool, base slog.Level) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return base
}

// NewSecureLogger returns a text logger at level that scrubs secrets.
func NewSecureLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// NewSecureJSONLogger returns a JSON logger at level that scrubs secrets.
func NewSecureJSONLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewSecureHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}
