package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	// DefaultTelegramURL is the Bot API endpoint.
	DefaultTelegramURL = "https://api.telegram.org"

	// DefaultTelegramTimeout bounds one API call.
	DefaultTelegramTimeout = 30 * time.Second

	// MaxMessageRunes is the Bot API limit for message text.
	MaxMessageRunes = 4096

	// MaxCaptionRunes is the Bot API limit for photo and document captions.
	MaxCaptionRunes = 1024

	// photoFilename is the upload name of screenshots.
	photoFilename = "evidence.jpg"
)

// apiResponse is the envelope of every Bot API answer.
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Telegram sends alerts through the Telegram Bot API.
type Telegram struct {
	token   string
	chatID  string
	baseURL string
	client  *resty.Client
	logger  *slog.Logger
}

// TelegramOption configures a Telegram channel.
type TelegramOption func(*Telegram)

// WithBaseURL sets the Bot API endpoint.
func WithBaseURL(u string) TelegramOption {
	return func(t *Telegram) {
		t.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithClient sets the HTTP client.
func WithClient(c *resty.Client) TelegramOption {
	return func(t *Telegram) {
		t.client = c
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) TelegramOption {
	return func(t *Telegram) {
		t.logger = logger
	}
}

// NewTelegram returns a Telegram channel for the bot token and chat.
func NewTelegram(token, chatID string, opts ...TelegramOption) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrMissingChatID
	}

	t := &Telegram{
		token:   token,
		chatID:  chatID,
		baseURL: DefaultTelegramURL,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.client == nil {
		t.client = resty.New().SetTimeout(DefaultTelegramTimeout)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	return t, nil
}

// SendText implements Channel.
func (t *Telegram) SendText(ctx context.Context, text string) error {
	req := t.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"chat_id": t.chatID,
			"text":    TruncateRunes(text, MaxMessageRunes),
		})
	return t.call(req, "sendMessage")
}

// SendPhoto implements Channel.
func (t *Telegram) SendPhoto(ctx context.Context, photo []byte, caption string) error {
	req := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"caption": TruncateRunes(caption, MaxCaptionRunes),
		}).
		SetFileReader("photo", photoFilename, bytes.NewReader(photo))
	return t.call(req, "sendPhoto")
}

// SendDocument implements Channel.
func (t *Telegram) SendDocument(ctx context.Context, data []byte, filename, caption string) error {
	req := t.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id": t.chatID,
			"caption": TruncateRunes(caption, MaxCaptionRunes),
		}).
		SetFileReader("document", filename, bytes.NewReader(data))
	return t.call(req, "sendDocument")
}

// call posts req to the API method and checks the envelope.
func (t *Telegram) call(req *resty.Request, method string) error {
	resp, err := req.Post(t.baseURL + "/bot" + t.token + "/" + method)
	if err != nil {
		// The request URL carries the bot token.
		return fmt.Errorf("telegram %s: %s", method, strings.ReplaceAll(err.Error(), t.token, "<redacted>"))
	}

	var env apiResponse
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("%w: %s: status %d", ErrTelegramAPI, method, resp.StatusCode())
	}
	if !env.OK || resp.IsError() {
		return fmt.Errorf("%w: %s: %d %s", ErrTelegramAPI, method, env.ErrorCode, env.Description)
	}
	t.logger.Debug("telegram message sent", "method", method)
	return nil
}

// TruncateRunes shortens s to at most n runes, marking the cut with an ellipsis.
func TruncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
