package notify

import "errors"

// Notification errors.
var (
	// ErrMissingToken is returned when a Telegram channel has no bot token.
	ErrMissingToken = errors.New("telegram bot token is not configured")

	// ErrMissingChatID is returned when a Telegram channel has no chat ID.
	ErrMissingChatID = errors.New("telegram chat ID is not configured")

	// ErrTelegramAPI is returned when the Bot API answers with ok=false or
	// an error status.
	ErrTelegramAPI = errors.New("telegram API error")
)
