package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and the loader so that
// callers can use errors.Is() while still printing a readable message.
var (
	// ErrNoTarget is returned when the file lists no enabled target.
	ErrNoTarget = errors.New("no target configured: add one under 'targets' in the config file")

	// ErrDuplicateTarget is returned when two targets share a name.
	// Names key the notification gate and the history.
	ErrDuplicateTarget = errors.New("duplicate target name")

	// ErrUnknownTarget is returned when a command names a target that is
	// not configured.
	ErrUnknownTarget = errors.New("unknown target")

	// ErrInvalidDuration is returned when a wait or cool-down is negative.
	ErrInvalidDuration = errors.New("invalid duration: must be non-negative")

	// ErrInvalidRetries is returned when proxy.maxRetries is out of range.
	ErrInvalidRetries = errors.New("invalid proxy.maxRetries")

	// ErrInvalidThreshold is returned when watch.blockThreshold is negative.
	ErrInvalidThreshold = errors.New("invalid watch.blockThreshold: must be non-negative")

	// ErrMissingTelegram is returned when a command needs Telegram and the
	// token or the chat ID is missing.
	ErrMissingTelegram = errors.New("telegram is not configured: set TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")

	// ErrConflictingProxies is returned when both proxy servers and Tor are
	// configured.
	ErrConflictingProxies = errors.New("conflicting proxy settings: use either proxy.servers or proxy.tor")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
