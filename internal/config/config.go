package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/citawatch/internal/browser"
	"github.com/nao1215/citawatch/internal/classify"
	"github.com/nao1215/citawatch/internal/gate"
	"github.com/nao1215/citawatch/internal/model"
	"github.com/nao1215/citawatch/internal/navigator"
	"github.com/nao1215/citawatch/internal/proxy"
	"github.com/nao1215/citawatch/internal/retry"
	"github.com/nao1215/citawatch/internal/scheduler"
)

// AppName is the application name used for XDG directory paths.
const AppName = "citawatch"

// Config holds the loaded file plus the flags of the running command.
// It is populated once by Load and the CLI, then only read.
//
// Design decision: Config does not duplicate every tunable of the file.
// The section structs stay the source of truth and the builder methods
// below derive each component's configuration from them, applying the
// component defaults to fields the file leaves empty.
type Config struct {
	// ConfigFilePath is the path to the configuration file.
	// If empty, FindConfigFile searches the usual locations.
	ConfigFilePath string

	// Verbose enables debug logging.
	Verbose bool

	// Headed shows the browser window regardless of browser.headless.
	Headed bool

	// MaxRounds caps the number of watch rounds. Zero runs until interrupted.
	MaxRounds int

	// DBDir is the directory of the history database.
	// Defaults to XDG data directory (~/.local/share/citawatch on Linux).
	DBDir string

	// SaveToDB records every observation in the history database.
	SaveToDB bool

	// File is the decoded configuration file.
	File *File

	// Targets are the enabled targets of File, defaults applied.
	Targets []model.Target
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		DBDir:    XDGDataDir(),
		SaveToDB: true,
		File:     &File{},
	}
}

// XDGDataDir returns the XDG data directory for citawatch.
// On Linux: ~/.local/share/citawatch
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for citawatch.
// On Linux: ~/.config/citawatch
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if c.MaxRounds < 0 {
		return fmt.Errorf("%w: negative round count %d", ErrInvalidDuration, c.MaxRounds)
	}

	f := c.file()
	for name, d := range map[string]time.Duration{
		"watch.hitCooldown":         f.Watch.HitCooldown,
		"watch.blockCooldown":       f.Watch.BlockCooldown,
		"watch.errorCooldown":       f.Watch.ErrorCooldown,
		"watch.roundBase":           f.Watch.RoundBase,
		"watch.roundJitter":         f.Watch.RoundJitter,
		"watch.roundMin":            f.Watch.RoundMin,
		"browser.navigationTimeout": f.Browser.NavigationTimeout,
		"browser.widgetTimeout":     f.Browser.WidgetTimeout,
		"browser.calendarTimeout":   f.Browser.CalendarTimeout,
		"browser.pollInterval":      f.Browser.PollInterval,
		"browser.pauseMin":          f.Browser.PauseMin,
		"browser.pauseMax":          f.Browser.PauseMax,
		"proxy.retryDelay":          f.Proxy.RetryDelay,
		"proxy.torStartupTimeout":   f.Proxy.TorStartupTimeout,
	} {
		if d < 0 {
			return fmt.Errorf("%w: %s is %s", ErrInvalidDuration, name, d)
		}
	}

	if f.Watch.BlockThreshold < 0 {
		return ErrInvalidThreshold
	}
	if err := c.RetryConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRetries, err)
	}
	if f.Proxy.Tor && len(f.Proxy.Servers) > 0 {
		return ErrConflictingProxies
	}
	return nil
}

// file returns the loaded file or an empty one.
func (c *Config) file() *File {
	if c.File == nil {
		return &File{}
	}
	return c.File
}

// SchedulerConfig returns the round scheduler configuration.
func (c *Config) SchedulerConfig() scheduler.Config {
	w := c.file().Watch
	cfg := scheduler.DefaultConfig()
	setDuration(&cfg.HitCooldown, w.HitCooldown)
	setDuration(&cfg.BlockCooldown, w.BlockCooldown)
	setDuration(&cfg.ErrorCooldown, w.ErrorCooldown)
	setDuration(&cfg.RoundBase, w.RoundBase)
	setDuration(&cfg.RoundJitter, w.RoundJitter)
	setDuration(&cfg.RoundMin, w.RoundMin)
	cfg.MaxRounds = c.MaxRounds
	return cfg
}

// GateConfig returns the notification gate configuration.
func (c *Config) GateConfig() gate.Config {
	w := c.file().Watch
	cfg := gate.DefaultConfig()
	if w.BlockThreshold > 0 {
		cfg.BlockThreshold = w.BlockThreshold
	}
	cfg.SendEvidence = boolOr(w.SendEvidence, cfg.SendEvidence)
	return cfg
}

// RetryConfig returns the retry and proxy-recovery configuration.
func (c *Config) RetryConfig() retry.Config {
	p := c.file().Proxy
	cfg := retry.DefaultConfig()
	if p.MaxRetries != nil {
		cfg.MaxRetries = *p.MaxRetries
	}
	cfg.AlwaysProxy = p.AlwaysProxy
	cfg.CheckHealth = boolOr(p.CheckHealth, cfg.CheckHealth)
	setDuration(&cfg.RetryDelay, p.RetryDelay)
	return cfg
}

// NavigatorConfig returns the navigation budgets.
func (c *Config) NavigatorConfig() navigator.Config {
	b := c.file().Browser
	cfg := navigator.DefaultConfig()
	setDuration(&cfg.WidgetTimeout, b.WidgetTimeout)
	setDuration(&cfg.CalendarTimeout, b.CalendarTimeout)
	setDuration(&cfg.PollInterval, b.PollInterval)
	setDuration(&cfg.PauseMin, b.PauseMin)
	setDuration(&cfg.PauseMax, b.PauseMax)
	cfg.Humanize = boolOr(b.Humanize, cfg.Humanize)
	cfg.CaptureEvidence = boolOr(b.CaptureEvidence, cfg.CaptureEvidence)
	return cfg
}

// ClassifierConfig returns the classifier phrases and thresholds.
func (c *Config) ClassifierConfig() classify.Config {
	s := c.file().Classifier
	cfg := classify.DefaultConfig()
	if len(s.NoSlots) > 0 {
		cfg.Phrases.NoSlots = s.NoSlots
	}
	if len(s.FreeMarkers) > 0 {
		cfg.Phrases.FreeMarkers = s.FreeMarkers
	}
	if len(s.Continue) > 0 {
		cfg.Phrases.Continue = s.Continue
	}
	if s.MinTextChars > 0 {
		cfg.MinTextChars = s.MinTextChars
	}
	if s.MinMarkupChars > 0 {
		cfg.MinMarkupChars = s.MinMarkupChars
	}
	cfg.Tolerant = boolOr(s.Tolerant, cfg.Tolerant)
	return cfg
}

// LaunchConfig returns the browser launch configuration.
func (c *Config) LaunchConfig() browser.LaunchConfig {
	b := c.file().Browser
	cfg := browser.DefaultLaunchConfig()
	cfg.Bin = b.Bin
	cfg.Headless = boolOr(b.Headless, cfg.Headless) && !c.Headed
	cfg.NoSandbox = b.NoSandbox
	setDuration(&cfg.NavigationTimeout, b.NavigationTimeout)
	if len(b.UserAgents) > 0 {
		cfg.UserAgents = b.UserAgents
	}
	if b.Locale != "" {
		cfg.Locale = b.Locale
	}
	if b.AcceptLanguage != "" {
		cfg.AcceptLanguage = b.AcceptLanguage
	}
	return cfg
}

// StaticProxyConfig returns the static pool configuration and whether any
// proxy server is configured.
func (c *Config) StaticProxyConfig() (proxy.StaticConfig, bool) {
	p := c.file().Proxy
	cfg := proxy.StaticConfig{
		Servers:       p.Servers,
		Username:      p.Username,
		Password:      p.Password,
		SessionInUser: p.SessionInUser,
		RotateURL:     p.RotateURL,
	}
	return cfg, len(p.Servers) > 0
}

// UseTor reports whether the embedded Tor daemon is the proxy pool.
func (c *Config) UseTor() bool {
	return c.file().Proxy.Tor
}

// TorStartupTimeout returns the Tor bootstrap budget.
func (c *Config) TorStartupTimeout() time.Duration {
	if d := c.file().Proxy.TorStartupTimeout; d > 0 {
		return d
	}
	return proxy.DefaultTorStartupTimeout
}

// LookupURL returns the public IP echo service, or "" for the default.
func (c *Config) LookupURL() string {
	return c.file().Proxy.LookupURL
}

// Telegram returns the bot credentials.
func (c *Config) Telegram() TelegramSection {
	return c.file().Telegram
}

// HasTelegram reports whether both the bot token and the chat ID are set.
func (c *Config) HasTelegram() bool {
	t := c.Telegram()
	return t.Token != "" && t.ChatID != ""
}

// setDuration overwrites *dst when v is positive.
func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}
