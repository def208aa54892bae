package config

import (
	"strings"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvTelegramToken  = "TELEGRAM_BOT_TOKEN"
	EnvTelegramChatID = "TELEGRAM_CHAT_ID"
	EnvProxyServer    = "PROXY_SERVER"
	EnvProxyUser      = "PROXY_USER"
	EnvProxyPass      = "PROXY_PASS"
)

// File represents the structure of the .citawatch.yaml configuration file.
// Zero values mean "use the component default".
type File struct {
	// Defaults are applied to every entry of TargetList.
	Defaults TargetConfig `yaml:"defaults,omitempty"`

	// TargetList are the monitored booking flows.
	TargetList []TargetConfig `yaml:"targets,omitempty"`

	Watch      WatchSection      `yaml:"watch,omitempty"`
	Browser    BrowserSection    `yaml:"browser,omitempty"`
	Proxy      ProxySection      `yaml:"proxy,omitempty"`
	Telegram   TelegramSection   `yaml:"telegram,omitempty"`
	Classifier ClassifierSection `yaml:"classifier,omitempty"`
}

// WatchSection tunes the round scheduler and the notification gate.
type WatchSection struct {
	HitCooldown   time.Duration `yaml:"hitCooldown,omitempty"`
	BlockCooldown time.Duration `yaml:"blockCooldown,omitempty"`
	ErrorCooldown time.Duration `yaml:"errorCooldown,omitempty"`
	RoundBase     time.Duration `yaml:"roundBase,omitempty"`
	RoundJitter   time.Duration `yaml:"roundJitter,omitempty"`
	RoundMin      time.Duration `yaml:"roundMin,omitempty"`

	// BlockThreshold is the number of consecutive BLOCKED rounds that
	// triggers a block alert.
	BlockThreshold int `yaml:"blockThreshold,omitempty"`

	// SendEvidence attaches the screenshot and markup to hit messages.
	SendEvidence *bool `yaml:"sendEvidence,omitempty"`
}

// BrowserSection tunes the browser and the navigation budgets.
type BrowserSection struct {
	Bin               string        `yaml:"bin,omitempty"`
	Headless          *bool         `yaml:"headless,omitempty"`
	NoSandbox         bool          `yaml:"noSandbox,omitempty"`
	NavigationTimeout time.Duration `yaml:"navigationTimeout,omitempty"`
	WidgetTimeout     time.Duration `yaml:"widgetTimeout,omitempty"`
	CalendarTimeout   time.Duration `yaml:"calendarTimeout,omitempty"`
	PollInterval      time.Duration `yaml:"pollInterval,omitempty"`
	PauseMin          time.Duration `yaml:"pauseMin,omitempty"`
	PauseMax          time.Duration `yaml:"pauseMax,omitempty"`
	Humanize          *bool         `yaml:"humanize,omitempty"`
	CaptureEvidence   *bool         `yaml:"captureEvidence,omitempty"`
	UserAgents        []string      `yaml:"userAgents,omitempty"`
	Locale            string        `yaml:"locale,omitempty"`
	AcceptLanguage    string        `yaml:"acceptLanguage,omitempty"`
}

// ProxySection configures the egress pool and the retry policy.
type ProxySection struct {
	// Servers are host:port or scheme://host:port proxy addresses.
	Servers  []string `yaml:"servers,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Password string   `yaml:"password,omitempty"`

	// SessionInUser appends a fresh sticky-session token to the username.
	SessionInUser bool `yaml:"sessionInUser,omitempty"`

	// RotateURL is requested before a retry to rotate the exit address.
	RotateURL string `yaml:"rotateUrl,omitempty"`

	// Tor uses an embedded Tor daemon as the pool.
	Tor               bool          `yaml:"tor,omitempty"`
	TorStartupTimeout time.Duration `yaml:"torStartupTimeout,omitempty"`

	MaxRetries  *int          `yaml:"maxRetries,omitempty"`
	AlwaysProxy bool          `yaml:"alwaysProxy,omitempty"`
	CheckHealth *bool         `yaml:"checkHealth,omitempty"`
	RetryDelay  time.Duration `yaml:"retryDelay,omitempty"`

	// LookupURL is the public IP echo service used by health checks.
	LookupURL string `yaml:"lookupUrl,omitempty"`
}

// TelegramSection holds the bot credentials. Prefer the environment.
type TelegramSection struct {
	Token   string `yaml:"token,omitempty"`
	ChatID  string `yaml:"chatId,omitempty"`
	BaseURL string `yaml:"baseUrl,omitempty"`
}

// ClassifierSection overrides the phrases and blank-page thresholds.
type ClassifierSection struct {
	NoSlots        []string `yaml:"noSlots,omitempty"`
	FreeMarkers    []string `yaml:"freeMarkers,omitempty"`
	Continue       []string `yaml:"continue,omitempty"`
	Tolerant       *bool    `yaml:"tolerant,omitempty"`
	MinTextChars   int      `yaml:"minTextChars,omitempty"`
	MinMarkupChars int      `yaml:"minMarkupChars,omitempty"`
}

// ApplyEnv overlays secrets from the environment. A set variable wins over
// the file. PROXY_SERVER may hold a comma-separated list.
func (cf *File) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvTelegramToken); v != "" {
		cf.Telegram.Token = v
	}
	if v := getenv(EnvTelegramChatID); v != "" {
		cf.Telegram.ChatID = v
	}
	if v := getenv(EnvProxyServer); v != "" {
		var servers []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
		cf.Proxy.Servers = servers
	}
	if v := getenv(EnvProxyUser); v != "" {
		cf.Proxy.Username = v
	}
	if v := getenv(EnvProxyPass); v != "" {
		cf.Proxy.Password = v
	}
}

// boolOr returns *b, or def when b is nil.
func boolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
