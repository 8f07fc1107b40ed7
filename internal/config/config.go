// Package config parses looter.toml, applies LOOTER_* environment
// overrides and reads the publisher allow-list.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the configuration file looked up by Load.
const FileName = "looter.toml"

// Claim backends.
const (
	BackendProtocol = "protocol"
	BackendBrowser  = "browser"
)

// Config is the top-level looter.toml configuration.
type Config struct {
	Session       SessionConfig       `toml:"session"`
	Run           RunConfig           `toml:"run"`
	Browser       BrowserConfig       `toml:"browser"`
	Protocol      ProtocolConfig      `toml:"protocol"`
	Codes         CodesConfig         `toml:"codes"`
	Log           LogConfig           `toml:"log"`
	Notifications NotificationsConfig `toml:"notifications"`
}

// SessionConfig locates the session inputs.
type SessionConfig struct {
	CookieFile     string `toml:"cookie_file"`
	PublishersFile string `toml:"publishers_file"`
}

// RunConfig controls the pass schedule and backend selection.
type RunConfig struct {
	Backend         string `toml:"backend"`
	Loop            bool   `toml:"loop"`
	IntervalHours   int    `toml:"interval_hours"`
	CooldownSeconds int    `toml:"cooldown_seconds"`
}

// Interval returns the loop interval.
func (r RunConfig) Interval() time.Duration {
	return time.Duration(r.IntervalHours) * time.Hour
}

// Cooldown returns the wait before retrying a failed pass.
func (r RunConfig) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// BrowserConfig controls the UI backend.
type BrowserConfig struct {
	Headless           bool   `toml:"headless"`
	Bin                string `toml:"bin"`
	WaitTimeoutSeconds int    `toml:"wait_timeout_seconds"`
	Dump               bool   `toml:"dump"`
}

// WaitTimeout returns the per-selector wait.
func (b BrowserConfig) WaitTimeout() time.Duration {
	return time.Duration(b.WaitTimeoutSeconds) * time.Second
}

// ProtocolConfig controls the GraphQL client and the protocol backend.
type ProtocolConfig struct {
	Endpoint          string  `toml:"endpoint"`
	HomeURL           string  `toml:"home_url"`
	PageSize          int     `toml:"page_size"`
	Concurrency       int     `toml:"concurrency"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
	UserAgent         string  `toml:"user_agent"` // empty uses the client default
}

// Timeout returns the HTTP client timeout.
func (p ProtocolConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// CodesConfig controls the redemption code file.
type CodesConfig struct {
	Path      string `toml:"path"`
	Separator string `toml:"separator"`
}

// LogConfig controls the log file.
type LogConfig struct {
	File  string `toml:"file"`
	Debug bool   `toml:"debug"`
}

// NotificationsConfig controls webhook/ntfy.sh notifications.
type NotificationsConfig struct {
	URL        string `toml:"url"`
	Title      string `toml:"title"`
	OnComplete bool   `toml:"on_complete"`
	OnError    bool   `toml:"on_error"`
}

// Validate checks the configuration for issues that would cause confusing
// runtime failures. It returns all found issues joined together.
func (c *Config) Validate() error {
	var errs []error

	if c.Session.CookieFile == "" {
		errs = append(errs, fmt.Errorf("session.cookie_file must not be empty"))
	}
	switch c.Run.Backend {
	case BackendProtocol, BackendBrowser:
	default:
		errs = append(errs, fmt.Errorf("run.backend must be %q or %q, got %q", BackendProtocol, BackendBrowser, c.Run.Backend))
	}
	if c.Run.IntervalHours < 1 {
		errs = append(errs, fmt.Errorf("run.interval_hours must be >= 1"))
	}
	if c.Run.CooldownSeconds < 0 {
		errs = append(errs, fmt.Errorf("run.cooldown_seconds must be >= 0"))
	}
	if c.Browser.WaitTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("browser.wait_timeout_seconds must be >= 1"))
	}
	if c.Protocol.PageSize < 1 {
		errs = append(errs, fmt.Errorf("protocol.page_size must be >= 1"))
	}
	if c.Protocol.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("protocol.concurrency must be >= 1"))
	}
	if c.Protocol.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("protocol.requests_per_second must be >= 0 (0 = unlimited)"))
	}
	if c.Protocol.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("protocol.timeout_seconds must be >= 1"))
	}
	if !isHTTPURL(c.Protocol.Endpoint) {
		errs = append(errs, fmt.Errorf("protocol.endpoint must be a valid http or https URL"))
	}
	if !isHTTPURL(c.Protocol.HomeURL) {
		errs = append(errs, fmt.Errorf("protocol.home_url must be a valid http or https URL"))
	}
	if c.Codes.Path == "" {
		errs = append(errs, fmt.Errorf("codes.path must not be empty"))
	}
	if c.Notifications.URL != "" && !isHTTPURL(c.Notifications.URL) {
		errs = append(errs, fmt.Errorf("notifications.url must be a valid http or https URL"))
	}

	return errors.Join(errs...)
}

func isHTTPURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Defaults returns a Config with the documented defaults.
func Defaults() Config {
	return Config{
		Session: SessionConfig{
			CookieFile:     "cookies.txt",
			PublishersFile: "publishers.txt",
		},
		Run: RunConfig{
			Backend:         BackendProtocol,
			Loop:            false,
			IntervalHours:   24,
			CooldownSeconds: 60,
		},
		Browser: BrowserConfig{
			Headless:           true,
			WaitTimeoutSeconds: 30,
		},
		Protocol: ProtocolConfig{
			Endpoint:          "https://gaming.amazon.com/graphql",
			HomeURL:           "https://gaming.amazon.com/home",
			PageSize:          999,
			Concurrency:       8,
			RequestsPerSecond: 4,
			TimeoutSeconds:    30,
		},
		Codes: CodesConfig{
			Path:      "game_codes.txt",
			Separator: "========================\n========================",
		},
		Log: LogConfig{
			File: "looter.log",
		},
		Notifications: NotificationsConfig{
			OnComplete: true,
			OnError:    true,
		},
	}
}

// Load reads looter.toml from the given path. If path is empty, it walks up
// from the current working directory looking for looter.toml and falls back
// to Defaults when none exists. Relative file paths in the result are
// resolved against the directory holding the config file. Returns an error
// if the file contains unknown keys (likely typos).
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := findConfig()
		if errors.Is(err, errNotFound) {
			cfg := Defaults()
			return &cfg, nil
		}
		if err != nil {
			return nil, err
		}
		path = found
	}

	cfg := Defaults()
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s (possible typos?)", path, joinKeys(keys))
	}

	cfg.resolvePaths(filepath.Dir(path))
	return &cfg, nil
}

func (c *Config) resolvePaths(dir string) {
	for _, p := range []*string{&c.Session.CookieFile, &c.Session.PublishersFile, &c.Codes.Path, &c.Log.File} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// joinKeys formats a slice of key names for display.
func joinKeys(keys []string) string {
	return strings.Join(keys, ", ")
}

var errNotFound = errors.New("config: " + FileName + " not found")

// findConfig walks up from the current directory looking for looter.toml.
func findConfig() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errNotFound
		}
		dir = parent
	}
}

// InitFile writes a default looter.toml template to the given directory.
func InitFile(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config: %s already exists at %s", FileName, path)
	}

	content := `# looter.toml — LootKing configuration
# Relative paths are resolved against this file's directory.

[session]
cookie_file = "cookies.txt"         # Netscape cookie export of a signed-in session
publishers_file = "publishers.txt"  # one publisher per line; "all" or missing = no filter

[run]
backend = "protocol"   # "protocol" (GraphQL orders) or "browser" (UI automation)
loop = false           # keep running and claim again every interval
interval_hours = 24
cooldown_seconds = 60  # wait before retrying a failed pass when looping

[browser]
headless = true
bin = ""                   # Chromium binary; empty downloads a managed build
wait_timeout_seconds = 30
dump = false               # log the landing page markup before claiming

[protocol]
page_size = 999
concurrency = 8            # claims in flight at once
requests_per_second = 4    # order pacing; 0 = unlimited
timeout_seconds = 30

[codes]
path = "game_codes.txt"

[log]
file = "looter.log"
debug = false

[notifications]
url = ""            # ntfy.sh topic URL or any HTTP webhook (empty = disabled)
on_complete = true  # notify after each successful pass
on_error = true     # notify on failed passes and session errors
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("config: write %s: %w", path, err)
	}
	return path, nil
}
