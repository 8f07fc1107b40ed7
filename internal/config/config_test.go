package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"session.cookie_file", cfg.Session.CookieFile, "cookies.txt"},
		{"session.publishers_file", cfg.Session.PublishersFile, "publishers.txt"},
		{"run.backend", cfg.Run.Backend, BackendProtocol},
		{"run.loop", cfg.Run.Loop, false},
		{"run.interval", cfg.Run.Interval(), 24 * time.Hour},
		{"run.cooldown", cfg.Run.Cooldown(), 60 * time.Second},
		{"browser.headless", cfg.Browser.Headless, true},
		{"browser.wait_timeout", cfg.Browser.WaitTimeout(), 30 * time.Second},
		{"protocol.page_size", cfg.Protocol.PageSize, 999},
		{"protocol.concurrency", cfg.Protocol.Concurrency, 8},
		{"protocol.timeout", cfg.Protocol.Timeout(), 30 * time.Second},
		{"codes.path", cfg.Codes.Path, "game_codes.txt"},
		{"log.file", cfg.Log.File, "looter.log"},
		{"notifications.on_error", cfg.Notifications.OnError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults().Validate() = %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		dir := t.TempDir()
		content := `
[session]
cookie_file = "secrets/cookies.txt"

[run]
backend = "browser"
loop = true
interval_hours = 12
cooldown_seconds = 5

[browser]
headless = false
dump = true

[protocol]
concurrency = 2

[log]
file = "/var/log/looter.log"
debug = true

[notifications]
url = "https://ntfy.sh/my-loot"
on_complete = false
`
		path := filepath.Join(dir, FileName)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}

		if cfg.Run.Backend != BackendBrowser || !cfg.Run.Loop || cfg.Run.Interval() != 12*time.Hour {
			t.Errorf("run = %+v", cfg.Run)
		}
		if cfg.Browser.Headless || !cfg.Browser.Dump {
			t.Errorf("browser = %+v", cfg.Browser)
		}
		if cfg.Protocol.Concurrency != 2 || cfg.Protocol.PageSize != 999 {
			t.Errorf("protocol = %+v, want concurrency 2 and default page size", cfg.Protocol)
		}
		if want := filepath.Join(dir, "secrets", "cookies.txt"); cfg.Session.CookieFile != want {
			t.Errorf("cookie_file = %q, want %q", cfg.Session.CookieFile, want)
		}
		if want := filepath.Join(dir, "publishers.txt"); cfg.Session.PublishersFile != want {
			t.Errorf("publishers_file = %q, want %q", cfg.Session.PublishersFile, want)
		}
		if cfg.Log.File != "/var/log/looter.log" {
			t.Errorf("absolute log path rewritten to %q", cfg.Log.File)
		}
		if cfg.Notifications.OnComplete || !cfg.Notifications.OnError {
			t.Errorf("notifications = %+v", cfg.Notifications)
		}
	})

	t.Run("unknown keys rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		content := "[run]\nbackend = \"protocol\"\nintervall_hours = 3\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		_, err := Load(path)
		if err == nil || !strings.Contains(err.Error(), "run.intervall_hours") {
			t.Errorf("Load = %v, want unknown key error naming run.intervall_hours", err)
		}
	})

	t.Run("invalid toml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		if err := os.WriteFile(path, []byte("[run\nbackend ="), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Error("expected decode error")
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing explicit path")
		}
	})
}

func TestLoad_WalksUp(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, FileName), []byte("[run]\nloop = true\n"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Run.Loop {
		t.Error("config from parent directory was not loaded")
	}
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Run.Backend != BackendProtocol || cfg.Session.CookieFile != "cookies.txt" {
		t.Errorf("got %+v, want defaults", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults ok", func(*Config) {}, ""},
		{"bad backend", func(c *Config) { c.Run.Backend = "selenium" }, "run.backend"},
		{"empty cookie file", func(c *Config) { c.Session.CookieFile = "" }, "session.cookie_file"},
		{"zero interval", func(c *Config) { c.Run.IntervalHours = 0 }, "run.interval_hours"},
		{"negative cooldown", func(c *Config) { c.Run.CooldownSeconds = -1 }, "run.cooldown_seconds"},
		{"zero wait", func(c *Config) { c.Browser.WaitTimeoutSeconds = 0 }, "browser.wait_timeout_seconds"},
		{"zero page size", func(c *Config) { c.Protocol.PageSize = 0 }, "protocol.page_size"},
		{"zero concurrency", func(c *Config) { c.Protocol.Concurrency = 0 }, "protocol.concurrency"},
		{"negative rate", func(c *Config) { c.Protocol.RequestsPerSecond = -1 }, "protocol.requests_per_second"},
		{"zero timeout", func(c *Config) { c.Protocol.TimeoutSeconds = 0 }, "protocol.timeout_seconds"},
		{"bad endpoint", func(c *Config) { c.Protocol.Endpoint = "not a url" }, "protocol.endpoint"},
		{"bad home url", func(c *Config) { c.Protocol.HomeURL = "ftp://x" }, "protocol.home_url"},
		{"empty codes path", func(c *Config) { c.Codes.Path = "" }, "codes.path"},
		{"bad notify url", func(c *Config) { c.Notifications.URL = "ntfy.sh/topic" }, "notifications.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_JoinsAllIssues(t *testing.T) {
	cfg := Defaults()
	cfg.Run.Backend = ""
	cfg.Codes.Path = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"run.backend", "codes.path"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestInitFile(t *testing.T) {
	dir := t.TempDir()

	path, err := InitFile(dir)
	if err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("generated file does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("generated file does not validate: %v", err)
	}

	if _, err := InitFile(dir); err == nil {
		t.Error("second InitFile should fail when the file exists")
	}
}
