package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvCookies    = "LOOTER_COOKIES"
	EnvPublishers = "LOOTER_PUBLISHERS"
	EnvBackend    = "LOOTER_BACKEND"
	EnvLoop       = "LOOTER_LOOP"
	EnvHeadless   = "LOOTER_HEADLESS"
	EnvDebug      = "LOOTER_DEBUG"
	EnvLogFile    = "LOOTER_LOG_FILE"
	EnvCodesFile  = "LOOTER_CODES_FILE"
	EnvNotifyURL  = "LOOTER_NOTIFY_URL"
)

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides cfg with LOOTER_* variables found by lookup.
// os.LookupEnv is the usual lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	var errs []error

	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = b
	}

	str(EnvCookies, &cfg.Session.CookieFile)
	str(EnvPublishers, &cfg.Session.PublishersFile)
	str(EnvBackend, &cfg.Run.Backend)
	boolean(EnvLoop, &cfg.Run.Loop)
	boolean(EnvHeadless, &cfg.Browser.Headless)
	boolean(EnvDebug, &cfg.Log.Debug)
	str(EnvLogFile, &cfg.Log.File)
	str(EnvCodesFile, &cfg.Codes.Path)
	str(EnvNotifyURL, &cfg.Notifications.URL)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}
