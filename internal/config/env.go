package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvToken        = "CRPT_TOKEN"
	EnvBaseURL      = "CRPT_BASE_URL"
	EnvRateCapacity = "CRPT_RATE_CAPACITY"
	EnvRateWindow   = "CRPT_RATE_WINDOW"
	EnvLogLevel     = "LOG_LEVEL"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays recognised environment variables on cfg.
func ApplyEnv(cfg *Config) error {
	if v := os.Getenv(EnvToken); v != "" {
		cfg.Registry.Token = v
	}
	if v := os.Getenv(EnvBaseURL); v != "" {
		cfg.Registry.BaseURL = v
	}
	if v := os.Getenv(EnvRateCapacity); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid integer %q", EnvRateCapacity, v)
		}
		cfg.RateLimit.Capacity = n
	}
	if v := os.Getenv(EnvRateWindow); v != "" {
		d, err := ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRateWindow, err)
		}
		cfg.RateLimit.Window = Duration(d)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	return nil
}
