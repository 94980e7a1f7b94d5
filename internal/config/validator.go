package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Path    string
	Message string
}

// Error returns the error message
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is every problem found in one configuration.
type ValidationErrors []ValidationError

// Error joins the individual messages.
func (ve ValidationErrors) Error() string {
	msgs := make([]string, len(ve))
	for i, e := range ve {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found.
func Validate(cfg *Config) ValidationErrors {
	var errors ValidationErrors

	// Registry
	if cfg.Registry.BaseURL == "" {
		errors = append(errors, ValidationError{
			Path:    "registry.baseUrl",
			Message: "baseUrl is required",
		})
	} else if u, err := url.Parse(cfg.Registry.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, ValidationError{
			Path:    "registry.baseUrl",
			Message: fmt.Sprintf("invalid URL: %s", cfg.Registry.BaseURL),
		})
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errors = append(errors, ValidationError{
			Path:    "registry.baseUrl",
			Message: fmt.Sprintf("unsupported scheme: %s", u.Scheme),
		})
	}

	if cfg.Registry.DocumentPath == "" {
		errors = append(errors, ValidationError{
			Path:    "registry.documentPath",
			Message: "documentPath is required",
		})
	}

	if cfg.Registry.Timeout < 0 {
		errors = append(errors, ValidationError{
			Path:    "registry.timeout",
			Message: "timeout cannot be negative",
		})
	}

	// Rate limit
	if cfg.RateLimit.Capacity <= 0 {
		errors = append(errors, ValidationError{
			Path:    "rateLimit.capacity",
			Message: fmt.Sprintf("capacity must be positive, got %d", cfg.RateLimit.Capacity),
		})
	}

	if cfg.RateLimit.Window <= 0 {
		errors = append(errors, ValidationError{
			Path:    "rateLimit.window",
			Message: fmt.Sprintf("window must be positive, got %s", cfg.RateLimit.Window),
		})
	}

	// Breaker
	if cfg.Breaker.Enabled {
		if cfg.Breaker.MaxFailures <= 0 {
			errors = append(errors, ValidationError{
				Path:    "breaker.maxFailures",
				Message: "maxFailures must be positive when the breaker is enabled",
			})
		}
		if cfg.Breaker.OpenTimeout <= 0 {
			errors = append(errors, ValidationError{
				Path:    "breaker.openTimeout",
				Message: "openTimeout must be positive when the breaker is enabled",
			})
		}
	}

	// Submit
	if cfg.Submit.Concurrency < 1 {
		errors = append(errors, ValidationError{
			Path:    "submit.concurrency",
			Message: "concurrency must be at least 1",
		})
	}

	for name, path := range cfg.Submit.Extract {
		if path == "" {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("submit.extract.%s", name),
				Message: "extract path cannot be empty",
			})
		} else if !strings.HasPrefix(path, "$") {
			errors = append(errors, ValidationError{
				Path:    fmt.Sprintf("submit.extract.%s", name),
				Message: fmt.Sprintf("extract path must start with $: %s", path),
			})
		}
	}

	// Logging
	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errors = append(errors, ValidationError{
			Path:    "logging.level",
			Message: fmt.Sprintf("invalid level: %s", cfg.Logging.Level),
		})
	}

	switch strings.ToLower(cfg.Logging.Format) {
	case "", "console", "json":
	default:
		errors = append(errors, ValidationError{
			Path:    "logging.format",
			Message: fmt.Sprintf("invalid format: %s", cfg.Logging.Format),
		})
	}

	return errors
}
