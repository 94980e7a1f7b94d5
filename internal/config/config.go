// Package config loads and validates the client configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root client configuration.
//
// Example YAML:
//
//	registry:
//	  baseUrl: "https://ismp.crpt.ru"
//	  token: "..."
//	rateLimit:
//	  capacity: 10
//	  window: 1s
//	submit:
//	  concurrency: 4
type Config struct {
	// Registry describes the remote service
	Registry RegistryConfig `json:"registry" yaml:"registry"`

	// RateLimit is the outbound call cap shared by every submission
	RateLimit RateLimitConfig `json:"rateLimit" yaml:"rateLimit"`

	// Breaker trips after repeated registry failures
	Breaker BreakerConfig `json:"breaker" yaml:"breaker"`

	// Submit controls batch behaviour
	Submit SubmitConfig `json:"submit" yaml:"submit"`

	// Logging configures the structured logger
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// RegistryConfig contains connection settings for the registry API.
type RegistryConfig struct {
	BaseURL      string            `json:"baseUrl" yaml:"baseUrl"`
	DocumentPath string            `json:"documentPath" yaml:"documentPath"`
	Token        string            `json:"token,omitempty" yaml:"token,omitempty"`
	Timeout      Duration          `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	UserAgent    string            `json:"userAgent,omitempty" yaml:"userAgent,omitempty"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// RateLimitConfig is the admission gate setting: Capacity calls per Window.
type RateLimitConfig struct {
	Capacity int      `json:"capacity" yaml:"capacity"`
	Window   Duration `json:"window" yaml:"window"`
}

// BreakerConfig configures the circuit breaker around registry calls.
type BreakerConfig struct {
	Enabled     bool     `json:"enabled" yaml:"enabled"`
	MaxFailures int      `json:"maxFailures,omitempty" yaml:"maxFailures,omitempty"`
	OpenTimeout Duration `json:"openTimeout,omitempty" yaml:"openTimeout,omitempty"`
}

// SubmitConfig controls how documents are submitted.
type SubmitConfig struct {
	// Concurrency is the number of documents in flight at once
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// Validate checks documents against the schema before sending
	Validate bool `json:"validate" yaml:"validate"`

	// Extract maps result names to JSONPath expressions on the response body
	Extract map[string]string `json:"extract,omitempty" yaml:"extract,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns a configuration with every field populated.
func Default() *Config {
	return &Config{
		Registry: RegistryConfig{
			BaseURL:      "https://ismp.crpt.ru",
			DocumentPath: "/api/v3/lk/documents/create",
			Timeout:      Duration(30 * time.Second),
			UserAgent:    "crpt",
			Headers:      map[string]string{},
		},
		RateLimit: RateLimitConfig{
			Capacity: 10,
			Window:   Duration(time.Second),
		},
		Breaker: BreakerConfig{
			Enabled:     true,
			MaxFailures: 5,
			OpenTimeout: Duration(60 * time.Second),
		},
		Submit: SubmitConfig{
			Concurrency: 4,
			Validate:    true,
			Extract:     map[string]string{"docId": "$.value"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads a configuration file and overlays it on the defaults.
//
// The file format is determined by extension:
//   - .json -> JSON
//   - .yaml, .yml, anything else -> YAML
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data, path)
}

// Parse overlays configuration data on the defaults.
func Parse(data []byte, path string) (*Config, error) {
	cfg := Default()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	return cfg, nil
}

// DocumentURL joins the base URL and document path.
func (c *Config) DocumentURL() string {
	return strings.TrimRight(c.Registry.BaseURL, "/") + "/" + strings.TrimLeft(c.Registry.DocumentPath, "/")
}
