package gate

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every error New returns for bad settings.
var ErrInvalidConfig = errors.New("gate: invalid configuration")

// ErrCanceled is returned by Acquire when the caller gave up before being admitted.
// The returned error also wraps the context's error, so errors.Is works with
// context.Canceled and context.DeadlineExceeded too.
var ErrCanceled = errors.New("gate: acquire canceled")

// ConfigError describes a rejected constructor argument.
type ConfigError struct {
	Field string
	Value interface{}
}

// Error returns the error message
func (e *ConfigError) Error() string {
	return fmt.Sprintf("gate: %s must be positive, got %v", e.Field, e.Value)
}

// Unwrap lets errors.Is match ErrInvalidConfig.
func (e *ConfigError) Unwrap() error {
	return ErrInvalidConfig
}

func canceled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}
