package submit

import (
	"errors"
	"fmt"
)

var (
	// ErrCircuitOpen is returned while the breaker rejects calls. The gate
	// is not consulted for rejected calls.
	ErrCircuitOpen = errors.New("submit: circuit open")

	// ErrInvalidDocument wraps schema validation failures.
	ErrInvalidDocument = errors.New("submit: invalid document")
)

// StatusError is a non-2xx registry response.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

// Error implements error.
func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	if body == "" {
		return fmt.Sprintf("registry returned %s", e.Status)
	}
	return fmt.Sprintf("registry returned %s: %s", e.Status, body)
}

// Temporary reports whether the failure is on the registry side.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500
}
