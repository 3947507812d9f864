package idp

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUpstream wraps every failure talking to the provider.
	ErrUpstream = errors.New("identity provider request failed")
	// ErrInvalidConfig is returned by New for missing settings.
	ErrInvalidConfig = errors.New("invalid identity provider config")
)

// APIError is a non-2xx provider response.
type APIError struct {
	Op      string
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("idp %s: %d %s: %s", e.Op, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("idp %s: %d %s", e.Op, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrUpstream
}

// IsNotFound reports whether err is a 404 from the provider.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// StatusOf returns the provider status carried by err, or 0.
func StatusOf(err error) int {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status
	}
	return 0
}
