package apiclient

import (
	"fmt"
	"net/http"
)

// APIError represents an error response from the endpoint.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsUnavailable reports a 503, which the readiness probe returns while the
// transfer server is not accepting connections.
func (e *APIError) IsUnavailable() bool {
	return e.StatusCode == http.StatusServiceUnavailable
}

// IsNotFound reports a 404, e.g. /metrics with metrics disabled.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
