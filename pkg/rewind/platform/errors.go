package platform

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotAuthenticated is returned by API calls issued before a session
// has been established. This is fatal for a recovery run.
var ErrNotAuthenticated = errors.New("platform client not authenticated")

// APIError is a non-2xx response from the platform, carrying the HTTP
// status and the platform's machine-readable error code.
type APIError struct {
	// Status is the HTTP status code.
	Status int

	// Code is the platform error code (e.g. "trashed", "rate_limit_exceeded").
	Code string

	// Message is the human-readable description from the response body.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform: %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("platform: %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a platform 404: the item no longer
// exists or is outside the reachable trash window.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsForbidden reports whether err is a platform 403: the item was
// trashed or untrashed outside the queried window, or the session lacks
// permission.
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusForbidden
}

// IsRateLimited reports whether err is a platform 429. Rate-limited work
// is requeued by the batch executor, never dropped.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}
