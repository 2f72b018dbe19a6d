package robot

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoServer is returned when the transport has no executor URL.
var ErrNoServer = errors.New("robot: executor URL required")

// APIError is a non-2xx response from the executor.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("robot %s: executor error %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsRejected reports whether the executor refused the request as invalid
// (unknown action, bad format) rather than failing to run it.
func (e *APIError) IsRejected() bool {
	return e.StatusCode == http.StatusBadRequest
}

// IsServerError reports an executor-side failure (device error).
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500
}

// IsRejected reports whether err is an executor 400.
func IsRejected(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.IsRejected()
}
