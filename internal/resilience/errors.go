// Package resilience classifies upstream failures and retries the transient ones.
package resilience

import (
	"errors"
	"net"
	"syscall"
)

// TransientError wraps an error that is safe to retry: an HTTP 429/5xx, a
// network timeout, or an upstream API status such as OVER_QUERY_LIMIT.
type TransientError struct {
	Err        error
	StatusCode int
	Status     string
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// NewTransientStatus wraps an error as transient with the API-level status
// string the upstream reported in an otherwise successful HTTP response.
func NewTransientStatus(err error, status string) *TransientError {
	return &TransientError{Err: err, Status: status}
}

// IsTransient reports whether err, or anything it wraps, is worth retrying: a
// TransientError, a network timeout, or a reset or refused connection.
// Classify raw transport errors before wrapping them with eris.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED)
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
