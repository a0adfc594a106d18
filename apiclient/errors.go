package apiclient

import (
	"fmt"
	"net/http"

	errs "github.com/jrsteele09/school-portal/internal/errors"
)

// RequestError is a response with a non-success status.
type RequestError struct {
	Operation  string
	Method     string
	Path       string
	StatusCode int
	Body       []byte
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %s %s returned %d %s", e.Operation, e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *RequestError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return errs.ErrUnauthorized
	case http.StatusForbidden:
		return errs.ErrForbidden
	case http.StatusNotFound:
		return errs.ErrNotFound
	default:
		return errs.ErrRequestFailed
	}
}

// NetworkError is a request that received no response.
type NetworkError struct {
	Operation string
	Err       error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Operation, errs.ErrNetwork, e.Err)
}

func (e *NetworkError) Unwrap() []error {
	return []error{errs.ErrNetwork, e.Err}
}

// SessionExpiredError is returned when a 401 could not be recovered because
// the refresh failed. The session has been logged out. Original is the 401
// that triggered the refresh.
type SessionExpiredError struct {
	Original *RequestError
	Cause    error
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("%s: %v: refresh failed: %v", e.Original.Operation, errs.ErrSessionExpired, e.Cause)
}

func (e *SessionExpiredError) Unwrap() []error {
	return []error{errs.ErrSessionExpired, e.Original}
}
