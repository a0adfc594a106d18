package errors

import (
	"errors"
	"fmt"
)

// Common error types for the portal client
var (
	// Session errors
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrSessionExpired     = errors.New("session expired")
	ErrMalformedSnapshot  = errors.New("malformed session snapshot")
	ErrMissingAccessToken = errors.New("missing access token")

	// Request errors
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrRequestFailed    = errors.New("request failed")
	ErrNetwork          = errors.New("network error")
	ErrInvalidRequest   = errors.New("invalid request")
	ErrResponseTooLarge = errors.New("response too large")

	// General errors
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
