package errors

import (
	"errors"
	"fmt"
)

// Common error types for the admin console session layer
var (
	// Session lifecycle errors
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingCredentials = errors.New("email and password are required")
	ErrRefreshRejected    = errors.New("refresh token rejected")
	ErrInvalidToken       = errors.New("invalid token")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrNoRefreshToken     = errors.New("no refresh token available")
	ErrMalformedSession   = errors.New("malformed session")
	ErrTransport          = errors.New("transport failure")
	ErrUpstream           = errors.New("upstream service error")
	ErrUnexpectedResponse = errors.New("unexpected upstream response")
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
