package errors

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the session packages. Package level sentinels such as
// authapi.ErrNetworkFailure are aliases of these, so callers can test against either.
var (
	// Remote API errors
	ErrNetworkFailure     = errors.New("network failure")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrServer             = errors.New("auth server error")

	// Token errors
	ErrDecode       = errors.New("token decode error")
	ErrTokenExpired = errors.New("token expired")

	// Session errors
	ErrConcurrentOperation = errors.New("operation already in flight for this principal kind")
	ErrNotAuthenticated    = errors.New("not authenticated")

	// Storage errors
	ErrNotFound     = errors.New("not found")
	ErrInvalidKind  = errors.New("invalid principal kind")
	ErrInvalidScope = errors.New("invalid scope")
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
