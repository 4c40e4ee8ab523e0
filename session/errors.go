package session

import (
	errs "github.com/jrsteele09/go-booking-session/internal/errors"
	"github.com/pkg/errors"
)

var (
	// ErrConcurrentOperation rejects a login, register or refresh while another one is
	// in flight for the same kind.
	ErrConcurrentOperation = errs.ErrConcurrentOperation
	// ErrNotAuthenticated is returned when refreshing a kind without a session.
	ErrNotAuthenticated = errs.ErrNotAuthenticated
	// ErrSuperseded is returned when a remote call resolves after its kind was logged out.
	ErrSuperseded = errors.New("result superseded by logout")
	// ErrRefreshFailed wraps the cause of a refresh that logged the kind out.
	ErrRefreshFailed = errors.New("token refresh failed")

	errInvalidTransition = errors.New("invalid session transition")
)
