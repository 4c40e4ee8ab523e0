package session

import (
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/pkg/errors"
)

// State is the lifecycle position of one principal kind.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// InFlight reports whether a remote call is outstanding for the kind.
func (s State) InFlight() bool {
	return s == StateAuthenticating || s == StateRefreshing
}

// kindState is the session of one principal kind. principal and token are set together
// or not at all.
type kindState struct {
	state      State
	principal  principal.Principal
	token      string
	generation uint64 // bumped on every clear; late results from older generations are dropped
}

func (ks kindState) authenticated() bool {
	return ks.principal != nil && ks.token != ""
}

type transitionOp int

const (
	opBeginAuth transitionOp = iota
	opAuthSucceeded
	opAuthFailed
	opBeginRefresh
	opRefreshSucceeded
	opRestore
	opClear
)

func (op transitionOp) String() string {
	return [...]string{"begin_auth", "auth_succeeded", "auth_failed", "begin_refresh", "refresh_succeeded", "restore", "clear"}[op]
}

type transition struct {
	op        transitionOp
	principal principal.Principal
	token     string
}

// reduce is the only place a kind's session changes.
func reduce(ks kindState, t transition) (kindState, error) {
	switch t.op {
	case opBeginAuth:
		if ks.state.InFlight() {
			return ks, ErrConcurrentOperation
		}
		ks.state = StateAuthenticating

	case opAuthSucceeded:
		if ks.state != StateAuthenticating || t.principal == nil || t.token == "" {
			return ks, errors.Wrapf(errInvalidTransition, "%s from %s", t.op, ks.state)
		}
		ks.state, ks.principal, ks.token = StateAuthenticated, t.principal, t.token

	case opAuthFailed:
		if ks.state != StateAuthenticating {
			return ks, errors.Wrapf(errInvalidTransition, "%s from %s", t.op, ks.state)
		}
		// A failed re-login leaves the existing session in place.
		ks.state = StateUnauthenticated
		if ks.authenticated() {
			ks.state = StateAuthenticated
		}

	case opBeginRefresh:
		if ks.state.InFlight() {
			return ks, ErrConcurrentOperation
		}
		if !ks.authenticated() {
			return ks, ErrNotAuthenticated
		}
		ks.state = StateRefreshing

	case opRefreshSucceeded:
		if ks.state != StateRefreshing || t.token == "" {
			return ks, errors.Wrapf(errInvalidTransition, "%s from %s", t.op, ks.state)
		}
		ks.state, ks.token = StateAuthenticated, t.token
		if t.principal != nil {
			ks.principal = t.principal
		}

	case opRestore:
		if ks.state != StateUnauthenticated {
			return ks, ErrConcurrentOperation
		}
		if t.principal == nil || t.token == "" {
			return ks, errors.Wrapf(errInvalidTransition, "%s without credentials", t.op)
		}
		ks.state, ks.principal, ks.token = StateAuthenticated, t.principal, t.token

	case opClear:
		ks = kindState{state: StateUnauthenticated, generation: ks.generation + 1}

	default:
		return ks, errors.Wrapf(errInvalidTransition, "unknown op %d", t.op)
	}
	return ks, nil
}
