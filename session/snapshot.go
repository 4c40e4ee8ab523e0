package session

import (
	"github.com/jrsteele09/go-booking-session/principal"
)

// Snapshot is a read-only copy of the session. A kind's principal and token are
// always both set or both empty.
type Snapshot struct {
	User             *principal.UserPrincipal  `json:"user"`
	Owner            *principal.OwnerPrincipal `json:"owner"`
	AccessToken      string                    `json:"-"`
	OwnerAccessToken string                    `json:"-"`
	Loading          bool                      `json:"loading"`
	UserState        State                     `json:"userState"`
	OwnerState       State                     `json:"ownerState"`
	Version          uint64                    `json:"version"`
}

// IsAuthenticated reports whether either kind is authenticated.
func (s Snapshot) IsAuthenticated() bool {
	return s.Authenticated(principal.KindUser) || s.Authenticated(principal.KindOwner)
}

// Authenticated reports whether kind holds both a principal and a token.
func (s Snapshot) Authenticated(kind principal.Kind) bool {
	switch kind {
	case principal.KindUser:
		return s.User != nil && s.AccessToken != ""
	case principal.KindOwner:
		return s.Owner != nil && s.OwnerAccessToken != ""
	}
	return false
}

// Token returns the bearer token held for kind.
func (s Snapshot) Token(kind principal.Kind) string {
	if kind == principal.KindOwner {
		return s.OwnerAccessToken
	}
	return s.AccessToken
}

// State returns the lifecycle state of kind.
func (s Snapshot) State(kind principal.Kind) State {
	if kind == principal.KindOwner {
		return s.OwnerState
	}
	return s.UserState
}

// Principal returns the principal held for kind, or nil.
func (s Snapshot) Principal(kind principal.Kind) principal.Principal {
	switch {
	case kind == principal.KindUser && s.User != nil:
		return s.User
	case kind == principal.KindOwner && s.Owner != nil:
		return s.Owner
	}
	return nil
}

// snapshotLocked copies the session. m.mu must be held.
func (m *Manager) snapshotLocked() Snapshot {
	snap := Snapshot{Loading: m.hydrating, Version: m.version}

	user := m.kinds[principal.KindUser]
	snap.UserState = user.state
	if u, ok := user.principal.(*principal.UserPrincipal); ok && user.token != "" {
		cp := *u
		snap.User, snap.AccessToken = &cp, user.token
	}

	owner := m.kinds[principal.KindOwner]
	snap.OwnerState = owner.state
	if o, ok := owner.principal.(*principal.OwnerPrincipal); ok && owner.token != "" {
		cp := *o
		snap.Owner, snap.OwnerAccessToken = &cp, owner.token
	}

	if user.state.InFlight() || owner.state.InFlight() {
		snap.Loading = true
	}
	return snap
}
