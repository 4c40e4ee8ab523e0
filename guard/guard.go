// Package guard decides whether a protected view may render for the current session.
package guard

import (
	"time"

	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/session"
	"github.com/jrsteele09/go-booking-session/token"
)

// Action is what the router does with a request.
type Action string

const (
	Allow       Action = "allow"
	Redirect    Action = "redirect"
	Placeholder Action = "placeholder" // session still loading, render nothing yet
)

// Input is everything a decision depends on.
type Input struct {
	Session  session.Snapshot
	Required principal.Kind // empty when any session, or none, will do
	Path     string
}

type Decision struct {
	Action   Action
	Location string // set for Redirect
}

// Decide applies the routing rules in order:
//
//	neither kind signed in, not on a login page    -> generic login
//	user required, user signed out                 -> owner dashboard if owner signed in, else user login
//	owner required, owner signed out               -> user dashboard if user signed in, else owner login
//	signed in for the kind whose login page this is -> that kind's dashboard
//	otherwise                                      -> allow
//
// A redirect to the current path is an Allow.
func Decide(in Input) Decision {
	if in.Session.Loading {
		return Decision{Action: Placeholder}
	}
	snap := in.Session
	user := snap.Authenticated(principal.KindUser)
	owner := snap.Authenticated(principal.KindOwner)
	loginKind, onLogin := loginPageKind(in.Path)

	var location string
	switch {
	case !user && !owner && !onLogin:
		location = principal.PathLogin
	case in.Required == principal.KindUser && !user:
		location = principal.KindUser.LoginPath()
		if owner {
			location = principal.KindOwner.DashboardPath()
		}
	case in.Required == principal.KindOwner && !owner:
		location = principal.KindOwner.LoginPath()
		if user {
			location = principal.KindUser.DashboardPath()
		}
	case onLogin && snap.Authenticated(loginKind) && (in.Required == "" || in.Required == loginKind):
		location = loginKind.DashboardPath()
	}

	if location == "" || location == in.Path {
		return Decision{Action: Allow}
	}
	return Decision{Action: Redirect, Location: location}
}

// NeedsRefresh reports whether kind's token is inside the expiry skew window and
// should be refreshed before the view renders.
func NeedsRefresh(snap session.Snapshot, kind principal.Kind, now time.Time) bool {
	raw := snap.Token(kind)
	return raw != "" && token.IsExpired(raw, now)
}

// loginPageKind reports whether path is a sign in or sign up page, and for which kind.
func loginPageKind(path string) (principal.Kind, bool) {
	switch path {
	case principal.PathLogin, principal.PathRegister:
		return principal.KindUser, true
	case principal.PathOwnerLogin, principal.PathOwnerRegister:
		return principal.KindOwner, true
	}
	return "", false
}
