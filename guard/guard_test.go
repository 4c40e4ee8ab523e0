package guard_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-booking-session/authapi"
	"github.com/jrsteele09/go-booking-session/authapi/fakeapi"
	"github.com/jrsteele09/go-booking-session/authevents"
	"github.com/jrsteele09/go-booking-session/guard"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/session"
	"github.com/jrsteele09/go-booking-session/tokenstore"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var (
	signedOut = session.Snapshot{}
	userOnly  = session.Snapshot{
		User:        &principal.UserPrincipal{ID: 1, Email: "a@b.com"},
		AccessToken: "user-token",
	}
	ownerOnly = session.Snapshot{
		Owner:            &principal.OwnerPrincipal{ID: 2, Email: "o@b.com"},
		OwnerAccessToken: "owner-token",
	}
	both = session.Snapshot{
		User:             userOnly.User,
		AccessToken:      userOnly.AccessToken,
		Owner:            ownerOnly.Owner,
		OwnerAccessToken: ownerOnly.OwnerAccessToken,
	}
)

func TestDecide(t *testing.T) {
	allow := guard.Decision{Action: guard.Allow}
	redirect := func(location string) guard.Decision {
		return guard.Decision{Action: guard.Redirect, Location: location}
	}

	tests := []struct {
		name     string
		snap     session.Snapshot
		required principal.Kind
		path     string
		want     guard.Decision
	}{
		{"loading never redirects", session.Snapshot{Loading: true}, principal.KindUser, "/dashboard/user", guard.Decision{Action: guard.Placeholder}},
		{"signed out on protected page", signedOut, principal.KindOwner, "/dashboard/owner", redirect("/login")},
		{"signed out on public page without requirement", signedOut, "", "/dashboard", redirect("/login")},
		{"signed out on login page", signedOut, "", "/login", allow},
		{"signed out on owner register page", signedOut, "", "/owner-register", allow},
		{"user view with owner session", ownerOnly, principal.KindUser, "/dashboard/user", redirect("/dashboard/owner")},
		{"user view without user session on login page", ownerOnly, principal.KindUser, "/owner-login", redirect("/dashboard/owner")},
		{"user view signed out on login page", signedOut, principal.KindUser, "/login", allow},
		{"owner view with user session", userOnly, principal.KindOwner, "/dashboard/owner", redirect("/dashboard/user")},
		{"owner view signed out on owner login page", signedOut, principal.KindOwner, "/owner-login", allow},
		{"user on user login page", userOnly, principal.KindUser, "/login", redirect("/dashboard/user")},
		{"owner on owner login page", ownerOnly, "", "/owner-login", redirect("/dashboard/owner")},
		{"user on owner login page", userOnly, "", "/owner-login", allow},
		{"user view allowed", userOnly, principal.KindUser, "/dashboard/user", allow},
		{"owner view allowed", both, principal.KindOwner, "/dashboard/owner", allow},
		{"any session on shared page", ownerOnly, "", "/dashboard", allow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := guard.Decide(guard.Input{Session: tt.snap, Required: tt.required, Path: tt.path})
			require.Equal(t, tt.want, got)
		})
	}
}

func TestNeedsRefresh(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	sign := func(exp time.Time) string {
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"id": 1, "type": "owner", "exp": exp.Unix(),
		}).SignedString([]byte("secret"))
		require.NoError(t, err)
		return raw
	}

	snap := ownerOnly
	snap.OwnerAccessToken = sign(now.Add(time.Hour))
	require.False(t, guard.NeedsRefresh(snap, principal.KindOwner, now))
	require.False(t, guard.NeedsRefresh(snap, principal.KindUser, now), "no user token to refresh")

	snap.OwnerAccessToken = sign(now.Add(60 * time.Second))
	require.True(t, guard.NeedsRefresh(snap, principal.KindOwner, now))

	snap.OwnerAccessToken = sign(now.Add(61 * time.Second))
	require.False(t, guard.NeedsRefresh(snap, principal.KindOwner, now))
}

// A logout in another tab must move a tab rendering a user-only view to the login
// page on the next evaluation after the change notification.
func TestRemoteLogoutRedirectsProtectedView(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := fakeapi.New("test-secret", fakeapi.WithBcryptCost(bcrypt.MinCost))
	srv := httptest.NewServer(fake)
	defer srv.Close()
	_, err := fake.AddUser("alice", "Alice", "alice@example.com", "password123")
	require.NoError(t, err)

	store := tokenstore.NewMemory()
	bus := authevents.NewHub(4)
	defer bus.Close()
	newTab := func() *session.Manager {
		m, err := session.New(session.Deps{API: authapi.NewClient(srv.URL), Store: store, Bus: bus}, session.WithScope("browser-1"))
		require.NoError(t, err)
		require.NoError(t, m.Watch(ctx))
		return m
	}
	tabA, tabB := newTab(), newTab()

	tabA.Hydrate(ctx)
	_, err = tabA.Login(ctx, authapi.LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	tabB.Hydrate(ctx)

	const view = "/dashboard/user"
	render := func(s session.Snapshot) guard.Decision {
		return guard.Decide(guard.Input{Session: s, Required: principal.KindUser, Path: view})
	}
	require.Equal(t, guard.Allow, render(tabB.Snapshot()).Action)

	decisions := make(chan guard.Decision, 4)
	unsubscribe := tabB.Subscribe(func(s session.Snapshot) { decisions <- render(s) })
	defer unsubscribe()

	require.NoError(t, tabA.Logout(ctx))

	select {
	case d := <-decisions:
		require.Equal(t, guard.Decision{Action: guard.Redirect, Location: "/login"}, d)
	case <-time.After(time.Second):
		t.Fatal("protected view was not re-evaluated")
	}
}
