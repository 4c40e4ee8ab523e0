package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jrsteele09/go-booking-session/authapi"
	"github.com/jrsteele09/go-booking-session/authevents"
	"github.com/jrsteele09/go-booking-session/internal/metrics"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/token"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// grant is what a successful login or register call hands back.
type grant struct {
	principal principal.Principal
	token     string
	expiresIn int64 // seconds
}

// complete fills in the principal from the token when the response carried none.
func (g *grant) complete(kind principal.Kind) error {
	if g.token == "" {
		return errors.Wrap(token.ErrDecode, "response carried no access token")
	}
	if g.principal != nil {
		return nil
	}
	claims, err := token.Decode(g.token)
	if err != nil {
		return err
	}
	g.principal = claims.Principal(kind)
	return nil
}

// Login signs a user in and navigates to the user dashboard.
func (m *Manager) Login(ctx context.Context, req authapi.LoginRequest) (*principal.UserPrincipal, error) {
	p, err := m.authenticate(ctx, principal.KindUser, "login", func(ctx context.Context) (grant, error) {
		resp, err := m.deps.API.Login(ctx, req)
		if err != nil {
			return grant{}, err
		}
		return userGrant(resp), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Login]")
	}
	return copyUser(p), nil
}

// Register creates a user account, signs it in and navigates to the user dashboard.
func (m *Manager) Register(ctx context.Context, req authapi.RegisterRequest) (*principal.UserPrincipal, error) {
	p, err := m.authenticate(ctx, principal.KindUser, "register", func(ctx context.Context) (grant, error) {
		resp, err := m.deps.API.Register(ctx, req)
		if err != nil {
			return grant{}, err
		}
		return userGrant(resp), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.Register]")
	}
	return copyUser(p), nil
}

// OwnerLogin signs an owner in and navigates to the owner dashboard.
func (m *Manager) OwnerLogin(ctx context.Context, req authapi.OwnerLoginRequest) (*principal.OwnerPrincipal, error) {
	p, err := m.authenticate(ctx, principal.KindOwner, "owner_login", func(ctx context.Context) (grant, error) {
		resp, err := m.deps.API.OwnerLogin(ctx, req)
		if err != nil {
			return grant{}, err
		}
		return ownerGrant(resp), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.OwnerLogin]")
	}
	return copyOwner(p), nil
}

// OwnerRegister creates an owner account, signs it in and navigates to the owner dashboard.
func (m *Manager) OwnerRegister(ctx context.Context, req authapi.OwnerRegisterRequest) (*principal.OwnerPrincipal, error) {
	p, err := m.authenticate(ctx, principal.KindOwner, "owner_register", func(ctx context.Context) (grant, error) {
		resp, err := m.deps.API.OwnerRegister(ctx, req)
		if err != nil {
			return grant{}, err
		}
		return ownerGrant(resp), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "[Manager.OwnerRegister]")
	}
	return copyOwner(p), nil
}

func userGrant(resp *authapi.AuthResponse) grant {
	g := grant{token: resp.AccessToken, expiresIn: resp.ExpiresIn}
	if resp.User != nil {
		g.principal = resp.User
	}
	return g
}

func ownerGrant(resp *authapi.OwnerAuthResponse) grant {
	g := grant{token: resp.AccessToken, expiresIn: resp.ExpiresIn}
	if resp.Owner != nil {
		g.principal = resp.Owner
	}
	return g
}

func copyUser(p principal.Principal) *principal.UserPrincipal {
	u, ok := p.(*principal.UserPrincipal)
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

func copyOwner(p principal.Principal) *principal.OwnerPrincipal {
	o, ok := p.(*principal.OwnerPrincipal)
	if !ok {
		return nil
	}
	cp := *o
	return &cp
}

func (m *Manager) authenticate(ctx context.Context, kind principal.Kind, name string, call func(context.Context) (grant, error)) (principal.Principal, error) {
	gen, _, err := m.begin(kind, opBeginAuth, name)
	if err != nil {
		return nil, err
	}

	g, err := call(ctx)
	if err == nil {
		err = g.complete(kind)
	}

	persist := m.persist[kind]
	persist.Lock()
	m.mu.Lock()
	if m.kinds[kind].generation != gen {
		m.mu.Unlock()
		persist.Unlock()
		log.Info().Str("scope", m.scope).Stringer("kind", kind).Str("operation", name).Msg("discarding result of superseded operation")
		return nil, ErrSuperseded
	}
	if err == nil {
		_, err = m.apply(kind, transition{op: opAuthSucceeded, principal: g.principal, token: g.token})
	}
	if err != nil {
		_, _ = m.apply(kind, transition{op: opAuthFailed})
		snap := m.snapshotLocked()
		m.mu.Unlock()
		persist.Unlock()
		m.notify(snap)
		return nil, err
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.save(ctx, kind, g.token, g.expiresIn)
	persist.Unlock()

	m.notify(snap)
	log.Info().Str("scope", m.scope).Stringer("kind", kind).Uint("id", g.principal.Identifier()).Msg("signed in")
	m.deps.Navigator.Navigate(ctx, kind.DashboardPath())
	return g.principal, nil
}

// save persists a token. Store failures are logged and never reach the caller.
func (m *Manager) save(ctx context.Context, kind principal.Kind, raw string, expiresIn int64) {
	ttl := time.Duration(expiresIn) * time.Second
	if ttl <= 0 {
		ttl = m.storeTTL
	}
	if ttl <= 0 {
		if claims, err := token.Decode(raw); err == nil {
			ttl = claims.ExpiresAtTime().Sub(m.nowTime())
		}
	}
	if err := m.deps.Store.Save(context.WithoutCancel(ctx), kind, raw, ttl); err != nil {
		log.Warn().Err(err).Str("scope", m.scope).Stringer("kind", kind).Msg("could not persist token")
	}
}

// Logout clears the user session, tells the other tabs and navigates to the user login page.
func (m *Manager) Logout(ctx context.Context) error {
	return errors.Wrap(m.logout(ctx, principal.KindUser), "[Manager.Logout]")
}

// OwnerLogout clears the owner session, tells the other tabs and navigates to the owner login page.
func (m *Manager) OwnerLogout(ctx context.Context) error {
	return errors.Wrap(m.logout(ctx, principal.KindOwner), "[Manager.OwnerLogout]")
}

// logout always ends unauthenticated and navigates once. The only error it returns
// is a failure to signal other tabs.
func (m *Manager) logout(ctx context.Context, kind principal.Kind) error {
	held := m.clear(ctx, kind)
	if held {
		log.Info().Str("scope", m.scope).Stringer("kind", kind).Msg("signed out")
	}

	var err error
	if held {
		err = m.publishLogout(ctx, kind)
	}
	m.deps.Navigator.Navigate(ctx, kind.LoginPath())
	return err
}

// clear drops the kind's session in memory and in the store, and reports whether a
// session was held.
func (m *Manager) clear(ctx context.Context, kind principal.Kind) bool {
	persist := m.persist[kind]
	persist.Lock()
	m.mu.Lock()
	held := m.kinds[kind].authenticated()
	_, _ = m.apply(kind, transition{op: opClear})
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if err := m.deps.Store.Remove(context.WithoutCancel(ctx), kind); err != nil {
		log.Warn().Err(err).Str("scope", m.scope).Stringer("kind", kind).Msg("could not remove persisted token")
	}
	persist.Unlock()

	m.notify(snap)
	return held
}

func (m *Manager) publishLogout(ctx context.Context, kind principal.Kind) error {
	if m.deps.Bus == nil {
		return nil
	}
	ev := authevents.LoggedOut(m.scope, kind, m.tabID)
	if err := m.deps.Bus.Publish(context.WithoutCancel(ctx), ev); err != nil {
		log.Warn().Err(err).Str("scope", m.scope).Stringer("kind", kind).Msg("could not publish logout")
		return errors.Wrap(err, "publish logout")
	}
	metrics.AuthEventsTotal.WithLabelValues(kind.String(), "published").Inc()
	return nil
}

// RefreshToken replaces the user token. On failure the user is logged out and
// sent to the login page; the returned error wraps ErrRefreshFailed.
func (m *Manager) RefreshToken(ctx context.Context) error {
	_, err := m.refresh(ctx, principal.KindUser, false)
	return errors.Wrap(err, "[Manager.RefreshToken]")
}

// RefreshOwnerToken is RefreshToken for the owner session.
func (m *Manager) RefreshOwnerToken(ctx context.Context) error {
	_, err := m.refresh(ctx, principal.KindOwner, false)
	return errors.Wrap(err, "[Manager.RefreshOwnerToken]")
}

// FreshToken returns the kind's token, refreshing it first when it is inside the
// expiry skew window.
func (m *Manager) FreshToken(ctx context.Context, kind principal.Kind) (string, error) {
	raw := m.Snapshot().Token(kind)
	if raw == "" {
		return "", ErrNotAuthenticated
	}
	if !token.IsExpired(raw, m.nowTime()) {
		return raw, nil
	}
	fresh, err := m.refresh(ctx, kind, false)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.FreshToken]")
	}
	return fresh, nil
}

// refresh exchanges the current token. A silent refresh that fails clears the
// session without publishing or navigating.
func (m *Manager) refresh(ctx context.Context, kind principal.Kind, silent bool) (string, error) {
	gen, bearer, err := m.begin(kind, opBeginRefresh, "refresh")
	if err != nil {
		return "", err
	}

	var resp *authapi.RefreshResponse
	if kind == principal.KindOwner {
		resp, err = m.deps.API.OwnerRefresh(ctx, bearer)
	} else {
		resp, err = m.deps.API.Refresh(ctx, bearer)
	}
	var fresh string
	if err == nil {
		fresh = resp.AccessToken
		_, err = token.Decode(fresh)
	}

	persist := m.persist[kind]
	persist.Lock()
	m.mu.Lock()
	if m.kinds[kind].generation != gen {
		m.mu.Unlock()
		persist.Unlock()
		return "", ErrSuperseded
	}

	if err != nil {
		_, _ = m.apply(kind, transition{op: opClear})
		snap := m.snapshotLocked()
		m.mu.Unlock()
		if removeErr := m.deps.Store.Remove(context.WithoutCancel(ctx), kind); removeErr != nil {
			log.Warn().Err(removeErr).Str("scope", m.scope).Stringer("kind", kind).Msg("could not remove persisted token")
		}
		persist.Unlock()
		m.notify(snap)

		log.Warn().Err(err).Str("scope", m.scope).Stringer("kind", kind).Bool("silent", silent).Msg("token refresh failed, signing out")
		if !silent {
			_ = m.publishLogout(ctx, kind)
			m.deps.Navigator.Navigate(ctx, kind.LoginPath())
		}
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if _, err := m.apply(kind, transition{op: opRefreshSucceeded, token: fresh}); err != nil {
		m.mu.Unlock()
		persist.Unlock()
		return "", err
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.save(ctx, kind, fresh, resp.ExpiresIn)
	persist.Unlock()

	m.notify(snap)
	return fresh, nil
}
