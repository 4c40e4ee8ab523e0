package session

import (
	"context"

	"github.com/jrsteele09/go-booking-session/authevents"
	"github.com/jrsteele09/go-booking-session/internal/metrics"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/token"
	"github.com/jrsteele09/go-booking-session/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Hydrate restores both sessions from the token store and ends the initial Loading
// phase. Unreadable tokens are removed. Tokens inside the skew window are refreshed,
// and dropped without navigation when that fails.
func (m *Manager) Hydrate(ctx context.Context) {
	for _, kind := range principal.Kinds() {
		m.hydrateKind(ctx, kind)
	}

	m.mu.Lock()
	m.hydrating = false
	m.version++
	snap := m.snapshotLocked()
	m.mu.Unlock()
	m.notify(snap)
}

func (m *Manager) hydrateKind(ctx context.Context, kind principal.Kind) {
	logger := log.With().Str("scope", m.scope).Stringer("kind", kind).Logger()

	raw, err := m.deps.Store.Load(ctx, kind)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("token store unavailable, starting signed out")
		return
	}

	now := m.nowTime()
	claims, err := token.Decode(raw)
	if err == nil && claims.Type != "" && claims.Type != kind {
		err = errors.Wrapf(token.ErrDecode, "token issued for %s", claims.Type)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("discarding unreadable persisted token")
		m.dropPersisted(ctx, kind)
		return
	}
	if !now.Before(claims.ExpiresAtTime()) {
		logger.Info().Msg("persisted token has expired")
		m.dropPersisted(ctx, kind)
		return
	}

	m.mu.Lock()
	_, err = m.apply(kind, transition{op: opRestore, principal: claims.Principal(kind), token: raw})
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if err != nil {
		// A login started before hydration finished owns the session now.
		return
	}
	m.notify(snap)

	if claims.ExpiringWithin(now, token.SkewBuffer) {
		if _, err := m.refresh(ctx, kind, true); err != nil {
			logger.Info().Err(err).Msg("persisted token could not be refreshed")
			return
		}
	}
	logger.Info().Uint("id", claims.Identifier()).Msg("session restored")
}

// dropPersisted removes the stored token unless an operation has taken over the kind.
func (m *Manager) dropPersisted(ctx context.Context, kind principal.Kind) {
	persist := m.persist[kind]
	persist.Lock()
	defer persist.Unlock()

	m.mu.Lock()
	ks := m.kinds[kind]
	m.mu.Unlock()
	if ks.state != StateUnauthenticated {
		return
	}
	if err := m.deps.Store.Remove(ctx, kind); err != nil {
		log.Warn().Err(err).Str("scope", m.scope).Stringer("kind", kind).Msg("could not remove persisted token")
	}
}

// Watch subscribes to the auth events of the manager's scope and applies logouts
// made by other tabs until ctx is done. It returns once the subscription is live.
func (m *Manager) Watch(ctx context.Context) error {
	if m.deps.Bus == nil {
		return nil
	}
	sub, err := m.deps.Bus.Subscribe(ctx, m.scope)
	if err != nil {
		return errors.Wrap(err, "[Manager.Watch] subscribe")
	}

	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				m.applyRemote(ev)
			}
		}
	}()
	return nil
}

// applyRemote clears the in-memory session of a kind logged out elsewhere. The
// store entry was already removed by the tab that logged out.
func (m *Manager) applyRemote(ev authevents.Event) {
	if ev.Type != authevents.EventLoggedOut || ev.Origin == m.tabID || ev.Scope != m.scope || !ev.Kind.Valid() {
		return
	}
	metrics.AuthEventsTotal.WithLabelValues(ev.Kind.String(), "received").Inc()

	m.mu.Lock()
	if !m.kinds[ev.Kind].authenticated() {
		m.mu.Unlock()
		return
	}
	_, _ = m.apply(ev.Kind, transition{op: opClear})
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	log.Info().Str("scope", m.scope).Stringer("kind", ev.Kind).Str("origin", ev.Origin).Msg("signed out by another tab")
}
