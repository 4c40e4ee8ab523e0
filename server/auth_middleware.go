package server

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-booking-session/guard"
	"github.com/jrsteele09/go-booking-session/internal/metrics"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// placeholderRetryAfter is the Retry-After sent while a session is still loading.
const placeholderRetryAfter = "1"

// ScopeMiddleware resolves the browser scope from its cookie, issuing one when
// missing, and puts the scope's session manager into the request context.
// A browser arriving without a cookie is signed out by definition, so safe
// requests from it are served without building a manager.
func (s *Server) ScopeMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, isNew := browserScope(r)
		if isNew {
			s.setBrowserCookie(w, r, scope)
		}

		ctx := context.WithValue(r.Context(), ContextKeyScope, scope)
		if isNew && isSafeMethod(r.Method) {
			next(w, r.WithContext(ctx))
			return
		}

		m, err := s.scopes.Get(r.Context(), scope)
		if err != nil {
			log.Err(err).Str("scope", scope).Msg("Failed to load session")
			http.Error(w, "Session unavailable", http.StatusServiceUnavailable)
			return
		}

		ctx = context.WithValue(ctx, ContextKeyManager, m)
		next(w, r.WithContext(ctx))
	}
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// RequireKind guards a view behind the session of kind; an empty kind admits any
// session state the routing rules allow. Tokens about to expire are refreshed
// before the decision is made.
func (s *Server) RequireKind(kind principal.Kind) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			m := managerFromContext(r.Context())
			if m != nil {
				s.refreshExpiring(r.Context(), m, kind)
			}

			decision := guard.Decide(guard.Input{Session: snapshotFromContext(r.Context()), Required: kind, Path: r.URL.Path})
			metrics.GuardDecisionsTotal.WithLabelValues(string(decision.Action)).Inc()

			switch decision.Action {
			case guard.Placeholder:
				w.Header().Set("Retry-After", placeholderRetryAfter)
				s.renderPage(w, http.StatusServiceUnavailable, pagePlaceholder, pageData{AppName: s.config.GetAppName()})
			case guard.Redirect:
				redirectSuccess(w, r, decision.Location)
			default:
				next(w, r)
			}
		}
	}
}

// refreshExpiring refreshes the tokens a guarded view depends on when they are
// inside the expiry skew window.
func (s *Server) refreshExpiring(ctx context.Context, m *session.Manager, kind principal.Kind) {
	kinds := principal.Kinds()
	if kind != "" {
		kinds = []principal.Kind{kind}
	}
	for _, k := range kinds {
		if !guard.NeedsRefresh(m.Snapshot(), k, s.nowTime()) {
			continue
		}
		if _, err := m.FreshToken(ctx, k); err != nil && !errors.Is(err, session.ErrConcurrentOperation) {
			log.Info().Err(err).Str("scope", m.Scope()).Stringer("kind", k).Msg("Token refresh before render failed")
		}
	}
}
