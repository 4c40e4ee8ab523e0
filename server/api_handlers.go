package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/session"
	"github.com/rs/zerolog/log"
)

const healthCheckTimeout = 2 * time.Second

// refreshResponse never carries the token itself; the browser only learns
// whether its session is still alive.
type refreshResponse struct {
	Kind          principal.Kind `json:"kind"`
	Authenticated bool           `json:"authenticated"`
	Redirect      string         `json:"redirect,omitempty"`
}

type sessionResponse struct {
	session.Snapshot
	IsAuthenticated bool `json:"isAuthenticated"`
}

// RefreshHandler exchanges the kind's token for a new one (POST /auth/refresh, /owner/auth/refresh)
func (s *Server) RefreshHandler(kind principal.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := managerFromContext(r.Context())
		r, nav := withNavigation(r)

		refresh := m.RefreshToken
		if kind == principal.KindOwner {
			refresh = m.RefreshOwnerToken
		}
		if err := refresh(r.Context()); err != nil {
			log.Info().Err(err).Str("scope", m.Scope()).Stringer("kind", kind).Msg("Token refresh failed")
			location := nav.get()
			if location == "" {
				location = kind.LoginPath()
			}
			writeJSON(w, http.StatusUnauthorized, refreshResponse{Kind: kind, Redirect: location})
			return
		}

		writeJSON(w, http.StatusOK, refreshResponse{Kind: kind, Authenticated: true})
	}
}

// SessionHandler returns the browser's session snapshot without tokens (GET /api/session)
func (s *Server) SessionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := snapshotFromContext(r.Context())
		writeJSON(w, http.StatusOK, sessionResponse{Snapshot: snap, IsAuthenticated: snap.IsAuthenticated()})
	}
}

// HealthHandler runs the configured health checks (GET /healthz)
func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		names := make([]string, 0, len(s.deps.HealthChecks))
		for name := range s.deps.HealthChecks {
			names = append(names, name)
		}
		sort.Strings(names)

		status := http.StatusOK
		checks := make(map[string]string, len(names))
		for _, name := range names {
			if err := s.deps.HealthChecks[name](ctx); err != nil {
				log.Warn().Err(err).Str("check", name).Msg("Health check failed")
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		result := "ok"
		if status != http.StatusOK {
			result = "unavailable"
		}
		writeJSON(w, status, map[string]any{"status": result, "checks": checks})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
