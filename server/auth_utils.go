package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-booking-session/session"
)

const (
	// browserCookieName identifies the browser scope shared by all of its tabs
	browserCookieName = "browser_id"
	browserCookieAge  = 400 * 24 * 60 * 60
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyScope stores the browser scope of the request
	ContextKeyScope ContextKey = "scope"
	// ContextKeyManager stores the session manager of the scope
	ContextKeyManager ContextKey = "manager"
	// ContextKeyNavigation stores the navigation captured while handling the request
	ContextKeyNavigation ContextKey = "navigation"
)

func (s *Server) setBrowserCookie(w http.ResponseWriter, r *http.Request, scope string) {
	http.SetCookie(w, &http.Cookie{
		Name:     browserCookieName,
		Value:    scope,
		Path:     "/",
		HttpOnly: true,
		Secure:   getScheme(r) == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   browserCookieAge,
	})
}

// browserScope returns the scope named by the browser cookie, or a new one.
func browserScope(r *http.Request) (scope string, isNew bool) {
	if cookie, err := r.Cookie(browserCookieName); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value, false
		}
	}
	return uuid.NewString(), true
}

func managerFromContext(ctx context.Context) *session.Manager {
	m, _ := ctx.Value(ContextKeyManager).(*session.Manager)
	return m
}

// snapshotFromContext returns the session of the request's scope. A scope without a
// manager yet is signed out.
func snapshotFromContext(ctx context.Context) session.Snapshot {
	if m := managerFromContext(ctx); m != nil {
		return m.Snapshot()
	}
	return session.Snapshot{}
}

// navigation records where a session operation asked the browser to go.
type navigation struct {
	mu       sync.Mutex
	location string
}

func (n *navigation) set(path string) {
	n.mu.Lock()
	n.location = path
	n.mu.Unlock()
}

func (n *navigation) get() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func withNavigation(r *http.Request) (*http.Request, *navigation) {
	nav := &navigation{}
	return r.WithContext(context.WithValue(r.Context(), ContextKeyNavigation, nav)), nav
}

// requestNavigator hands navigations to the request whose operation made them.
// Navigations without a request, such as those of background refreshes, are dropped.
type requestNavigator struct{}

func (requestNavigator) Navigate(ctx context.Context, path string) {
	if nav, ok := ctx.Value(ContextKeyNavigation).(*navigation); ok {
		nav.set(path)
	}
}

// redirectSuccess helper for htmx-aware success redirects
func redirectSuccess(w http.ResponseWriter, r *http.Request, path string) {
	if isHTMXRequest(r) {
		w.Header().Set("HX-Redirect", path)
		w.WriteHeader(http.StatusNoContent) // 204 - no content, just redirect instruction
		return
	}
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// isHTMXRequest checks if the request was initiated by HTMX
func isHTMXRequest(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
