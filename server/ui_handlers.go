package server

import (
	"net/http"

	"github.com/jrsteele09/go-booking-session/principal"
)

// IndexHandler sends the browser to the dashboard; the guard takes it from there.
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, RouteDashboard, http.StatusSeeOther)
	}
}

// DashboardHandler routes to the dashboard of the signed-in kind, or offers a
// choice when both kinds are signed in.
func (s *Server) DashboardHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := snapshotFromContext(r.Context())
		user := snap.Authenticated(principal.KindUser)
		owner := snap.Authenticated(principal.KindOwner)

		switch {
		case user && owner:
			s.renderPage(w, http.StatusOK, pageChooser, pageData{
				AppName: s.config.GetAppName(),
				User:    snap.User,
				Owner:   snap.Owner,
			})
		case owner:
			http.Redirect(w, r, RouteOwnerDashboard, http.StatusSeeOther)
		case user:
			http.Redirect(w, r, RouteUserDashboard, http.StatusSeeOther)
		default:
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
		}
	}
}

// KindDashboardHandler renders the dashboard of kind. RequireKind guarantees the session.
func (s *Server) KindDashboardHandler(kind principal.Kind) http.HandlerFunc {
	logoutPath := RouteLogout
	if kind == principal.KindOwner {
		logoutPath = RouteOwnerLogout
	}

	return func(w http.ResponseWriter, r *http.Request) {
		snap := snapshotFromContext(r.Context())
		p := snap.Principal(kind)
		if p == nil {
			http.Redirect(w, r, kind.LoginPath(), http.StatusSeeOther)
			return
		}

		data := pageData{
			AppName:    s.config.GetAppName(),
			Kind:       kind,
			Principal:  p,
			LogoutPath: logoutPath,
		}
		if kind == principal.KindOwner {
			data.Owner = snap.Owner
		} else {
			data.User = snap.User
		}
		s.renderPage(w, http.StatusOK, pageDashboard, data)
	}
}
