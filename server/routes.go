package server

import (
	"net/http"

	"github.com/jrsteele09/go-booking-session/internal/metrics"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) initRoutes() {
	s.RegisterRouteHandler("GET /{$}", ChainMiddleware(s.IndexHandler(), s.HTMLMiddleWare()...))

	// SIGN IN & SIGN UP
	for _, kind := range principal.Kinds() {
		s.RegisterRouteHandler("GET "+kind.LoginPath(), ChainMiddleware(s.LoginPageHandler(kind), s.HTMLMiddleWare(s.RequireKind(""))...))
		s.RegisterRouteHandler("POST "+kind.LoginPath(), ChainMiddleware(s.LoginSubmissionHandler(kind), s.HTMLMiddleWare()...))
		s.RegisterRouteHandler("GET "+kind.RegisterPath(), ChainMiddleware(s.RegisterPageHandler(kind), s.HTMLMiddleWare(s.RequireKind(""))...))
		s.RegisterRouteHandler("POST "+kind.RegisterPath(), ChainMiddleware(s.RegisterSubmissionHandler(kind), s.HTMLMiddleWare()...))
	}

	// SIGN OUT
	s.RegisterRouteHandler("POST "+RouteLogout, ChainMiddleware(s.LogoutHandler(principal.KindUser), s.HTMLMiddleWare()...))
	s.RegisterRouteHandler("POST "+RouteOwnerLogout, ChainMiddleware(s.LogoutHandler(principal.KindOwner), s.HTMLMiddleWare()...))

	// Protected views
	s.RegisterRouteHandler("GET "+RouteDashboard, ChainMiddleware(s.DashboardHandler(), s.HTMLMiddleWare(s.RequireKind(""))...))
	s.RegisterRouteHandler("GET "+RouteUserDashboard, ChainMiddleware(s.KindDashboardHandler(principal.KindUser), s.HTMLMiddleWare(s.RequireKind(principal.KindUser))...))
	s.RegisterRouteHandler("GET "+RouteOwnerDashboard, ChainMiddleware(s.KindDashboardHandler(principal.KindOwner), s.HTMLMiddleWare(s.RequireKind(principal.KindOwner))...))

	// API routes
	s.RegisterRouteHandler("POST "+RouteRefresh, ChainMiddleware(s.RefreshHandler(principal.KindUser), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOwnerRefresh, ChainMiddleware(s.RefreshHandler(principal.KindOwner), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAPISession, ChainMiddleware(s.SessionHandler(), s.APIMiddleware()...))
	for _, path := range []string{RouteRefresh, RouteOwnerRefresh, RouteAPISession} {
		s.RegisterRouteHandler("OPTIONS "+path, ChainMiddleware(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}, s.CorsMiddleware))
	}

	// Operational routes
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{Registry: metrics.Registry}))
}
