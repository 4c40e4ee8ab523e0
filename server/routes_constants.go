package server

import "github.com/jrsteele09/go-booking-session/principal"

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	// Sign in & sign up pages
	RouteLogin         = principal.PathLogin
	RouteRegister      = principal.PathRegister
	RouteOwnerLogin    = principal.PathOwnerLogin
	RouteOwnerRegister = principal.PathOwnerRegister

	// Sign out
	RouteLogout      = "/logout"
	RouteOwnerLogout = "/owner-logout"

	// Token refresh
	RouteRefresh      = "/auth/refresh"
	RouteOwnerRefresh = "/owner/auth/refresh"

	// Protected views
	RouteDashboard      = principal.PathDashboard
	RouteUserDashboard  = principal.PathUserDashboard
	RouteOwnerDashboard = principal.PathOwnerDashboard

	// API & operational routes
	RouteAPISession = "/api/session"
	RouteHealthz    = "/healthz"
	RouteMetrics    = "/metrics"
)
