package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-booking-session/authevents"
	"github.com/jrsteele09/go-booking-session/internal/config"
	"github.com/jrsteele09/go-booking-session/server/scopes"
	"github.com/jrsteele09/go-booking-session/session"
	"github.com/jrsteele09/go-booking-session/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Deps holds the collaborators shared by every browser scope.
type Deps struct {
	API    session.API
	Stores tokenstore.Provider
	Bus    authevents.Bus
	// HealthChecks run on /healthz, e.g. a redis ping.
	HealthChecks map[string]func(context.Context) error
}

type Server struct {
	env     string // Environment (e.g., "DEV", "PROD")
	mux     *http.ServeMux
	routes  []string
	config  config.Config
	deps    Deps
	scopes  *scopes.Registry
	pages   *pageTemplates
	nowTime func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithNowTime sets the clock used by the route guard and the session managers.
func WithNowTime(nowFunc func() time.Time) Option {
	return func(s *Server) {
		s.nowTime = nowFunc
	}
}

func New(c config.Config, deps Deps, options ...Option) (*Server, error) {
	if deps.API == nil {
		return nil, errors.New("[server.New] API is required")
	}
	if deps.Stores == nil {
		return nil, errors.New("[server.New] token store provider is required")
	}

	pages, err := parsePageTemplates()
	if err != nil {
		return nil, errors.Wrap(err, "[server.New] failed to parse page templates")
	}

	s := &Server{
		env:     c.GetEnv(),
		mux:     http.NewServeMux(),
		config:  c,
		deps:    deps,
		pages:   pages,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	s.scopes = scopes.NewRegistry(s.newManager,
		scopes.WithIdleTTL(c.GetScopeIdleTTL()),
		scopes.WithMaxScopes(c.GetMaxScopes()),
		scopes.WithNowTime(s.nowTime),
	)

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Close stops the auth event watches of every browser scope.
func (s *Server) Close() {
	s.scopes.Close()
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

// newManager builds the session manager of a browser scope.
func (s *Server) newManager(scope string) (*session.Manager, error) {
	store, err := s.deps.Stores(scope)
	if err != nil {
		return nil, fmt.Errorf("token store for scope: %w", err)
	}
	return session.New(session.Deps{
		API:       s.deps.API,
		Store:     store,
		Bus:       s.deps.Bus,
		Navigator: requestNavigator{},
	},
		session.WithScope(scope),
		session.WithNowTime(s.nowTime),
		session.WithStoreTTL(s.config.GetDefaultTokenTTL()),
	)
}

func (s *Server) logRoutes() {
	if s.env != "DEV" {
		return // Skip logging in non-development environments
	}
	for _, route := range s.routes {
		parts := strings.SplitN(route, " ", 2)

		if len(parts) > 1 {
			logRoute(parts[0], parts[1])
		} else {
			logRoute("", parts[0])
		}
	}
}

func logRoute(method, path string) {
	var displayMethod string
	paddedMethod := fmt.Sprintf(" %-7s", method)
	if color, ok := methodColors[method]; ok {
		displayMethod = color + paddedMethod + ResetColor
	} else {
		displayMethod = Gray + paddedMethod + ResetColor
	}
	log.Info().Msgf("[%-19s] %s", displayMethod, path)
}

// Helper function to determine the scheme (http/https)
func getScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if scheme := r.Header.Get("X-Forwarded-Proto"); scheme != "" {
		return scheme
	}
	return "http"
}
