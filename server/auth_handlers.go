package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-booking-session/authapi"
	"github.com/jrsteele09/go-booking-session/principal"
	"github.com/jrsteele09/go-booking-session/session"
	"github.com/rs/zerolog/log"
)

const registerNetworkFailureMessage = "Registration failed: Network error"

// LoginPageHandler displays the sign-in form of the kind (GET /login, /owner-login)
func (s *Server) LoginPageHandler(kind principal.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, http.StatusOK, pageAuthForm, pageData{
			AppName: s.config.GetAppName(),
			Kind:    kind,
			Email:   r.URL.Query().Get("email"),
		})
	}
}

// RegisterPageHandler displays the sign-up form of the kind (GET /register, /owner-register)
func (s *Server) RegisterPageHandler(kind principal.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.renderPage(w, http.StatusOK, pageAuthForm, pageData{
			AppName:  s.config.GetAppName(),
			Kind:     kind,
			Register: true,
		})
	}
}

// LoginSubmissionHandler processes the sign-in form. Failures re-render the form
// with an inline error and never navigate.
func (s *Server) LoginSubmissionHandler(kind principal.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		data := pageData{
			AppName: s.config.GetAppName(),
			Kind:    kind,
			Email:   strings.TrimSpace(r.FormValue("email")),
		}
		password := r.FormValue("password")

		m := managerFromContext(r.Context())
		r, nav := withNavigation(r)

		var err error
		if kind == principal.KindOwner {
			_, err = m.OwnerLogin(r.Context(), authapi.OwnerLoginRequest{Email: data.Email, Password: password})
		} else {
			_, err = m.Login(r.Context(), authapi.LoginRequest{Email: data.Email, Password: password})
		}
		if err != nil {
			log.Info().Err(err).Str("scope", m.Scope()).Stringer("kind", kind).Msg("Sign in failed")
			data.Error = formErrorMessage(err)
			s.renderPage(w, formErrorStatus(err), pageAuthForm, data)
			return
		}

		s.completeNavigation(w, r, nav, kind.DashboardPath())
	}
}

// RegisterSubmissionHandler processes the sign-up form.
func (s *Server) RegisterSubmissionHandler(kind principal.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Invalid form data", http.StatusBadRequest)
			return
		}
		data := pageData{
			AppName:  s.config.GetAppName(),
			Kind:     kind,
			Register: true,
			Email:    strings.TrimSpace(r.FormValue("email")),
			Name:     strings.TrimSpace(r.FormValue("name")),
			Username: strings.TrimSpace(r.FormValue("username")),
			Phone:    strings.TrimSpace(r.FormValue("phone")),
		}
		password := r.FormValue("password")

		m := managerFromContext(r.Context())
		r, nav := withNavigation(r)

		var err error
		if kind == principal.KindOwner {
			_, err = m.OwnerRegister(r.Context(), authapi.OwnerRegisterRequest{
				Name:     data.Name,
				Email:    data.Email,
				Phone:    data.Phone,
				Password: password,
			})
		} else {
			_, err = m.Register(r.Context(), authapi.RegisterRequest{
				Username: data.Username,
				Name:     data.Name,
				Email:    data.Email,
				Password: password,
			})
		}
		if err != nil {
			log.Info().Err(err).Str("scope", m.Scope()).Stringer("kind", kind).Msg("Registration failed")
			data.Error = formErrorMessage(err)
			if errors.Is(err, authapi.ErrNetworkFailure) {
				data.Error = registerNetworkFailureMessage
			}
			s.renderPage(w, formErrorStatus(err), pageAuthForm, data)
			return
		}

		s.completeNavigation(w, r, nav, kind.DashboardPath())
	}
}

// LogoutHandler ends the kind's session and follows the manager to the login page.
func (s *Server) LogoutHandler(kind principal.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m := managerFromContext(r.Context())
		r, nav := withNavigation(r)

		logout := m.Logout
		if kind == principal.KindOwner {
			logout = m.OwnerLogout
		}
		if err := logout(r.Context()); err != nil {
			// The local session is gone either way; only other tabs missed the news.
			log.Warn().Err(err).Str("scope", m.Scope()).Stringer("kind", kind).Msg("Sign out was not broadcast")
		}

		s.completeNavigation(w, r, nav, kind.LoginPath())
	}
}

// completeNavigation redirects to where the session operation navigated, or to fallback.
func (s *Server) completeNavigation(w http.ResponseWriter, r *http.Request, nav *navigation, fallback string) {
	location := nav.get()
	if location == "" {
		location = fallback
	}
	redirectSuccess(w, r, location)
}

func formErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrConcurrentOperation):
		return "Already signing in, please wait"
	case errors.Is(err, session.ErrSuperseded):
		return "Signed out while signing in, please try again"
	}
	return authapi.DisplayMessage(err)
}

// formErrorStatus picks the status of a re-rendered form.
func formErrorStatus(err error) int {
	var apiErr *authapi.APIError
	switch {
	case errors.Is(err, session.ErrConcurrentOperation), errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusConflict:
		return http.StatusConflict
	case errors.Is(err, authapi.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}
