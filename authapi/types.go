package authapi

import (
	"encoding/json"

	"github.com/jrsteele09/go-booking-session/principal"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OwnerLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type OwnerRegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// AuthResponse is returned by the user login and register endpoints.
type AuthResponse struct {
	User        *principal.UserPrincipal `json:"user"`
	AccessToken string                   `json:"accessToken"`
	ExpiresIn   int64                    `json:"expiresIn"` // seconds
}

// OwnerAuthResponse is returned by the owner login and register endpoints.
type OwnerAuthResponse struct {
	Owner       *principal.OwnerPrincipal `json:"owner"`
	AccessToken string                    `json:"access_token"`
	ExpiresIn   int64                     `json:"expires_in"` // seconds
}

// RefreshResponse is returned by both refresh endpoints.
type RefreshResponse struct {
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// UnmarshalJSON accepts both camelCase and snake_case field names; the owner
// endpoints have shipped with either.
func (r *RefreshResponse) UnmarshalJSON(b []byte) error {
	var raw struct {
		AccessToken  string `json:"accessToken"`
		ExpiresIn    int64  `json:"expiresIn"`
		AccessToken2 string `json:"access_token"`
		ExpiresIn2   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.AccessToken = raw.AccessToken
	if r.AccessToken == "" {
		r.AccessToken = raw.AccessToken2
	}
	r.ExpiresIn = raw.ExpiresIn
	if r.ExpiresIn == 0 {
		r.ExpiresIn = raw.ExpiresIn2
	}
	return nil
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}
