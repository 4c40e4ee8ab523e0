package authapi

import (
	"errors"
	"fmt"
	"net/http"

	errs "github.com/jrsteele09/go-booking-session/internal/errors"
)

var (
	// ErrNetworkFailure means no response was received from the auth API.
	ErrNetworkFailure = errs.ErrNetworkFailure
	// ErrInvalidCredentials covers every 4xx answer: bad password, unknown account,
	// duplicate email, rejected bearer token, failed validation.
	ErrInvalidCredentials = errs.ErrInvalidCredentials
	// ErrServer covers 5xx answers and unreadable success bodies.
	ErrServer = errs.ErrServer
)

// APIError is a non-2xx response from the auth API.
type APIError struct {
	Status  int
	Message string // Display message taken from the response body
	Details string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Details != "" {
		return fmt.Sprintf("auth api %d: %s (%s)", e.Status, msg, e.Details)
	}
	return fmt.Sprintf("auth api %d: %s", e.Status, msg)
}

func (e *APIError) Unwrap() error {
	if e.Status >= 400 && e.Status < 500 {
		return ErrInvalidCredentials
	}
	return ErrServer
}

// DisplayMessage returns a message suitable for an inline form error.
func DisplayMessage(err error) string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, ErrNetworkFailure):
		return "Network error, please try again"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	}
	return "Something went wrong, please try again"
}
