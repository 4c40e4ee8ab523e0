package tokenstore

import (
	"context"
	"time"

	errs "github.com/jrsteele09/go-booking-session/internal/errors"
	"github.com/jrsteele09/go-booking-session/principal"
)

// NowTimeFunc returns the current time for file-backed expiry. It can be overridden in tests.
var NowTimeFunc = time.Now

var (
	ErrNotFound     = errs.ErrNotFound
	ErrInvalidKind  = errs.ErrInvalidKind
	ErrInvalidScope = errs.ErrInvalidScope
)

// Store persists the bearer token of each principal kind for one scope (a browsing
// context shared by all of its tabs).
type Store interface {
	// Save writes the token for kind. A ttl <= 0 keeps the token until removed.
	Save(ctx context.Context, kind principal.Kind, token string, ttl time.Duration) error

	// Load returns the saved token or ErrNotFound when none exists or it has expired.
	Load(ctx context.Context, kind principal.Kind) (string, error)

	// Remove deletes the saved token for kind. Removing a missing token is not an error.
	Remove(ctx context.Context, kind principal.Kind) error
}

// Provider returns the store for a scope.
type Provider func(scope string) (Store, error)

type entry struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at,omitempty"` // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

func newEntry(token string, ttl time.Duration, now time.Time) entry {
	e := entry{Token: token}
	if ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}
	return e
}
