package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-booking-session/principal"
)

// Claims is the payload the remote auth API embeds in its bearer tokens.
// Older tokens carry the identifier as user_id rather than id.
type Claims struct {
	jwtlib.RegisteredClaims
	PrincipalID uint           `json:"id,omitempty"`
	UserID      uint           `json:"user_id,omitempty"`
	Email       string         `json:"email"`
	Role        string         `json:"role,omitempty"`
	Type        principal.Kind `json:"type,omitempty"`
}

// Identifier returns the principal id carried by the token.
func (c *Claims) Identifier() uint {
	if c.PrincipalID != 0 {
		return c.PrincipalID
	}
	return c.UserID
}

// ExpiresAtTime returns the literal expiry of the token.
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// ExpiresAtEpochMs returns the expiry in milliseconds since the epoch.
func (c *Claims) ExpiresAtEpochMs() int64 {
	return c.ExpiresAtTime().UnixMilli()
}

// ExpiringWithin reports whether the token expires at or before now+skew.
func (c *Claims) ExpiringWithin(now time.Time, skew time.Duration) bool {
	return !now.Add(skew).Before(c.ExpiresAtTime())
}

// UserPrincipal is a best-effort user snapshot. Username and name are not part of
// the token and stay empty.
func (c *Claims) UserPrincipal() *principal.UserPrincipal {
	return &principal.UserPrincipal{
		ID:    c.Identifier(),
		Email: c.Email,
	}
}

// OwnerPrincipal is a best-effort owner snapshot. The issue time stands in for the
// creation time, which the token does not carry.
func (c *Claims) OwnerPrincipal() *principal.OwnerPrincipal {
	o := &principal.OwnerPrincipal{
		ID:    c.Identifier(),
		Email: c.Email,
	}
	if c.IssuedAt != nil {
		o.CreatedAt = c.IssuedAt.Time
	}
	return o
}

// Principal returns the snapshot for the requested kind.
func (c *Claims) Principal(kind principal.Kind) principal.Principal {
	if kind == principal.KindOwner {
		return c.OwnerPrincipal()
	}
	return c.UserPrincipal()
}
