package principal

import (
	"fmt"
	"strings"
	"time"
)

// Kind is the variant tag distinguishing end-user sessions from restaurant-owner sessions.
type Kind string

const (
	KindUser  Kind = "user"  // End-user booking tables
	KindOwner Kind = "owner" // Restaurant owner managing restaurants
)

// Kinds returns every principal kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindUser, KindOwner}
}

// ParseKind converts a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindUser:
		return KindUser, nil
	case KindOwner:
		return KindOwner, nil
	}
	return "", fmt.Errorf("unknown principal kind %q", s)
}

func (k Kind) String() string {
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	return k == KindUser || k == KindOwner
}

// Principal is an authenticated identity of either kind.
type Principal interface {
	Kind() Kind
	Identifier() uint
	EmailAddress() string
	DisplayName() string
}

// UserPrincipal is the end-user identity returned by the remote auth API.
type UserPrincipal struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

var _ Principal = (*UserPrincipal)(nil)

func (u *UserPrincipal) Kind() Kind           { return KindUser }
func (u *UserPrincipal) Identifier() uint     { return u.ID }
func (u *UserPrincipal) EmailAddress() string { return u.Email }

// DisplayName falls back to the username and then the email when no name is known,
// which is the case for principals recovered from a token.
func (u *UserPrincipal) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	}
	return u.Email
}

// OwnerPrincipal is the restaurant-owner identity returned by the remote auth API.
type OwnerPrincipal struct {
	ID        uint      `json:"owner_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
}

var _ Principal = (*OwnerPrincipal)(nil)

func (o *OwnerPrincipal) Kind() Kind           { return KindOwner }
func (o *OwnerPrincipal) Identifier() uint     { return o.ID }
func (o *OwnerPrincipal) EmailAddress() string { return o.Email }

func (o *OwnerPrincipal) DisplayName() string {
	if o.Name != "" {
		return o.Name
	}
	return o.Email
}
