package token

import (
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	errs "github.com/jrsteele09/go-booking-session/internal/errors"
)

// SkewBuffer is subtracted from a token's literal expiry so refresh happens early.
const SkewBuffer = 60 * time.Second

var (
	ErrDecode  = errs.ErrDecode
	ErrExpired = errs.ErrTokenExpired
)

var parser = jwtlib.NewParser()

// Decode extracts the claims of a bearer token without verifying its signature.
// Verification is the remote API's job; the client only needs identity and expiry.
func Decode(raw string) (*Claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrDecode)
	}

	claims := &Claims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp claim", ErrDecode)
	}
	return claims, nil
}

// CheckExpiry decodes the token and fails with ErrExpired when it is inside the
// skew window. Decode errors are returned as is.
func CheckExpiry(raw string, now time.Time) (*Claims, error) {
	claims, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	if claims.ExpiringWithin(now, SkewBuffer) {
		return claims, ErrExpired
	}
	return claims, nil
}

// IsExpired reports whether the token should be treated as expired at now.
// Tokens that cannot be decoded are always expired.
func IsExpired(raw string, now time.Time) bool {
	_, err := CheckExpiry(raw, now)
	return err != nil
}
