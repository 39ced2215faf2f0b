// Package auth decodes access credentials on the client side.
//
// Decoding is informational only: it reads the claims segment of a JWT
// without verifying the signature, so the result is fit for display and for
// advisory expiry checks, never for local authorization decisions. The
// server's 401 remains the authoritative staleness signal.
package auth

import (
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the decoded view of an access token.
type Claims struct {
	SubjectID string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// tokenClaims is the wire shape. The issuer puts the account id in user_id
// (as a number or a string); sub is the fallback.
type tokenClaims struct {
	jwt.RegisteredClaims
	UserID any `json:"user_id,omitempty"`
}

func (c *tokenClaims) subjectID() string {
	switch v := c.UserID.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return c.Subject
}

// IsExpired reports whether claims.ExpiresAt is before now. A token without
// an expiry is treated as expired so callers never trust it indefinitely.
// Clock skew makes this advisory.
func IsExpired(claims Claims, now time.Time) bool {
	if claims.ExpiresAt.IsZero() {
		return true
	}
	return claims.ExpiresAt.Before(now)
}
