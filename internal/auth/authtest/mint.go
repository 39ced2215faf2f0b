// Package authtest mints unverified access tokens for tests. Client code never
// checks signatures, so tokens are HS256-signed with a fixed test key.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var testKey = []byte("dashclient-test-signing-key")

// MintAccess returns a signed access token for userID expiring at exp.
func MintAccess(t testing.TB, userID int, exp time.Time) string {
	t.Helper()
	return Mint(t, jwt.MapClaims{
		"token_type": "access",
		"user_id":    userID,
		"exp":        exp.Unix(),
		"iat":        exp.Add(-5 * time.Minute).Unix(),
		"jti":        uuid.NewString(),
	})
}

// Mint signs arbitrary claims.
func Mint(t testing.TB, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("mint test token: %v", err)
	}
	return signed
}
