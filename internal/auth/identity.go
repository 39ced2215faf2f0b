package auth

import (
	"context"
	"time"

	"github.com/pyresume/dashclient/internal/credential"
	"github.com/pyresume/dashclient/internal/observability"
)

// Identity is what a UI layer needs to render logged-in state.
type Identity struct {
	Authenticated bool
	SubjectID     string
	Email         string
	ExpiresAt     time.Time
}

// Expired reports whether the access token's advisory expiry has passed.
func (i Identity) Expired(now time.Time) bool {
	return IsExpired(Claims{ExpiresAt: i.ExpiresAt}, now)
}

// CurrentIdentity decodes the stored access token. A missing or malformed
// token yields an unauthenticated Identity; decode errors never propagate.
// An expired token still counts as authenticated: the next request will
// renew it.
func CurrentIdentity(ctx context.Context, store credential.Store) Identity {
	access := store.Access(ctx)
	if access == "" {
		return Identity{}
	}

	claims, err := Decode(access)
	if err != nil {
		observability.LoggerFromContext(ctx).DebugContext(ctx, "stored access token is not decodable",
			"token_fp", observability.TokenFingerprint(access),
			"error", err,
		)
		return Identity{}
	}

	return Identity{
		Authenticated: true,
		SubjectID:     claims.SubjectID,
		Email:         store.Identity(ctx),
		ExpiresAt:     claims.ExpiresAt,
	}
}
