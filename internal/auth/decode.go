package auth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pyresume/dashclient/internal/domain"
)

// parser only decodes segments here; nothing is verified or validated.
var parser = jwt.NewParser()

// Decode extracts the claims from an access token without contacting a
// server or checking the signature. Only the claims segment is read: the
// header and signature may be anything. Any structural problem (wrong
// segment count, bad base64url, claims that are not a JSON object) yields an
// error matching domain.ErrMalformedToken. An expired token decodes fine.
func Decode(token string) (Claims, error) {
	if token == "" {
		return Claims{}, fmt.Errorf("%w: empty token", domain.ErrMalformedToken)
	}

	segments := strings.Split(token, ".")
	if len(segments) != 3 {
		return Claims{}, fmt.Errorf("%w: %d segments, want 3", domain.ErrMalformedToken, len(segments))
	}

	raw, err := parser.DecodeSegment(segments[1])
	if err != nil {
		return Claims{}, fmt.Errorf("%w: claims segment: %w", domain.ErrMalformedToken, err)
	}

	var tc tokenClaims
	if err := json.Unmarshal(raw, &tc); err != nil {
		return Claims{}, fmt.Errorf("%w: claims segment: %w", domain.ErrMalformedToken, err)
	}

	claims := Claims{SubjectID: tc.subjectID()}
	if tc.ExpiresAt != nil {
		claims.ExpiresAt = tc.ExpiresAt.Time
	}
	return claims, nil
}
