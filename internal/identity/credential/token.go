package credential

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt peeks at the exp claim of a bearer token without verifying the
// signature. Signature verification is the backend's job; the only local use
// of the claim is purging a dead credential before paying for a network
// round-trip. Returns false when the token is not a JWT or carries no exp.
func ExpiresAt(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether the token is provably expired at now. Tokens whose
// expiry cannot be determined locally are not considered expired; the backend
// remains the authority.
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	if !ok {
		return false
	}
	return now.After(exp)
}
