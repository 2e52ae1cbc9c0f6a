package utils // package utils provides helper functions for session tokens and hashing

import (
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// SessionToken represents a signed JWT for the account dashboard
// along with its expiry. The Token field contains the JWT string.
// Session tokens are short-lived and sent in the Authorization
// header when calling the key-management and usage endpoints. API
// access itself never uses JWTs; it is authenticated per request by
// bearer key or wallet address.
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewSessionToken builds and signs an HS256 JWT for an account. It
// takes the signing secret, the account ID and a TTL in minutes.
// The JWT includes the standard claims: subject (sub), expiration
// (exp) and issued at (iat).
func NewSessionToken(secret string, accountID uint64, ttlMin int) (SessionToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub": accountID,
		"exp": exp.Unix(),
		"iat": time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}
