// Package auth resolves inbound credentials (bearer keys and wallet
// addresses) into explicit principal values. Handlers receive a
// Principal from Authenticate* and thread it through the request;
// nothing is stashed on shared request state.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/unrepo/unrepo-api/internal/model"
)

// TokenPrefix is the structural prefix every issued bearer token
// starts with. The full shape is unrepo_<capability>_<random>.
const TokenPrefix = "unrepo_"

// Sentinel authentication errors. Handlers map all three to 401.
var (
	// ErrMalformed means the credential fails structural validation.
	// It is returned before any storage lookup.
	ErrMalformed = errors.New("malformed credential")
	// ErrNotFound means the credential is well-formed but resolves
	// to no active principal.
	ErrNotFound = errors.New("unknown or inactive credential")
	// ErrInvalidSignature means a wallet signature did not verify
	// against the address it claims to come from.
	ErrInvalidSignature = errors.New("invalid wallet signature")
)

// ParseCapability converts the wire form of a capability (the
// issuance request "type" field or a token prefix segment) into the
// typed value. Both the RESEARCH/CHATBOT request spelling and the
// lowercase prefix spelling are accepted.
func ParseCapability(s string) (model.Capability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "research":
		return model.CapabilityResearch, nil
	case "chatbot", "chat":
		return model.CapabilityChat, nil
	}
	return "", ErrMalformed
}

// ValidateToken checks that raw carries the exact
// unrepo_<capability>_ prefix for the expected capability and a
// non-empty random suffix. A research token presented where a chat
// token is expected fails here, cheaply, with ErrMalformed.
func ValidateToken(raw string, want model.Capability) error {
	prefix := TokenPrefix + string(want) + "_"
	if !strings.HasPrefix(raw, prefix) || len(raw) == len(prefix) {
		return ErrMalformed
	}
	return nil
}

// NewToken generates a fresh bearer token for the given capability:
// the structural prefix followed by 32 bytes of secure randomness in
// hex. The token is shown to the caller exactly once at issuance.
func NewToken(c model.Capability) (string, error) {
	suffix, err := randomHex(32)
	if err != nil {
		return "", err
	}
	return TokenPrefix + string(c) + "_" + suffix, nil
}

// ValidateAddress checks that address is a hex-encoded 32-byte
// Ed25519 public key and returns it normalized to lower case.
func ValidateAddress(address string) (string, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if len(address) != 64 {
		return "", ErrMalformed
	}
	if _, err := hex.DecodeString(address); err != nil {
		return "", ErrMalformed
	}
	return address, nil
}

// randomHex returns a hex-encoded string generated from n bytes of
// cryptographically secure random data.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
