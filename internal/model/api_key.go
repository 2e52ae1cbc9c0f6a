package model

import "time"

// Capability is the closed set of service kinds a credential may be
// authorized for. It is decided once at issuance, embedded in the
// bearer token prefix, and immutable afterwards. The boundary
// validates the string form exactly once; everything downstream
// passes the typed value.
type Capability string

const (
	// CapabilityResearch authorizes one-shot repository analysis calls.
	CapabilityResearch Capability = "research"
	// CapabilityChat authorizes interactive chat calls. The token
	// prefix spells it "chatbot" for historical reasons.
	CapabilityChat Capability = "chatbot"
)

// Valid reports whether c is one of the two known capabilities.
func (c Capability) Valid() bool {
	return c == CapabilityResearch || c == CapabilityChat
}

// APIKey mirrors the `api_keys` table. A key belongs to exactly one
// account and carries a single lifetime usage counter: a key
// represents one declared intent (research or chat) chosen at
// issuance, so one global counter suffices. The token column stores
// the full bearer string including the unrepo_<capability>_ prefix.
//
// Fields:
//  ID         – primary key identifier.
//  AccountID  – owning account.
//  Token      – the bearer token string (unique).
//  Capability – research or chatbot; must match the token prefix.
//  Name       – label supplied at issuance.
//  IsActive   – deactivation is a flag flip, keys are never deleted.
//  UsageCount – lifetime accepted-call counter; never resets.
//  LastUsedAt – when the key last passed quota enforcement (nullable).
//  CreatedAt  – timestamp of creation.
type APIKey struct {
	ID         uint64     // api_keys.id
	AccountID  uint64     // api_keys.account_id
	Token      string     // api_keys.token
	Capability Capability // api_keys.capability
	Name       string     // api_keys.name
	IsActive   bool       // api_keys.is_active
	UsageCount int        // api_keys.usage_count
	LastUsedAt *time.Time // api_keys.last_used_at (nullable)
	CreatedAt  time.Time  // api_keys.created_at
}
