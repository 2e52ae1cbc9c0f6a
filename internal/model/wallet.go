package model

import "time"

// Wallet mirrors the `wallets` table. A wallet is a self-contained
// principal: there is no parent account and the row itself carries
// tier state. Unlike API keys, a wallet may exercise both
// capabilities, so each has its own counter and limit – exhausting
// chat quota must not block research quota.
//
// Fields:
//  Address        – hex-encoded Ed25519 public key; primary key.
//  IsVerified     – a valid detached signature was presented at registration.
//  ResearchUsed   – accepted research calls.
//  ResearchLimit  – free-tier ceiling for research (1 at registration).
//  ChatUsed       – accepted chat calls.
//  ChatLimit      – free-tier ceiling for chat (5 at registration).
//  IsTokenHolder  – cached oracle verdict; holders bypass both limits.
//  TokenBalance   – last balance reported by the oracle.
//  LastTokenCheck – when the oracle was last consulted (nullable).
//  LastUsedAt     – when the wallet last passed quota enforcement (nullable).
//  CreatedAt      – timestamp of first registration.
//  UpdatedAt      – timestamp of last update.
type Wallet struct {
	Address        string     // wallets.address
	IsVerified     bool       // wallets.is_verified
	ResearchUsed   int        // wallets.research_used
	ResearchLimit  int        // wallets.research_limit
	ChatUsed       int        // wallets.chat_used
	ChatLimit      int        // wallets.chat_limit
	IsTokenHolder  bool       // wallets.is_token_holder
	TokenBalance   float64    // wallets.token_balance
	LastTokenCheck *time.Time // wallets.last_token_check (nullable)
	LastUsedAt     *time.Time // wallets.last_used_at (nullable)
	CreatedAt      time.Time  // wallets.created_at
	UpdatedAt      time.Time  // wallets.updated_at
}

// Usage returns the used counter and limit for the given capability.
func (w Wallet) Usage(c Capability) (used, limit int) {
	if c == CapabilityResearch {
		return w.ResearchUsed, w.ResearchLimit
	}
	return w.ChatUsed, w.ChatLimit
}

// Default per-capability limits assigned when a wallet is first
// registered. Token holders keep these values but are never blocked
// by them.
const (
	DefaultWalletResearchLimit = 1
	DefaultWalletChatLimit     = 5
)
