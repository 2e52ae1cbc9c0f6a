// Package quota implements the access-control core: tier
// classification and the allow/deny decision with its atomic usage
// accounting. Storage is reached through narrow interfaces so the
// decision procedure can be tested against in-memory fakes.
package quota

import "github.com/unrepo/unrepo-api/internal/model"

// Tier is the classification that selects the quota policy branch.
type Tier int

const (
	// TierFree principals are bounded by fixed counters.
	TierFree Tier = iota
	// TierPremium principals are bounded by a rolling rate window,
	// or not at all for token-holder wallets.
	TierPremium
)

func (t Tier) String() string {
	if t == TierPremium {
		return "premium"
	}
	return "free"
}

// ClassifyAccount derives the tier for a key-backed principal. Pure:
// it only reads the stored flags, so a payment or token upgrade
// committed between requests is picked up on the next call.
func ClassifyAccount(a model.Account) Tier {
	if a.Premium() {
		return TierPremium
	}
	return TierFree
}

// ClassifyWallet derives the tier for a wallet principal. Only the
// cached token-holder verdict upgrades a wallet; signature
// verification alone does not.
func ClassifyWallet(w model.Wallet) Tier {
	if w.IsTokenHolder {
		return TierPremium
	}
	return TierFree
}
