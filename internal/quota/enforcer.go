package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/unrepo/unrepo-api/internal/auth"
	"github.com/unrepo/unrepo-api/internal/model"
)

// Reason identifies why a request was denied.
type Reason string

const (
	// ReasonFreeLimit means a fixed free-tier counter is exhausted.
	ReasonFreeLimit Reason = "FREE_LIMIT_EXCEEDED"
	// ReasonRateLimit means the premium rolling window is full.
	ReasonRateLimit Reason = "RATE_LIMIT_EXCEEDED"
)

// Decision is the outcome of one Enforce call. On allow, the
// relevant counter has already been advanced (except for the
// token-holder bypass, which is unmetered). Used/Limit describe the
// counter that produced the decision so 429 payloads can carry them.
type Decision struct {
	Allowed   bool
	Reason    Reason
	Message   string
	Used      int
	Limit     int
	Remaining int
	Unmetered bool // token-holder bypass: no counting applies
}

// KeyStore is the consumption surface of the API-key repository.
// TryConsume must be atomic per key: two concurrent calls with one
// unit left may not both succeed.
type KeyStore interface {
	TryConsume(ctx context.Context, keyID uint64, limit int) (used int, ok bool, err error)
	Touch(ctx context.Context, keyID uint64) (used int, err error)
}

// WalletStore is the consumption surface of the wallet repository,
// with the same per-principal atomicity contract as KeyStore.
type WalletStore interface {
	TryConsume(ctx context.Context, address string, capability model.Capability) (used, limit int, ok bool, err error)
}

// UsageCounter reads the ledger for the premium rolling window.
type UsageCounter interface {
	CountRecentByKey(ctx context.Context, keyID uint64, window time.Duration) (int, error)
}

// Limits bundles the fixed policy numbers.
type Limits struct {
	FreeKeyLifetime   int           // lifetime cap for free keys; never resets
	Window            time.Duration // premium rolling window size
	ResearchPerWindow int           // premium research ceiling per window
	ChatPerWindow     int           // premium chat ceiling per window
}

// DefaultLimits returns the production policy numbers.
func DefaultLimits() Limits {
	return Limits{
		FreeKeyLifetime:   5,
		Window:            time.Hour,
		ResearchPerWindow: 100,
		ChatPerWindow:     200,
	}
}

func (l Limits) perWindow(c model.Capability) int {
	if c == model.CapabilityResearch {
		return l.ResearchPerWindow
	}
	return l.ChatPerWindow
}

// Enforcer makes the allow/deny decision for one request and, on
// allow, records consumption. It never calls out to the network;
// external work happens strictly after the decision committed.
type Enforcer struct {
	keys    KeyStore
	wallets WalletStore
	usage   UsageCounter
	limits  Limits
}

func NewEnforcer(keys KeyStore, wallets WalletStore, usage UsageCounter, limits Limits) *Enforcer {
	return &Enforcer{keys: keys, wallets: wallets, usage: usage, limits: limits}
}

// Enforce runs the decision procedure for a resolved principal and
// capability. The free branches delegate the read-then-increment to
// a single conditional UPDATE so the decision is atomic per
// principal; the premium key branch reads the rolling window and
// then meters the lifetime counter as a statistic.
func (e *Enforcer) Enforce(ctx context.Context, p auth.Principal, capability model.Capability) (Decision, error) {
	switch p.Kind {
	case auth.KindWallet:
		return e.enforceWallet(ctx, *p.Wallet, capability)
	default:
		return e.enforceKey(ctx, *p.Key, *p.Account, capability)
	}
}

func (e *Enforcer) enforceKey(ctx context.Context, key model.APIKey, acct model.Account, capability model.Capability) (Decision, error) {
	if ClassifyAccount(acct) == TierFree {
		limit := e.limits.FreeKeyLifetime
		used, ok, err := e.keys.TryConsume(ctx, key.ID, limit)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			return Decision{
				Reason:  ReasonFreeLimit,
				Message: fmt.Sprintf("Free tier limit reached (%d/%d). Upgrade to premium for higher limits.", used, limit),
				Used:    used,
				Limit:   limit,
			}, nil
		}
		return Decision{Allowed: true, Used: used, Limit: limit, Remaining: limit - used}, nil
	}

	ceiling := e.limits.perWindow(capability)
	recent, err := e.usage.CountRecentByKey(ctx, key.ID, e.limits.Window)
	if err != nil {
		return Decision{}, err
	}
	if recent >= ceiling {
		return Decision{
			Reason:  ReasonRateLimit,
			Message: fmt.Sprintf("Rate limit exceeded: %d %s requests per hour.", ceiling, capability),
			Used:    recent,
			Limit:   ceiling,
		}, nil
	}
	// The lifetime counter is informational for premium keys; the
	// window count above is what gates them.
	if _, err := e.keys.Touch(ctx, key.ID); err != nil {
		return Decision{}, err
	}
	return Decision{Allowed: true, Used: recent + 1, Limit: ceiling, Remaining: ceiling - recent - 1}, nil
}

func (e *Enforcer) enforceWallet(ctx context.Context, w model.Wallet, capability model.Capability) (Decision, error) {
	if ClassifyWallet(w) == TierPremium {
		// Token holders are never blocked and never incremented;
		// their stored limits are informational only.
		used, limit := w.Usage(capability)
		return Decision{Allowed: true, Used: used, Limit: limit, Remaining: -1, Unmetered: true}, nil
	}
	used, limit, ok, err := e.wallets.TryConsume(ctx, w.Address, capability)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{
			Reason:  ReasonFreeLimit,
			Message: fmt.Sprintf("Free tier limit reached (%d/%d). Verify token holdings for unlimited access.", used, limit),
			Used:    used,
			Limit:   limit,
		}, nil
	}
	return Decision{Allowed: true, Used: used, Limit: limit, Remaining: limit - used}, nil
}
