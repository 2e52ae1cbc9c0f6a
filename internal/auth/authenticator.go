package auth

import (
	"context"
	"errors"

	"github.com/unrepo/unrepo-api/internal/model"
	"github.com/unrepo/unrepo-api/internal/repository"
)

// PrincipalKind distinguishes the two credential variants a quota
// is charged against.
type PrincipalKind int

const (
	// KindKey is an API-key principal backed by an account.
	KindKey PrincipalKind = iota
	// KindWallet is a self-contained wallet principal.
	KindWallet
)

// Principal is the resolved identity for one request. Exactly one
// of Key+Account or Wallet is populated, matching Kind. The value
// is produced by a single authentication step that either fully
// succeeds or fails with one of the sentinel errors.
type Principal struct {
	Kind    PrincipalKind
	Key     *model.APIKey
	Account *model.Account
	Wallet  *model.Wallet
}

// KeyLookup is the slice of the API-key repository the
// authenticator needs.
type KeyLookup interface {
	GetActiveByToken(ctx context.Context, token string, capability model.Capability) (model.APIKey, error)
}

// AccountLookup is the slice of the account repository the
// authenticator needs.
type AccountLookup interface {
	GetByID(ctx context.Context, id uint64) (model.Account, error)
}

// WalletLookup is the slice of the wallet repository the
// authenticator needs.
type WalletLookup interface {
	GetByAddress(ctx context.Context, address string) (model.Wallet, error)
}

// Authenticator turns raw credentials into Principals. It performs
// no writes; tier flags are read fresh from storage on every call
// so asynchronous upgrades (payment, token threshold) take effect
// on the next request.
type Authenticator struct {
	keys     KeyLookup
	accounts AccountLookup
	wallets  WalletLookup
}

func NewAuthenticator(keys KeyLookup, accounts AccountLookup, wallets WalletLookup) *Authenticator {
	return &Authenticator{keys: keys, accounts: accounts, wallets: wallets}
}

// AuthenticateKey resolves a bearer string presented to an endpoint
// expecting the given capability. Structural validation runs first
// so obviously invalid input never reaches storage.
func (a *Authenticator) AuthenticateKey(ctx context.Context, raw string, want model.Capability) (Principal, error) {
	if err := ValidateToken(raw, want); err != nil {
		return Principal{}, err
	}
	key, err := a.keys.GetActiveByToken(ctx, raw, want)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}
	acct, err := a.accounts.GetByID(ctx, key.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}
	if !acct.IsActive {
		return Principal{}, ErrNotFound
	}
	return Principal{Kind: KindKey, Key: &key, Account: &acct}, nil
}

// AuthenticateWallet resolves a wallet address into a principal.
// Only wallets that completed signature-verified registration are
// accepted.
func (a *Authenticator) AuthenticateWallet(ctx context.Context, address string) (Principal, error) {
	addr, err := ValidateAddress(address)
	if err != nil {
		return Principal{}, err
	}
	w, err := a.wallets.GetByAddress(ctx, addr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Principal{}, ErrNotFound
		}
		return Principal{}, err
	}
	if !w.IsVerified {
		return Principal{}, ErrNotFound
	}
	return Principal{Kind: KindWallet, Wallet: &w}, nil
}
