package auth

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unrepo/unrepo-api/internal/model"
	"github.com/unrepo/unrepo-api/internal/repository"
)

type fakeKeyLookup struct {
	t      *testing.T
	key    model.APIKey
	err    error
	called bool
	forbid bool // fail the test if storage is reached
}

func (f *fakeKeyLookup) GetActiveByToken(_ context.Context, _ string, _ model.Capability) (model.APIKey, error) {
	f.called = true
	if f.forbid {
		f.t.Fatal("storage lookup reached for a structurally invalid token")
	}
	return f.key, f.err
}

type fakeAccountLookup struct {
	acct model.Account
	err  error
}

func (f *fakeAccountLookup) GetByID(_ context.Context, _ uint64) (model.Account, error) {
	return f.acct, f.err
}

type fakeWalletLookup struct {
	w   model.Wallet
	err error
}

func (f *fakeWalletLookup) GetByAddress(_ context.Context, _ string) (model.Wallet, error) {
	return f.w, f.err
}

func validToken(c model.Capability) string {
	return TokenPrefix + string(c) + "_" + strings.Repeat("f", 64)
}

func TestAuthenticateKeyMalformedSkipsStorage(t *testing.T) {
	keys := &fakeKeyLookup{t: t, forbid: true}
	a := NewAuthenticator(keys, &fakeAccountLookup{}, &fakeWalletLookup{})

	for _, raw := range []string{
		"",
		"not-a-token",
		validToken(model.CapabilityChat), // wrong capability for this endpoint
	} {
		_, err := a.AuthenticateKey(context.Background(), raw, model.CapabilityResearch)
		assert.ErrorIs(t, err, ErrMalformed, raw)
	}
	assert.False(t, keys.called)
}

func TestAuthenticateKey(t *testing.T) {
	tok := validToken(model.CapabilityResearch)
	key := model.APIKey{ID: 3, AccountID: 9, Capability: model.CapabilityResearch, IsActive: true}

	t.Run("resolves active key and account", func(t *testing.T) {
		a := NewAuthenticator(
			&fakeKeyLookup{t: t, key: key},
			&fakeAccountLookup{acct: model.Account{ID: 9, IsActive: true, PaymentVerified: true}},
			&fakeWalletLookup{})
		p, err := a.AuthenticateKey(context.Background(), tok, model.CapabilityResearch)
		require.NoError(t, err)
		assert.Equal(t, KindKey, p.Kind)
		assert.Equal(t, uint64(3), p.Key.ID)
		assert.True(t, p.Account.Premium())
	})

	t.Run("unknown token", func(t *testing.T) {
		a := NewAuthenticator(
			&fakeKeyLookup{t: t, err: repository.ErrNotFound},
			&fakeAccountLookup{}, &fakeWalletLookup{})
		_, err := a.AuthenticateKey(context.Background(), tok, model.CapabilityResearch)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("suspended account", func(t *testing.T) {
		a := NewAuthenticator(
			&fakeKeyLookup{t: t, key: key},
			&fakeAccountLookup{acct: model.Account{ID: 9, IsActive: false}},
			&fakeWalletLookup{})
		_, err := a.AuthenticateKey(context.Background(), tok, model.CapabilityResearch)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestAuthenticateWallet(t *testing.T) {
	addr := strings.Repeat("ab", 32)

	t.Run("resolves verified wallet", func(t *testing.T) {
		a := NewAuthenticator(&fakeKeyLookup{t: t}, &fakeAccountLookup{},
			&fakeWalletLookup{w: model.Wallet{Address: addr, IsVerified: true}})
		p, err := a.AuthenticateWallet(context.Background(), strings.ToUpper(addr))
		require.NoError(t, err)
		assert.Equal(t, KindWallet, p.Kind)
		assert.Equal(t, addr, p.Wallet.Address)
	})

	t.Run("malformed address", func(t *testing.T) {
		a := NewAuthenticator(&fakeKeyLookup{t: t}, &fakeAccountLookup{}, &fakeWalletLookup{})
		_, err := a.AuthenticateWallet(context.Background(), "0x1234")
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("unregistered address", func(t *testing.T) {
		a := NewAuthenticator(&fakeKeyLookup{t: t}, &fakeAccountLookup{},
			&fakeWalletLookup{err: repository.ErrNotFound})
		_, err := a.AuthenticateWallet(context.Background(), addr)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unverified wallet", func(t *testing.T) {
		a := NewAuthenticator(&fakeKeyLookup{t: t}, &fakeAccountLookup{},
			&fakeWalletLookup{w: model.Wallet{Address: addr, IsVerified: false}})
		_, err := a.AuthenticateWallet(context.Background(), addr)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
