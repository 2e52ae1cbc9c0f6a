package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unrepo/unrepo-api/internal/auth"
	"github.com/unrepo/unrepo-api/internal/model"
	"github.com/unrepo/unrepo-api/internal/repository"
)

// fakeWalletStore must be safe for concurrent use: registration kicks
// off a background token refresh against the same store.
type fakeWalletStore struct {
	mu      sync.Mutex
	wallets map[string]model.Wallet
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{wallets: map[string]model.Wallet{}}
}

func (f *fakeWalletStore) Create(_ context.Context, address string, verified bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.wallets[address]; ok {
		return repository.ErrWalletExists
	}
	f.wallets[address] = model.Wallet{
		Address:       address,
		IsVerified:    verified,
		ResearchLimit: model.DefaultWalletResearchLimit,
		ChatLimit:     model.DefaultWalletChatLimit,
	}
	return nil
}

func (f *fakeWalletStore) GetByAddress(_ context.Context, address string) (model.Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[address]
	if !ok {
		return model.Wallet{}, repository.ErrNotFound
	}
	return w, nil
}

func (f *fakeWalletStore) UpdateTokenStatus(_ context.Context, address string, isHolder bool, balance float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.wallets[address]
	if !ok {
		return repository.ErrNotFound
	}
	w.IsTokenHolder = isHolder
	w.TokenBalance = balance
	f.wallets[address] = w
	return nil
}

type fakeOracle struct {
	mu     sync.Mutex
	status HolderStatus
	err    error
}

func (f *fakeOracle) VerifyHolder(_ context.Context, _ string) (HolderStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status, f.err
}

func (f *fakeOracle) setStatus(s HolderStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func signedRegistration(t *testing.T) (address, signature, message string) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	message = "register " + time.Now().UTC().Format(time.RFC3339)
	return hex.EncodeToString(pub), hex.EncodeToString(ed25519.Sign(priv, []byte(message))), message
}

func TestRegisterWithValidSignature(t *testing.T) {
	store := newFakeWalletStore()
	svc := NewService(store, &fakeOracle{}, true)
	addr, sig, msg := signedRegistration(t)

	w, err := svc.Register(context.Background(), addr, sig, msg)
	require.NoError(t, err)
	assert.Equal(t, addr, w.Address)
	assert.True(t, w.IsVerified)
	assert.Equal(t, model.DefaultWalletResearchLimit, w.ResearchLimit)
	assert.Equal(t, model.DefaultWalletChatLimit, w.ChatLimit)
}

func TestRegisterIsIdempotent(t *testing.T) {
	store := newFakeWalletStore()
	svc := NewService(store, &fakeOracle{}, true)
	addr, sig, msg := signedRegistration(t)

	_, err := svc.Register(context.Background(), addr, sig, msg)
	require.NoError(t, err)

	// Simulate consumption between registrations.
	store.mu.Lock()
	w := store.wallets[addr]
	w.ResearchUsed = 1
	store.wallets[addr] = w
	store.mu.Unlock()

	// Re-registering must not reset counters, and an existing row is
	// returned even with a garbage signature.
	got, err := svc.Register(context.Background(), addr, "feedface", "nonsense")
	require.NoError(t, err)
	assert.Equal(t, 1, got.ResearchUsed)
}

func TestRegisterStrictRejectsBadSignature(t *testing.T) {
	store := newFakeWalletStore()
	svc := NewService(store, &fakeOracle{}, true)
	addr, sig, _ := signedRegistration(t)

	_, err := svc.Register(context.Background(), addr, sig, "a different message")
	assert.ErrorIs(t, err, auth.ErrInvalidSignature)
	_, err = store.GetByAddress(context.Background(), addr)
	assert.ErrorIs(t, err, repository.ErrNotFound, "rejected registration must not create a row")
}

func TestRegisterPermissiveAcceptsBadSignature(t *testing.T) {
	store := newFakeWalletStore()
	svc := NewService(store, &fakeOracle{}, false)
	addr, sig, _ := signedRegistration(t)

	w, err := svc.Register(context.Background(), addr, sig, "a different message")
	require.NoError(t, err)
	assert.True(t, w.IsVerified)
}

func TestRegisterSurvivesOracleFailure(t *testing.T) {
	store := newFakeWalletStore()
	svc := NewService(store, &fakeOracle{err: errors.New("oracle down")}, true)
	addr, sig, msg := signedRegistration(t)

	w, err := svc.Register(context.Background(), addr, sig, msg)
	require.NoError(t, err)
	assert.False(t, w.IsTokenHolder)
}

func TestRefreshTokenStatus(t *testing.T) {
	store := newFakeWalletStore()
	oracle := &fakeOracle{status: HolderStatus{IsTokenHolder: true, Balance: 25000, Threshold: 10000}}
	svc := NewService(store, oracle, true)
	addr, sig, msg := signedRegistration(t)

	_, err := svc.Register(context.Background(), addr, sig, msg)
	require.NoError(t, err)

	w, err := svc.RefreshTokenStatus(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, w.IsTokenHolder)
	assert.Equal(t, float64(25000), w.TokenBalance)

	// A later refresh can demote the wallet again.
	oracle.setStatus(HolderStatus{IsTokenHolder: false, Balance: 100})
	w, err = svc.RefreshTokenStatus(context.Background(), addr)
	require.NoError(t, err)
	assert.False(t, w.IsTokenHolder)
}

func TestRefreshTokenStatusUnknownWallet(t *testing.T) {
	svc := NewService(newFakeWalletStore(), &fakeOracle{}, true)
	_, err := svc.RefreshTokenStatus(context.Background(), strings.Repeat("ab", 32))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestVerifySignature(t *testing.T) {
	addr, sig, msg := signedRegistration(t)
	assert.NoError(t, VerifySignature(addr, sig, msg))
	assert.ErrorIs(t, VerifySignature(addr, sig, msg+"!"), auth.ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(addr, "zz", msg), auth.ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature("1234", sig, msg), auth.ErrInvalidSignature)
}
