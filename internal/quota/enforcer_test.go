package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unrepo/unrepo-api/internal/auth"
	"github.com/unrepo/unrepo-api/internal/model"
)

// fakeKeyStore reproduces the repository's conditional-UPDATE
// contract in memory: the check and the increment happen under one
// lock, so concurrent TryConsume calls contend the way concurrent
// UPDATEs on one row do.
type fakeKeyStore struct {
	mu      sync.Mutex
	used    map[uint64]int
	touches int
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{used: map[uint64]int{}}
}

func (f *fakeKeyStore) TryConsume(_ context.Context, keyID uint64, limit int) (int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.used[keyID] >= limit {
		return f.used[keyID], false, nil
	}
	f.used[keyID]++
	return f.used[keyID], true, nil
}

func (f *fakeKeyStore) Touch(_ context.Context, keyID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.used[keyID]++
	f.touches++
	return f.used[keyID], nil
}

type fakeWalletStore struct {
	mu    sync.Mutex
	used  map[string]map[model.Capability]int
	limit map[model.Capability]int
	calls int
}

func newFakeWalletStore() *fakeWalletStore {
	return &fakeWalletStore{
		used: map[string]map[model.Capability]int{},
		limit: map[model.Capability]int{
			model.CapabilityResearch: model.DefaultWalletResearchLimit,
			model.CapabilityChat:     model.DefaultWalletChatLimit,
		},
	}
}

func (f *fakeWalletStore) TryConsume(_ context.Context, address string, c model.Capability) (int, int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.used[address] == nil {
		f.used[address] = map[model.Capability]int{}
	}
	limit := f.limit[c]
	if f.used[address][c] >= limit {
		return f.used[address][c], limit, false, nil
	}
	f.used[address][c]++
	return f.used[address][c], limit, true, nil
}

type fakeUsageCounter struct{ recent int }

func (f *fakeUsageCounter) CountRecentByKey(_ context.Context, _ uint64, _ time.Duration) (int, error) {
	return f.recent, nil
}

func keyPrincipal(acct model.Account) auth.Principal {
	key := model.APIKey{ID: 1, AccountID: acct.ID, Capability: model.CapabilityResearch, IsActive: true}
	return auth.Principal{Kind: auth.KindKey, Key: &key, Account: &acct}
}

func walletPrincipal(w model.Wallet) auth.Principal {
	return auth.Principal{Kind: auth.KindWallet, Wallet: &w}
}

func TestFreeKeyLifetimeCap(t *testing.T) {
	keys := newFakeKeyStore()
	e := NewEnforcer(keys, newFakeWalletStore(), &fakeUsageCounter{}, DefaultLimits())
	p := keyPrincipal(model.Account{ID: 7, IsActive: true})

	for want := 4; want >= 0; want-- {
		dec, err := e.Enforce(context.Background(), p, model.CapabilityResearch)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
		assert.Equal(t, want, dec.Remaining)
	}

	dec, err := e.Enforce(context.Background(), p, model.CapabilityResearch)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonFreeLimit, dec.Reason)
	assert.Contains(t, dec.Message, "Free tier limit reached")
	assert.Equal(t, 5, dec.Used)
	assert.Equal(t, 5, dec.Limit)

	// The cap never resets; a later call is still denied.
	dec, err = e.Enforce(context.Background(), p, model.CapabilityResearch)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestFreeKeyLastUnitSingleWinner(t *testing.T) {
	keys := newFakeKeyStore()
	keys.used[1] = 4 // one unit left
	e := NewEnforcer(keys, newFakeWalletStore(), &fakeUsageCounter{}, DefaultLimits())
	p := keyPrincipal(model.Account{ID: 7, IsActive: true})

	const n = 32
	var wg sync.WaitGroup
	allowed := make(chan bool, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dec, err := e.Enforce(context.Background(), p, model.CapabilityResearch)
			if err == nil && dec.Allowed {
				allowed <- true
			}
		}()
	}
	wg.Wait()
	close(allowed)

	wins := 0
	for range allowed {
		wins++
	}
	assert.Equal(t, 1, wins, "exactly one request may take the last unit")
	assert.Equal(t, 5, keys.used[1])
}

func TestWalletCountersIndependent(t *testing.T) {
	wallets := newFakeWalletStore()
	e := NewEnforcer(newFakeKeyStore(), wallets, &fakeUsageCounter{}, DefaultLimits())
	p := walletPrincipal(model.Wallet{Address: "ab12", IsVerified: true})

	// Research allows exactly once.
	dec, err := e.Enforce(context.Background(), p, model.CapabilityResearch)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	dec, err = e.Enforce(context.Background(), p, model.CapabilityResearch)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Contains(t, dec.Message, "Verify token holdings")

	// The exhausted research counter leaves chat untouched.
	for i := 0; i < model.DefaultWalletChatLimit; i++ {
		dec, err = e.Enforce(context.Background(), p, model.CapabilityChat)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
	}
	dec, err = e.Enforce(context.Background(), p, model.CapabilityChat)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
}

func TestTokenHolderBypassIsUnmetered(t *testing.T) {
	wallets := newFakeWalletStore()
	e := NewEnforcer(newFakeKeyStore(), wallets, &fakeUsageCounter{}, DefaultLimits())
	p := walletPrincipal(model.Wallet{
		Address:       "cd34",
		IsVerified:    true,
		IsTokenHolder: true,
		ResearchUsed:  1, ResearchLimit: 1, // stored counters exhausted
	})

	for i := 0; i < 10; i++ {
		dec, err := e.Enforce(context.Background(), p, model.CapabilityResearch)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
		assert.True(t, dec.Unmetered)
	}
	assert.Zero(t, wallets.calls, "token holders must not touch stored counters")
}

func TestPremiumRollingWindow(t *testing.T) {
	keys := newFakeKeyStore()
	counter := &fakeUsageCounter{}
	e := NewEnforcer(keys, newFakeWalletStore(), counter, DefaultLimits())
	p := keyPrincipal(model.Account{ID: 7, IsActive: true, PaymentVerified: true})

	counter.recent = 42
	dec, err := e.Enforce(context.Background(), p, model.CapabilityResearch)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
	assert.Equal(t, 1, keys.touches, "premium allow still meters the lifetime counter")

	counter.recent = 100
	dec, err = e.Enforce(context.Background(), p, model.CapabilityResearch)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)
	assert.Equal(t, ReasonRateLimit, dec.Reason)
	assert.Equal(t, 100, dec.Limit)
	assert.Equal(t, 1, keys.touches, "a denied request must not consume")
}

func TestPremiumWindowCeilingsPerCapability(t *testing.T) {
	keys := newFakeKeyStore()
	counter := &fakeUsageCounter{recent: 150}
	e := NewEnforcer(keys, newFakeWalletStore(), counter, DefaultLimits())
	p := keyPrincipal(model.Account{ID: 7, IsActive: true, IsTokenHolder: true})

	// 150 recent events exceed the research ceiling but not chat's.
	dec, err := e.Enforce(context.Background(), p, model.CapabilityResearch)
	require.NoError(t, err)
	assert.False(t, dec.Allowed)

	dec, err = e.Enforce(context.Background(), p, model.CapabilityChat)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}

func TestPremiumKeyIgnoresLifetimeCap(t *testing.T) {
	keys := newFakeKeyStore()
	keys.used[1] = 500 // far past the free lifetime cap
	e := NewEnforcer(keys, newFakeWalletStore(), &fakeUsageCounter{recent: 0}, DefaultLimits())
	p := keyPrincipal(model.Account{ID: 7, IsActive: true, PaymentVerified: true})

	dec, err := e.Enforce(context.Background(), p, model.CapabilityResearch)
	require.NoError(t, err)
	assert.True(t, dec.Allowed)
}
