package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"log"
	"time"

	"github.com/unrepo/unrepo-api/internal/auth"
	"github.com/unrepo/unrepo-api/internal/model"
	"github.com/unrepo/unrepo-api/internal/repository"
)

// Store is the slice of the wallet repository the service needs.
type Store interface {
	Create(ctx context.Context, address string, verified bool) error
	GetByAddress(ctx context.Context, address string) (model.Wallet, error)
	UpdateTokenStatus(ctx context.Context, address string, isHolder bool, balance float64) error
}

// Service handles wallet registration and token-status refresh.
//
// Signature enforcement is an explicit configuration choice: in
// strict mode a bad signature rejects the registration; in
// permissive mode it is logged and registration proceeds, which
// reproduces the behavior of an earlier deployment. Strict is the
// default.
type Service struct {
	store  Store
	oracle TokenOracle
	strict bool
}

func NewService(store Store, oracle TokenOracle, strict bool) *Service {
	return &Service{store: store, oracle: oracle, strict: strict}
}

// Register creates the wallet for address if it does not exist yet.
// Re-registering an existing address is idempotent: the stored row
// is returned unchanged and no counter is reset.
//
// The signature must be a hex-encoded detached Ed25519 signature
// over the raw message bytes under the public key the address
// encodes. After a successful insert, a detached best-effort
// token-status refresh is kicked off; its failure never fails
// registration.
func (s *Service) Register(ctx context.Context, address, signature, message string) (model.Wallet, error) {
	addr, err := auth.ValidateAddress(address)
	if err != nil {
		return model.Wallet{}, err
	}

	if w, err := s.store.GetByAddress(ctx, addr); err == nil {
		return w, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Wallet{}, err
	}

	if err := VerifySignature(addr, signature, message); err != nil {
		if s.strict {
			return model.Wallet{}, err
		}
		log.Printf("WARN: wallet: permissive mode, registering %s despite signature failure: %v", addr, err)
	}

	if err := s.store.Create(ctx, addr, true); err != nil && !errors.Is(err, repository.ErrWalletExists) {
		return model.Wallet{}, err
	}
	w, err := s.store.GetByAddress(ctx, addr)
	if err != nil {
		return model.Wallet{}, err
	}

	// Pre-populate token-holder status without blocking the caller.
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if _, err := s.RefreshTokenStatus(bg, addr); err != nil {
			log.Printf("WARN: wallet: background token check for %s failed: %v", addr, err)
		}
	}()

	return w, nil
}

// RefreshTokenStatus consults the oracle for address and caches the
// verdict onto the wallet row. It is invoked on demand by the
// verify-tokens endpoint and in the background after registration.
func (s *Service) RefreshTokenStatus(ctx context.Context, address string) (model.Wallet, error) {
	addr, err := auth.ValidateAddress(address)
	if err != nil {
		return model.Wallet{}, err
	}
	status, err := s.oracle.VerifyHolder(ctx, addr)
	if err != nil {
		return model.Wallet{}, err
	}
	if err := s.store.UpdateTokenStatus(ctx, addr, status.IsTokenHolder, status.Balance); err != nil {
		return model.Wallet{}, err
	}
	return s.store.GetByAddress(ctx, addr)
}

// VerifySignature checks a hex-encoded detached Ed25519 signature
// over message under the public key encoded by address. All failure
// modes collapse into auth.ErrInvalidSignature.
func VerifySignature(address, signature, message string) error {
	pub, err := hex.DecodeString(address)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return auth.ErrInvalidSignature
	}
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return auth.ErrInvalidSignature
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), []byte(message), sig) {
		return auth.ErrInvalidSignature
	}
	return nil
}
