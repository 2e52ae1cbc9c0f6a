package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/unrepo/unrepo-api/internal/model"
)

// WalletRepo provides data access to the `wallets` table. As with
// API keys, the per-capability counters are only ever advanced by
// the conditional UPDATE in TryConsume, which is what keeps the
// free-tier decision atomic per wallet.
type WalletRepo struct{ DB *sql.DB }

func NewWalletRepo(db *sql.DB) *WalletRepo { return &WalletRepo{DB: db} }

const walletColumns = "address,is_verified,research_used,research_limit,chat_used,chat_limit,is_token_holder,token_balance,last_token_check,last_used_at,created_at,updated_at"

// Create inserts a wallet row with the fixed starting limits. A
// duplicate address maps to ErrWalletExists so registration can
// take the idempotent path.
func (r *WalletRepo) Create(ctx context.Context, address string, verified bool) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO wallets (address, is_verified, research_limit, chat_limit) VALUES (?,?,?,?)",
		address, verified, model.DefaultWalletResearchLimit, model.DefaultWalletChatLimit)
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "1062") {
		return ErrWalletExists
	}
	return err
}

// GetByAddress fetches a wallet by address.
func (r *WalletRepo) GetByAddress(ctx context.Context, address string) (model.Wallet, error) {
	var w model.Wallet
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+walletColumns+" FROM wallets WHERE address=? LIMIT 1", address).
		Scan(&w.Address, &w.IsVerified, &w.ResearchUsed, &w.ResearchLimit, &w.ChatUsed, &w.ChatLimit,
			&w.IsTokenHolder, &w.TokenBalance, &w.LastTokenCheck, &w.LastUsedAt, &w.CreatedAt, &w.UpdatedAt)
	if err == sql.ErrNoRows {
		return w, ErrNotFound
	}
	return w, err
}

// TryConsume atomically increments the counter for the given
// capability while it is still below its stored limit, stamping
// last_used_at in the same statement. It returns the counter and
// limit after the call and whether the increment happened.
func (r *WalletRepo) TryConsume(ctx context.Context, address string, capability model.Capability) (used, limit int, ok bool, err error) {
	usedCol, limitCol := "chat_used", "chat_limit"
	if capability == model.CapabilityResearch {
		usedCol, limitCol = "research_used", "research_limit"
	}
	res, err := r.DB.ExecContext(ctx,
		"UPDATE wallets SET "+usedCol+"="+usedCol+"+1, last_used_at=UTC_TIMESTAMP() WHERE address=? AND "+usedCol+" < "+limitCol,
		address)
	if err != nil {
		return 0, 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, 0, false, err
	}
	err = r.DB.QueryRowContext(ctx,
		"SELECT "+usedCol+", "+limitCol+" FROM wallets WHERE address=?", address).Scan(&used, &limit)
	if err == sql.ErrNoRows {
		return 0, 0, false, ErrNotFound
	}
	return used, limit, n > 0, err
}

// UpdateTokenStatus caches the oracle verdict onto the wallet row.
// Staleness is acceptable; the flag only reflects the last check.
func (r *WalletRepo) UpdateTokenStatus(ctx context.Context, address string, isHolder bool, balance float64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE wallets SET is_token_holder=?, token_balance=?, last_token_check=UTC_TIMESTAMP() WHERE address=?",
		isHolder, balance, address)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM wallets WHERE address=?", address).Scan(&one); err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}
