package repository

import (
	"context"
	"database/sql"

	"github.com/unrepo/unrepo-api/internal/model"
)

// APIKeyRepo provides data access to the `api_keys` table. The
// consumption methods are the only writers of usage_count; the
// conditional UPDATE in TryConsume is what makes the free-tier
// read-then-increment atomic per key (see the quota package).
type APIKeyRepo struct{ DB *sql.DB }

func NewAPIKeyRepo(db *sql.DB) *APIKeyRepo { return &APIKeyRepo{DB: db} }

const apiKeyColumns = "id,account_id,token,capability,name,is_active,usage_count,last_used_at,created_at"

// Create inserts a key and returns its ID. The token string must
// already carry the unrepo_<capability>_ prefix matching capability.
func (r *APIKeyRepo) Create(ctx context.Context, accountID uint64, token string, capability model.Capability, name string) (uint64, error) {
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO api_keys (account_id, token, capability, name) VALUES (?,?,?,?)",
		accountID, token, string(capability), name)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetActiveByToken fetches an active key whose stored token and
// capability both match. Inactive keys and capability mismatches
// are indistinguishable from absence on purpose.
func (r *APIKeyRepo) GetActiveByToken(ctx context.Context, token string, capability model.Capability) (model.APIKey, error) {
	var k model.APIKey
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE token=? AND capability=? AND is_active=1 LIMIT 1",
		token, string(capability)).
		Scan(&k.ID, &k.AccountID, &k.Token, &k.Capability, &k.Name, &k.IsActive, &k.UsageCount, &k.LastUsedAt, &k.CreatedAt)
	if err == sql.ErrNoRows {
		return k, ErrNotFound
	}
	return k, err
}

// ListByAccount returns all keys owned by an account, newest first.
func (r *APIKeyRepo) ListByAccount(ctx context.Context, accountID uint64) ([]model.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_keys WHERE account_id=? ORDER BY id DESC", accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var keys []model.APIKey
	for rows.Next() {
		var k model.APIKey
		if err := rows.Scan(&k.ID, &k.AccountID, &k.Token, &k.Capability, &k.Name, &k.IsActive, &k.UsageCount, &k.LastUsedAt, &k.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Deactivate flips is_active off for a key owned by accountID.
// Keys are never physically deleted.
func (r *APIKeyRepo) Deactivate(ctx context.Context, accountID, keyID uint64) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE api_keys SET is_active=0 WHERE id=? AND account_id=? AND is_active=1",
		keyID, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TryConsume atomically increments usage_count when it is still
// below limit, stamping last_used_at in the same statement. It
// returns the counter value after the call and whether the
// increment happened. Two concurrent calls at usage_count=limit-1
// cannot both succeed: the WHERE clause and the row lock taken by
// the UPDATE serialize them.
func (r *APIKeyRepo) TryConsume(ctx context.Context, keyID uint64, limit int) (used int, ok bool, err error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE api_keys SET usage_count=usage_count+1, last_used_at=UTC_TIMESTAMP() WHERE id=? AND usage_count < ?",
		keyID, limit)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	err = r.DB.QueryRowContext(ctx,
		"SELECT usage_count FROM api_keys WHERE id=?", keyID).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, false, ErrNotFound
	}
	return used, n > 0, err
}

// Touch unconditionally increments usage_count and stamps
// last_used_at. Premium keys are metered by the rolling window, so
// the lifetime counter is kept only as a statistic for them.
func (r *APIKeyRepo) Touch(ctx context.Context, keyID uint64) (used int, err error) {
	if _, err = r.DB.ExecContext(ctx,
		"UPDATE api_keys SET usage_count=usage_count+1, last_used_at=UTC_TIMESTAMP() WHERE id=?", keyID); err != nil {
		return 0, err
	}
	err = r.DB.QueryRowContext(ctx,
		"SELECT usage_count FROM api_keys WHERE id=?", keyID).Scan(&used)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return used, err
}
