package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/unrepo/unrepo-api/internal/model"
)

// UsageEventRepo provides append and windowed-count access to the
// `usage_events` ledger. Rows are write-once; there is no update or
// delete path here. Counts read straight from the primary so an
// event recorded on one request is visible to the next request's
// rolling-window check.
type UsageEventRepo struct{ DB *sql.DB }

func NewUsageEventRepo(db *sql.DB) *UsageEventRepo { return &UsageEventRepo{DB: db} }

// Record appends one ledger row for an accepted call. keyID is nil
// for wallet-authenticated calls.
func (r *UsageEventRepo) Record(ctx context.Context, accountID uint64, keyID *uint64, endpoint, method, summary string) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO usage_events (account_id, key_id, endpoint, method, summary) VALUES (?,?,?,?,?)",
		accountID, keyID, endpoint, method, summary)
	return err
}

// CountRecentByKey counts ledger rows for a key with created_at
// inside the trailing window. Used exclusively by the premium
// rolling-window branch of quota enforcement.
func (r *UsageEventRepo) CountRecentByKey(ctx context.Context, keyID uint64, window time.Duration) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM usage_events WHERE key_id=? AND created_at > UTC_TIMESTAMP() - INTERVAL ? SECOND",
		keyID, int64(window.Seconds())).Scan(&n)
	return n, err
}

// ListRecentByAccount returns the newest ledger rows for an account,
// capped at limit. Backs the dashboard usage-history endpoint.
func (r *UsageEventRepo) ListRecentByAccount(ctx context.Context, accountID uint64, limit int) ([]model.UsageEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT id,account_id,key_id,endpoint,method,summary,created_at FROM usage_events WHERE account_id=? ORDER BY id DESC LIMIT ?",
		accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []model.UsageEvent
	for rows.Next() {
		var (
			e     model.UsageEvent
			keyID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &e.AccountID, &keyID, &e.Endpoint, &e.Method, &e.Summary, &e.CreatedAt); err != nil {
			return nil, err
		}
		if keyID.Valid {
			id := uint64(keyID.Int64)
			e.KeyID = &id
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
