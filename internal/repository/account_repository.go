package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/unrepo/unrepo-api/internal/model"
)

// AccountRepo provides data access to the `accounts` table.
type AccountRepo struct{ DB *sql.DB }

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{DB: db} }

const accountColumns = "id,email,name,password_hash,payment_verified,is_token_holder,is_active,created_at,updated_at"

// Create inserts an account and returns its ID. Email is normalized
// to lower case; a duplicate email maps to ErrEmailExists. An empty
// email is stored as NULL so anonymous key issuance does not collide
// on the unique index.
func (r *AccountRepo) Create(ctx context.Context, email, name, passwordHash string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO accounts (email, name, password_hash) VALUES (NULLIF(?,''),?,?)",
		email, name, passwordHash)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByID fetches an account by id.
func (r *AccountRepo) GetByID(ctx context.Context, id uint64) (model.Account, error) {
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE id=? LIMIT 1", id))
}

// GetByEmail fetches an account by normalized email.
func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (model.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanAccount(r.DB.QueryRowContext(ctx,
		"SELECT "+accountColumns+" FROM accounts WHERE email=? LIMIT 1", email))
}

func scanAccount(row *sql.Row) (model.Account, error) {
	var a model.Account
	var email sql.NullString
	err := row.Scan(&a.ID, &email, &a.Name, &a.PasswordHash, &a.PaymentVerified, &a.IsTokenHolder, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return a, ErrNotFound
	}
	a.Email = email.String
	return a, err
}

// FindOrCreateByEmail returns the account for email, creating a
// passwordless one when none exists. Key issuance uses this so a
// bare {type,name,email} request lands on a stable account.
func (r *AccountRepo) FindOrCreateByEmail(ctx context.Context, email, name string) (model.Account, error) {
	a, err := r.GetByEmail(ctx, email)
	if err == nil {
		return a, nil
	}
	if err != ErrNotFound {
		return model.Account{}, err
	}
	id, err := r.Create(ctx, email, name, "")
	if err == ErrEmailExists {
		// Lost a race with a concurrent issuance for the same email.
		return r.GetByEmail(ctx, email)
	}
	if err != nil {
		return model.Account{}, err
	}
	return r.GetByID(ctx, id)
}

// SetPaymentVerified flips the payment_verified flag. Called by the
// billing webhook once Stripe confirms a payment.
func (r *AccountRepo) SetPaymentVerified(ctx context.Context, id uint64, verified bool) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE accounts SET payment_verified=? WHERE id=?", verified, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// RowsAffected is also 0 when the flag already holds the
		// target value, so confirm the row exists before reporting.
		var one int
		if err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM accounts WHERE id=?", id).Scan(&one); err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
	}
	return nil
}
