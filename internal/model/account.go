package model

import "time"

// Account represents a human user record as stored in the
// `accounts` table. Accounts own API keys and carry the two tier
// flags whose disjunction defines premium access. The json tags
// are omitted because these structs are used internally by the
// repository layer; handlers define separate response types.
//
// Fields:
//  ID              – primary key identifier of the account.
//  Email           – unique email address (may be empty for keys issued without one).
//  Name            – display name supplied at registration or key issuance.
//  PasswordHash    – bcrypt hashed password; empty for accounts created
//                    implicitly by key issuance (no dashboard login).
//  PaymentVerified – set by the billing webhook once a payment succeeds.
//  IsTokenHolder   – set when any wallet linked to this account passes the
//                    token-holder threshold.
//  IsActive        – whether the account is active.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
type Account struct {
	ID              uint64    // accounts.id
	Email           string    // accounts.email
	Name            string    // accounts.name
	PasswordHash    string    // accounts.password_hash
	PaymentVerified bool      // accounts.payment_verified
	IsTokenHolder   bool      // accounts.is_token_holder
	IsActive        bool      // accounts.is_active
	CreatedAt       time.Time // accounts.created_at
	UpdatedAt       time.Time // accounts.updated_at
}

// Premium reports whether the account qualifies for the premium
// tier. Either a verified payment or token-holder status is enough.
func (a Account) Premium() bool {
	return a.PaymentVerified || a.IsTokenHolder
}
