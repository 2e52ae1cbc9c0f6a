package model

import "time"

// UsageEvent is one row of the append-only `usage_events` ledger.
// Exactly one event is written per accepted call. Events are never
// mutated or deleted; the premium rolling rate window is
// reconstructed by counting events with created_at inside the
// trailing window.
//
// Fields:
//  ID        – primary key identifier.
//  AccountID – owning account; zero for wallet-authenticated calls.
//  KeyID     – the API key that made the call (nullable – absent for
//              wallet-authenticated calls).
//  Endpoint  – request path, e.g. /v1/research.
//  Method    – HTTP method.
//  Summary   – opaque request summary (target repo, request id).
//  CreatedAt – timestamp; the column the rolling window counts on.
type UsageEvent struct {
	ID        uint64    // usage_events.id
	AccountID uint64    // usage_events.account_id
	KeyID     *uint64   // usage_events.key_id (nullable)
	Endpoint  string    // usage_events.endpoint
	Method    string    // usage_events.method
	Summary   string    // usage_events.summary
	CreatedAt time.Time // usage_events.created_at
}
