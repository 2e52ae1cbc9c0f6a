// Package queue defines message payloads exchanged over the message broker.
package queue

// UsageRecordedEvent is published after a usage-event row is
// appended to the ledger. It carries enough for downstream analytics
// and audit consumers without querying the primary database. The
// database row remains the authoritative record; this copy is
// best-effort.
type UsageRecordedEvent struct {
	AccountID  uint64  `json:"account_id"`
	KeyID      *uint64 `json:"key_id,omitempty"`
	Wallet     string  `json:"wallet,omitempty"`
	Capability string  `json:"capability"`
	Endpoint   string  `json:"endpoint"`
	Method     string  `json:"method"`
	Summary    string  `json:"summary"`
	Tier       string  `json:"tier"`
	RecordedAt string  `json:"recorded_at"`
}
