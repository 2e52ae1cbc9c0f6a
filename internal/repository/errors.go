// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios
// without string matching on driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. Handlers
// translate this into 401 (credentials) or 404 (targets) depending
// on context.
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an account insert collides with
// the unique email index. Handlers should translate this into an
// HTTP 409 response.
var ErrEmailExists = errors.New("email already exists")

// ErrWalletExists is returned when a wallet insert collides with an
// existing address. Registration treats this as the idempotent
// path and re-reads the existing row.
var ErrWalletExists = errors.New("wallet already registered")
