// Package store defines the durable key/value capability the engine
// persists ledgers through. Backends live in the subpackages.
package store

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when no value is stored under the key.
var ErrNotFound = errors.New("wordledger: key not found")

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("wordledger: store is closed")

// Store is an opaque secure key/value store. Values are the serialized
// ledger records; the store never interprets them.
type Store interface {
	// Get returns the value stored under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set durably stores value under key, replacing any previous value.
	// It must not return before the write is durable.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// LedgerKey returns the default key a user's ledger is stored under.
func LedgerKey(userID string) string {
	return "wordledger/ledger/" + strings.TrimSpace(userID)
}
