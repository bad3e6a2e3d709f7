// Package kv defines the host key-value contract the ledger persists through.
//
// The ledger only ever needs per-key get and set. Backends are free to add
// durability, replication, or transactions behind this contract, but callers
// must not assume atomicity across keys.
package kv

import "context"

// Store is the persistence contract provided by the hosting platform.
type Store interface {
	// Get returns the value stored under key. The boolean reports whether the
	// key exists; a missing key is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error
}
