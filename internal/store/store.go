// Package store defines the key-value capability shared by player records
// and cooldown markers, plus an in-process implementation. Durable
// backends live under internal/storage.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: key not found")

// Store is a key-value store with per-key expiry. A ttl of zero means the
// key never expires. All synchronization across server instances funnels
// through SetIfAbsent and CompareAndSwap.
type Store interface {
	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
	// SetIfAbsent stores value only if key is absent. It returns true if it wrote.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Get returns the value of key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value unconditionally.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// CompareAndSwap replaces the value of key with next only if the current
	// value equals prev byte for byte. It returns true if it wrote.
	CompareAndSwap(ctx context.Context, key string, prev, next []byte, ttl time.Duration) (bool, error)
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}

// Sweeper is implemented by backends without native expiry; Sweep purges
// expired keys and reports how many it removed.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Lister is implemented by backends that can enumerate live keys by prefix.
type Lister interface {
	Keys(ctx context.Context, prefix string) ([]string, error)
}
