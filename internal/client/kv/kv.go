// Package kv provides the string key/value stores behind the local
// persistence adapter and the identity snapshot: SQLite, Redis and an
// in-memory map.
package kv

import "context"

// Store is a synchronous string key/value store with no transactions.
// GetItem reports ok=false for a missing key.
type Store interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
	DriverMemory = "memory"
)
