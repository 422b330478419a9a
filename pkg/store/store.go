// Package store is the local key/value store holding the task collection and settings.
//
// Values are opaque bytes (JSON in practice). Update runs a read-modify-write cycle that is
// serialized per key, so concurrent writers to the same key never lose each other's changes.
package store

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by Get for a missing key.
	ErrNotFound = errors.New("store: key not found")
	// ErrNoChange may be returned from an Update callback to skip the write.
	ErrNoChange = errors.New("store: no change")
)

// Well-known keys.
const (
	KeyTasks       = "tasks"
	KeySettings    = "settings"
	KeyLastSummary = "lastSummary"
)

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Update passes the current value (nil when absent) to fn and stores the result.
	Update(ctx context.Context, key string, fn func(current []byte) ([]byte, error)) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Close() error
}

// Open returns a store for the given driver: "sqlite", "file" or "memory".
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "sqlite", "sqlite3":
		return OpenSQLite(path)
	case "file", "json":
		return OpenFile(path)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
