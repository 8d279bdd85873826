package interfaces

import (
	"context"
	"time"
)

// CacheStore persists serialized snapshots by key
type CacheStore interface {
	// Load returns the stored data and its write time. ok is false when the key is absent.
	Load(ctx context.Context, key string) (data []byte, storedAt time.Time, ok bool, err error)

	// Store writes data under key, replacing any previous entry
	Store(ctx context.Context, key string, data []byte) error

	// Invalidate removes every entry whose key starts with prefix
	Invalidate(ctx context.Context, prefix string) error
}
