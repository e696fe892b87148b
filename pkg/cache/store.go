package cache

import (
	"context"
	"time"
)

// Store is the key/value boundary the RAG engine caches results behind.
// A miss is (nil, false, nil); errors are reserved for backend failures
// so callers can treat them as a miss without caching garbage.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Flush drops every entry. Administrative operation, not part of the
	// normal request flow.
	Flush(ctx context.Context) error
}
