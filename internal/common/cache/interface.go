package cache

import (
	"context"
	"time"
)

// Cache defines the key-value operations the grader needs for job status
// storage. The abstraction keeps Redis swappable for another store without
// touching business logic.
type Cache interface {
	// Get retrieves the value for the given key. A missing key returns "".
	Get(ctx context.Context, key string) (string, error)

	// Set stores a key-value pair with optional TTL.
	// If ttl is 0, the key will not expire.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Ping verifies the cache connection is alive.
	Ping(ctx context.Context) error

	// Close closes the cache connection.
	Close() error
}
