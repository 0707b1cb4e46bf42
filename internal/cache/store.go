package cache

import (
	"context"
	"time"
)

// Store is the shared key/value cache used for rate limits, session lookups
// and short lived invite previews.
type Store interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

const keyPrefix = "adpulse:"

// Key joins parts into a namespaced cache key.
func Key(parts ...string) string {
	key := keyPrefix
	for i, part := range parts {
		if i > 0 {
			key += ":"
		}
		key += part
	}
	return key
}
