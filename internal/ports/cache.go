package ports

import (
	"context"
	"time"
)

// Cache is a durable key-value capability used for image mappings and user
// notification preferences. Adapters may be backed by SQLite or other stores;
// adapters without expiry may ignore ttl.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
