package cachestore

import (
	"context"
)

// CacheStore is a namespaced string cache, used for hot read-mostly
// metadata like per-user notification preferences. A miss is reported as
// an empty string, not an error.
type CacheStore interface {
	Get(ctx context.Context, name, key string) (string, error)
	Set(ctx context.Context, name, key string, val string) error
	Purge(ctx context.Context, name, key string) error
}
