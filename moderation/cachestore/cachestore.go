package cachestore

import (
	"context"
)

// Entry is a cached value stamped with the version of the source data it was derived from.
// Readers compare Version against the source before trusting Value.
type Entry struct {
	Version int64
	Value   string
}

type CacheStore interface {
	// Get returns nil on a miss.
	Get(ctx context.Context, name, key string) (*Entry, error)
	// Set stores e unless an entry with a higher version is already cached.
	Set(ctx context.Context, name, key string, e Entry) error
	Purge(ctx context.Context, name, key string) error
}
