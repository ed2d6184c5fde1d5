package cachestore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisCacheStore keeps entries in redis behind a small in-process tier. Entries are msgpack
// encoded by go-redis/cache, version included, so every replica can validate them.
type RedisCacheStore struct {
	Data *cache.Cache
	TTL  time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, ttl time.Duration) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}
	return &RedisCacheStore{
		Data: cache.New(&cache.Options{
			Redis: rdb,
			// local tier stays short so purges on other replicas are seen quickly
			LocalCache: cache.NewTinyLFU(10_000, min(ttl, 5*time.Second)),
		}),
		TTL: ttl,
	}, nil
}

func redisCacheKey(name, key string) string {
	return "warden/cache/" + name + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, name, key string) (*Entry, error) {
	var e Entry
	err := s.Data.Get(ctx, redisCacheKey(name, key), &e)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// Set skips the write when a newer version is already cached. The comparison is not atomic with
// the write; a lost race leaves an older entry, which readers reject by version.
func (s *RedisCacheStore) Set(ctx context.Context, name, key string, e Entry) error {
	k := redisCacheKey(name, key)
	var cur Entry
	err := s.Data.Get(ctx, k, &cur)
	switch {
	case err == nil && cur.Version > e.Version:
		return nil
	case err != nil && !errors.Is(err, cache.ErrCacheMiss):
		return err
	}
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   k,
		Value: &e,
		TTL:   s.TTL,
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, name, key string) error {
	err := s.Data.Delete(ctx, redisCacheKey(name, key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	return err
}
