package cachestore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type MemCacheStore struct {
	Data *expirable.LRU[string, Entry]

	// serializes the version comparison in Set
	lk sync.Mutex
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, ttl time.Duration) *MemCacheStore {
	return &MemCacheStore{
		Data: expirable.NewLRU[string, Entry](capacity, nil, ttl),
	}
}

func (s *MemCacheStore) Get(ctx context.Context, name, key string) (*Entry, error) {
	e, ok := s.Data.Get(name + "/" + key)
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemCacheStore) Set(ctx context.Context, name, key string, e Entry) error {
	s.lk.Lock()
	defer s.lk.Unlock()
	k := name + "/" + key
	if cur, ok := s.Data.Peek(k); ok && cur.Version > e.Version {
		return nil
	}
	s.Data.Add(k, e)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, name, key string) error {
	s.Data.Remove(name + "/" + key)
	return nil
}
