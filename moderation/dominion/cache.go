package dominion

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cacheEntry struct {
	Updated  time.Time
	Dominion string
	Err      error
}

// CacheDirectory memoizes another Directory. Unknown-territory answers are cached like hits;
// other errors are not cached at all.
type CacheDirectory struct {
	Inner Directory
	cache *expirable.LRU[string, cacheEntry]
}

var _ Directory = (*CacheDirectory)(nil)

// Capacity of zero means unlimited size. Similarly, ttl of zero means unlimited duration.
func NewCacheDirectory(inner Directory, capacity int, ttl time.Duration) *CacheDirectory {
	return &CacheDirectory{
		Inner: inner,
		cache: expirable.NewLRU[string, cacheEntry](capacity, nil, ttl),
	}
}

func (d *CacheDirectory) DominionOf(ctx context.Context, territoryID string) (string, error) {
	if e, ok := d.cache.Get(territoryID); ok {
		dominionCacheHits.Inc()
		return e.Dominion, e.Err
	}
	dominionCacheMisses.Inc()

	dom, err := d.Inner.DominionOf(ctx, territoryID)
	if err != nil && !errors.Is(err, ErrUnknownTerritory) {
		return "", err
	}
	d.cache.Add(territoryID, cacheEntry{Updated: time.Now(), Dominion: dom, Err: err})
	return dom, err
}

func (d *CacheDirectory) Purge(territoryID string) {
	d.cache.Remove(territoryID)
}
