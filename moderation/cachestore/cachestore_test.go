package cachestore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testCacheStoreBasics(t *testing.T, cs CacheStore, name string) {
	assert := assert.New(t)
	ctx := context.Background()

	e, err := cs.Get(ctx, name, "uA")
	assert.NoError(err)
	assert.Nil(e)

	assert.NoError(cs.Set(ctx, name, "uA", Entry{Version: 2, Value: `[{"level":2}]`}))
	e, err = cs.Get(ctx, name, "uA")
	assert.NoError(err)
	if assert.NotNil(e) {
		assert.Equal(int64(2), e.Version)
		assert.Equal(`[{"level":2}]`, e.Value)
	}

	// a fill computed from older data does not replace a newer one
	assert.NoError(cs.Set(ctx, name, "uA", Entry{Version: 1, Value: `[]`}))
	e, err = cs.Get(ctx, name, "uA")
	assert.NoError(err)
	if assert.NotNil(e) {
		assert.Equal(int64(2), e.Version)
	}
	assert.NoError(cs.Set(ctx, name, "uA", Entry{Version: 3, Value: `[]`}))
	e, err = cs.Get(ctx, name, "uA")
	assert.NoError(err)
	if assert.NotNil(e) {
		assert.Equal(int64(3), e.Version)
		assert.Equal(`[]`, e.Value)
	}

	// names are separate namespaces
	e, err = cs.Get(ctx, name+"-other", "uA")
	assert.NoError(err)
	assert.Nil(e)

	assert.NoError(cs.Purge(ctx, name, "uA"))
	e, err = cs.Get(ctx, name, "uA")
	assert.NoError(err)
	assert.Nil(e)
	assert.NoError(cs.Purge(ctx, name, "never-set"))

	// after a purge any version may fill again
	assert.NoError(cs.Set(ctx, name, "uA", Entry{Version: 1, Value: `[]`}))
	e, err = cs.Get(ctx, name, "uA")
	assert.NoError(err)
	if assert.NotNil(e) {
		assert.Equal(int64(1), e.Version)
	}
}

func TestMemCacheStoreBasics(t *testing.T) {
	testCacheStoreBasics(t, NewMemCacheStore(10, time.Minute), "active-punishments")
}

func TestRedisCacheStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	cs, err := NewRedisCacheStore("redis://localhost:6379/0", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	testCacheStoreBasics(t, cs, fmt.Sprintf("test-%d", time.Now().UnixNano()))
}

func TestMemCacheStoreExpiry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCacheStore(10, 20*time.Millisecond)
	assert.NoError(cs.Set(ctx, "effective", "uA", Entry{Version: 1, Value: "x"}))
	time.Sleep(60 * time.Millisecond)
	e, err := cs.Get(ctx, "effective", "uA")
	assert.NoError(err)
	assert.Nil(e)
}
