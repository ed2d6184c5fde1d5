package countstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/veilcampus/warden/moderation/errs"
)

func testCountStoreBasics(t *testing.T, cs CountStore, prefix string) {
	assert := assert.New(t)
	ctx := context.Background()

	c, err := cs.GetCount(ctx, prefix+"test1", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(0, c)
	assert.NoError(cs.Increment(ctx, prefix+"test1", "val1"))
	assert.NoError(cs.Increment(ctx, prefix+"test1", "val1"))

	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, prefix+"test1", "val1", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	assert.NoError(cs.IncrementDistinct(ctx, prefix+"test2", "val2", "one"))
	assert.NoError(cs.IncrementDistinct(ctx, prefix+"test2", "val2", "one"))
	assert.NoError(cs.IncrementDistinct(ctx, prefix+"test2", "val2", "two"))
	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCountDistinct(ctx, prefix+"test2", "val2", period)
		assert.NoError(err)
		assert.Equal(2, c)
	}

	// capped increments stop at the limit and leave the counters untouched once refused
	for i := 0; i < 3; i++ {
		ok, err := cs.IncrementCapped(ctx, prefix+"test3", "val3", PeriodDay, 3)
		assert.NoError(err)
		assert.True(ok)
	}
	ok, err := cs.IncrementCapped(ctx, prefix+"test3", "val3", PeriodDay, 3)
	assert.NoError(err)
	assert.False(ok)
	for _, period := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		c, err = cs.GetCount(ctx, prefix+"test3", "val3", period)
		assert.NoError(err)
		assert.Equal(3, c)
	}
}

func testQuotaReserve(t *testing.T, cs CountStore, prefix string) {
	assert := assert.New(t)
	ctx := context.Background()

	q := &Quota{Store: cs, Name: prefix + "permanent-ban", Period: PeriodDay, Limit: 2}
	for i := 0; i < 2; i++ {
		assert.NoError(q.Check(ctx, "mod-1"))
		assert.NoError(q.Reserve(ctx, "mod-1"))
	}
	err := q.Check(ctx, "mod-1")
	assert.True(errors.Is(err, errs.ErrQuotaExceeded))
	err = q.Reserve(ctx, "mod-1")
	assert.True(errors.Is(err, errs.ErrQuotaExceeded))
	assert.NoError(q.Check(ctx, "mod-2"))

	left, err := q.Remaining(ctx, "mod-1")
	assert.NoError(err)
	assert.Equal(0, left)

	// parallel reservations against a fresh quota never overshoot the limit
	burst := &Quota{Store: cs, Name: prefix + "burst", Period: PeriodHour, Limit: 5}
	var granted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := burst.Reserve(ctx, "mod-3")
			if err == nil {
				granted.Add(1)
				return
			}
			assert.True(errors.Is(err, errs.ErrQuotaExceeded))
		}()
	}
	wg.Wait()
	assert.Equal(int32(5), granted.Load())
	n, err := cs.GetCount(ctx, prefix+"burst", "mod-3", PeriodHour)
	assert.NoError(err)
	assert.Equal(5, n)
}

func TestMemCountStoreBasics(t *testing.T) {
	testCountStoreBasics(t, NewMemCountStore(), "")
}

func TestMemQuotaReserve(t *testing.T) {
	testQuotaReserve(t, NewMemCountStore(), "")
}

func TestRedisCountStoreBasics(t *testing.T) {
	t.Skip("live test, need redis running locally")
	assert := assert.New(t)

	cs, err := NewRedisCountStore("redis://localhost:6379/0")
	if err != nil {
		t.Fail()
	}
	prefix := fmt.Sprintf("test-%d-", time.Now().UnixNano())
	testCountStoreBasics(t, cs, prefix)
	testQuotaReserve(t, cs, prefix)

	// hour buckets carry an expiry, totals do not
	now := time.Now()
	hourKey := redisCountPrefix + periodBucket(prefix+"test1", "val1", PeriodHour, now)
	ttl, err := cs.Client.TTL(context.Background(), hourKey).Result()
	assert.NoError(err)
	assert.True(ttl > 0 && ttl <= hourBucketTTL)
	totalKey := redisCountPrefix + periodBucket(prefix+"test1", "val1", PeriodTotal, now)
	ttl, err = cs.Client.TTL(context.Background(), totalKey).Result()
	assert.NoError(err)
	assert.Equal(time.Duration(-1), ttl)
}

func TestMemCountStorePeriodRollover(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := time.Date(2026, 5, 1, 23, 30, 0, 0, time.UTC)
	cs := NewMemCountStore()
	cs.Now = func() time.Time { return now }

	assert.NoError(cs.Increment(ctx, "ban", "mod-1"))
	now = now.Add(time.Hour)

	c, err := cs.GetCount(ctx, "ban", "mod-1", PeriodDay)
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = cs.GetCount(ctx, "ban", "mod-1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)

	// a new day frees the daily cap again
	ok, err := cs.IncrementCapped(ctx, "ban", "mod-1", PeriodDay, 1)
	assert.NoError(err)
	assert.True(ok)
}

func TestMemCountStoreConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	cs := NewMemCountStore()

	// run with -race
	var wg sync.WaitGroup
	fnInc := func(name, val string, times int) {
		defer wg.Done()
		for i := 0; i < times; i++ {
			assert.NoError(cs.Increment(ctx, name, val))
			assert.NoError(cs.IncrementDistinct(ctx, name, name, val))
			time.Sleep(time.Nanosecond)
		}
	}
	wg.Add(4)
	go fnInc("test1", "val1", 10)
	go fnInc("test1", "val1", 10)
	go fnInc("test2", "val2", 6)
	go fnInc("test2", "val2", 6)
	wg.Wait()

	c, err := cs.GetCount(ctx, "test1", "val1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = cs.GetCount(ctx, "test2", "val2", PeriodTotal)
	assert.NoError(err)
	assert.Equal(12, c)
	c, err = cs.GetCountDistinct(ctx, "test1", "test1", PeriodTotal)
	assert.NoError(err)
	assert.Equal(1, c)
}

func TestUnlimitedQuota(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var unlimited *Quota
	assert.NoError(unlimited.Check(ctx, "anyone"))
	assert.NoError(unlimited.Reserve(ctx, "anyone"))
	left, err := unlimited.Remaining(ctx, "anyone")
	assert.NoError(err)
	assert.Equal(-1, left)

	zero := &Quota{Store: NewMemCountStore(), Name: "off", Period: PeriodDay}
	for i := 0; i < 3; i++ {
		assert.NoError(zero.Reserve(ctx, "anyone"))
	}
}
