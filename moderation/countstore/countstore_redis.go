package countstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisCountPrefix    = "warden/count/"
	redisDistinctPrefix = "warden/distinct/"

	// buckets outlive their period so a read near the boundary still finds them
	hourBucketTTL = 2 * time.Hour
	dayBucketTTL  = 48 * time.Hour
)

// RedisCountStore keeps one redis key per counter and period bucket. Plain counters are strings
// driven by INCR; distinct counters are HyperLogLogs.
type RedisCountStore struct {
	Client *redis.Client
	// overridable in tests
	Now func() time.Time
}

var _ CountStore = (*RedisCountStore)(nil)

func NewRedisCountStore(redisURL string) (*RedisCountStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
		return nil, err
	}
	return &RedisCountStore{Client: rdb}, nil
}

// bucketKey is one redis key of a counter with its expiry; zero means the key never expires.
type bucketKey struct {
	key string
	ttl time.Duration
}

func bucketKeys(prefix, name, val string, now time.Time) []bucketKey {
	return []bucketKey{
		{prefix + periodBucket(name, val, PeriodHour, now), hourBucketTTL},
		{prefix + periodBucket(name, val, PeriodDay, now), dayBucketTTL},
		{prefix + periodBucket(name, val, PeriodTotal, now), 0},
	}
}

func (s *RedisCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	key := redisCountPrefix + periodBucket(name, val, period, clockNow(s.Now))
	c, err := s.Client.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return c, err
}

func (s *RedisCountStore) Increment(ctx context.Context, name, val string) error {
	// all periods in a single round-trip
	pipe := s.Client.Pipeline()
	for _, b := range bucketKeys(redisCountPrefix, name, val, clockNow(s.Now)) {
		pipe.Incr(ctx, b.key)
		if b.ttl > 0 {
			pipe.Expire(ctx, b.key, b.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

// KEYS[1] is the capped bucket; KEYS[2..4] are the hour, day and total buckets with their TTLs
// (seconds, 0 for none) in ARGV[2..4]. ARGV[1] is the limit.
var incrementCappedScript = redis.NewScript(`
local n = tonumber(redis.call('GET', KEYS[1]) or '0')
if n >= tonumber(ARGV[1]) then
	return 0
end
for i = 2, 4 do
	redis.call('INCR', KEYS[i])
	local ttl = tonumber(ARGV[i])
	if ttl > 0 then
		redis.call('EXPIRE', KEYS[i], ttl)
	end
end
return 1
`)

func (s *RedisCountStore) IncrementCapped(ctx context.Context, name, val, period string, limit int) (bool, error) {
	now := clockNow(s.Now)
	buckets := bucketKeys(redisCountPrefix, name, val, now)
	keys := []string{redisCountPrefix + periodBucket(name, val, period, now)}
	args := []any{limit}
	for _, b := range buckets {
		keys = append(keys, b.key)
		args = append(args, int(b.ttl.Seconds()))
	}
	n, err := incrementCappedScript.Run(ctx, s.Client, keys, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *RedisCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	key := redisDistinctPrefix + periodBucket(name, bucket, period, clockNow(s.Now))
	c, err := s.Client.PFCount(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return int(c), err
}

func (s *RedisCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	pipe := s.Client.Pipeline()
	for _, b := range bucketKeys(redisDistinctPrefix, name, bucket, clockNow(s.Now)) {
		pipe.PFAdd(ctx, b.key, val)
		if b.ttl > 0 {
			pipe.Expire(ctx, b.key, b.ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}
