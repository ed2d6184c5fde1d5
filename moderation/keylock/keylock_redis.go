package keylock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var redisLockPrefix = "warden/lock/"

// deletes the key only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker serializes callers across processes sharing one redis. Locks expire after TTL so a
// crashed holder cannot wedge a key forever; TTL must exceed the longest critical section.
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
	// delay between acquisition attempts
	RetryInterval time.Duration
	Logger        *slog.Logger
}

var _ Locker = (*RedisLocker)(nil)

func NewRedisLocker(redisURL string, ttl time.Duration) (*RedisLocker, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(context.TODO()).Result()
	if err != nil {
		return nil, err
	}
	return &RedisLocker{
		Client:        rdb,
		TTL:           ttl,
		RetryInterval: 25 * time.Millisecond,
		Logger:        slog.Default().With("component", "keylock"),
	}, nil
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	rkey := redisLockPrefix + key
	token := uuid.NewString()

	t := time.NewTicker(l.RetryInterval)
	defer t.Stop()
	for {
		ok, err := l.Client.SetNX(ctx, rkey, token, l.TTL).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquiring redis lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, timeoutErr(key, ctx.Err())
		}
	}

	return func() {
		// release even if the request context is already canceled
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(rctx, l.Client, []string{rkey}, token).Err(); err != nil {
			l.Logger.Warn("failed to release redis lock", "key", key, "err", err)
		}
	}, nil
}
