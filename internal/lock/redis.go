// Package lock provides a Redis-backed scheduler.Locker so that several
// server instances serialize bookings of the same (class, day) pair.
package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is left alone.
var releaseScript = redis.NewScript(`
    if redis.call('GET', KEYS[1]) == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

// RedisLocker implements scheduler.Locker with SET NX PX.  TTL bounds how
// long a crashed holder can block others; it must exceed the longest
// critical section.
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
	log    *zap.Logger
}

// NewRedisLocker returns a locker storing keys under prefix.  Zero ttl or
// retry fall back to 10s and 25ms.
func NewRedisLocker(rdb *redis.Client, prefix string, ttl, retry time.Duration, log *zap.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	if log == nil {
		log = zap.NewNop()
	}
	if prefix == "" {
		prefix = "lock"
	}
	return &RedisLocker{rdb: rdb, prefix: prefix, ttl: ttl, retry: retry, log: log}
}

// Acquire polls until the key is free or ctx is done.  Redis errors are
// returned as they are.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	full := l.prefix + ":" + key
	token := uuid.NewString()
	for {
		ok, err := l.rdb.SetNX(ctx, full, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			return l.releaser(full, token), nil
		}
		t := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

func (l *RedisLocker) releaser(key, token string) func() {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("release lock failed", zap.String("key", key), zap.Error(err))
		}
	}
}
