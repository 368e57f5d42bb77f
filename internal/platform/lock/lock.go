// Package lock serializes read-modify-write cycles on the patient store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrTimeout is returned when the lock could not be acquired before the
// context ended.
var ErrTimeout = errors.New("lock: timed out waiting for lock")

// Locker hands out an exclusive lock. The returned unlock func must be
// called exactly once.
type Locker interface {
	Lock(ctx context.Context) (unlock func(), err error)
}

// MutexLocker is an in-process Locker. A buffered channel stands in for a
// mutex so waiting can be abandoned when the context ends.
type MutexLocker struct {
	ch chan struct{}
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{ch: make(chan struct{}, 1)}
}

func (m *MutexLocker) Lock(ctx context.Context) (func(), error) {
	select {
	case m.ch <- struct{}{}:
		return func() { <-m.ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
}

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another process is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisLocker is a Locker shared by every process using the same Redis key.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker returns a lock on key. ttl bounds how long a crashed holder
// can keep the lock.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, key: key, ttl: ttl, retry: 50 * time.Millisecond}
}

func (r *RedisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	for {
		ok, err := r.client.SetNX(ctx, r.key, token, r.ttl).Result()
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", r.key, err)
		}
		if ok {
			return func() {
				// The caller's context may be gone by now.
				releaseScript.Run(context.Background(), r.client, []string{r.key}, token) //nolint:errcheck // expires via ttl
			}, nil
		}

		select {
		case <-time.After(r.retry):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
	}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
