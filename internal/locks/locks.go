package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pharmadist-backend/internal/config"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

var ErrLocked = errors.New("document is being changed by another user, try again")

type Releaser func()

// Locker serialises changes to one document across API instances.
type Locker interface {
	Obtain(ctx context.Context, key string) (Releaser, error)
}

var current Locker = NoopLocker{}

func Set(l Locker) {
	current = l
}

// Obtain uses the locker installed with Set (no-op by default).
func Obtain(ctx context.Context, key string) (Releaser, error) {
	return current.Obtain(ctx, key)
}

// DocumentKey builds keys such as "delivery_challan:42".
func DocumentKey(entityType string, id uint) string {
	return fmt.Sprintf("%s:%d", entityType, id)
}

type NoopLocker struct{}

func (NoopLocker) Obtain(context.Context, string) (Releaser, error) {
	return func() {}, nil
}

type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl}
}

func (l *RedisLocker) Obtain(ctx context.Context, key string) (Releaser, error) {
	lock, err := l.client.Obtain(ctx, "lock:"+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 5),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLocked
	}
	if err != nil {
		return nil, err
	}
	return func() {
		// background: the request context may already be cancelled
		if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(config.GetLogger(), "locks", "Release", "lock release failed", key, err)
		}
	}, nil
}

// Connect pings redis and installs a RedisLocker. An empty address keeps the
// no-op locker.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	Set(NewRedisLocker(rdb, defaultTTL))
	config.GetLogger().WithField("addr", addr).Info("connected to redis, document locks enabled")
	return rdb, nil
}
