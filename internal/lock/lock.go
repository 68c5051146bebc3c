// Package lock serializes mutations per order or payment key across server instances.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when a key stays held by someone else until the wait expires.
var ErrNotObtained = errors.New("lock not obtained")

// Release gives a held key back.
type Release func(ctx context.Context) error

// Locker hands out exclusive keys.
type Locker interface {
	Obtain(ctx context.Context, key string) (Release, error)
}

func OrderKey(id fmt.Stringer) string   { return "lock:order:" + id.String() }
func PaymentKey(id fmt.Stringer) string { return "lock:payment:" + id.String() }

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	opts   *redislock.Options
}

// NewRedisLocker builds a Locker on bsm/redislock. Obtain retries for up to
// roughly one second before giving up.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		client: redislock.New(rdb),
		ttl:    ttl,
		opts: &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 20),
		},
	}
}

// ConnectRedis dials addr and pings it.
func ConnectRedis(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (l *redisLocker) Obtain(ctx context.Context, key string) (Release, error) {
	lk, err := l.client.Obtain(ctx, key, l.ttl, l.opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, fmt.Errorf("%s: %w", key, ErrNotObtained)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return func(ctx context.Context) error {
		if err := lk.Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}, nil
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
	wait time.Duration
}

// NewLocalLocker serializes keys inside this process only.
func NewLocalLocker(wait time.Duration) Locker {
	return &localLocker{held: map[string]chan struct{}{}, wait: wait}
}

func (l *localLocker) Obtain(ctx context.Context, key string) (Release, error) {
	ctx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()

	for {
		l.mu.Lock()
		ch, busy := l.held[key]
		if !busy {
			ch = make(chan struct{})
			l.held[key] = ch
			l.mu.Unlock()
			return l.releaser(key, ch), nil
		}
		l.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", key, ErrNotObtained)
		}
	}
}

func (l *localLocker) releaser(key string, ch chan struct{}) Release {
	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
			close(ch)
		})
		return nil
	}
}
