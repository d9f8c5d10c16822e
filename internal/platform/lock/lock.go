// Package lock serializes ledger mutations across processes that share one
// Redis-backed store.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

// DefaultKey is the lock key used when none is configured.
const DefaultKey = "factoring:lock"

// ErrBusy indicates the lock stayed held by another process for the whole
// retry budget.
var ErrBusy = errors.New("lock: busy")

// Redis is a mutual-exclusion lock held in Redis.
type Redis struct {
	client *redislock.Client
	key    string
	ttl    time.Duration
	retry  redislock.RetryStrategy
}

// Option configures Redis.
type Option func(*Redis)

// WithRetry overrides the retry strategy used while the lock is held elsewhere.
func WithRetry(strategy redislock.RetryStrategy) Option {
	return func(l *Redis) {
		l.retry = strategy
	}
}

// NewRedis builds a lock on key. ttl bounds how long a crashed holder can
// block others.
func NewRedis(client redislock.RedisClient, key string, ttl time.Duration, opts ...Option) *Redis {
	if key == "" {
		key = DefaultKey
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	l := &Redis{
		client: redislock.New(client),
		key:    key,
		ttl:    ttl,
		retry:  redislock.LimitRetry(redislock.LinearBackoff(50*time.Millisecond), 100),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Acquire blocks until the lock is obtained, the retry budget runs out or
// ctx is done. The returned func releases the lock.
func (l *Redis) Acquire(ctx context.Context) (func(), error) {
	held, err := l.client.Obtain(ctx, l.key, l.ttl, &redislock.Options{RetryStrategy: l.retry})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, fmt.Errorf("lock: obtain %s: %w", l.key, err)
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = held.Release(releaseCtx)
	}, nil
}
