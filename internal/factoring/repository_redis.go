package factoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey names the hash holding the ledger instance state.
const DefaultRedisKey = "factoring:instance"

// RedisRepository stores every slot as a field of one Redis hash, so the
// whole ledger shares a single lifetime like host instance storage.
type RedisRepository struct {
	client *redis.Client
	key    string
}

var _ Repository = (*RedisRepository)(nil)

// NewRedisRepository constructs a repository on the given hash key.
func NewRedisRepository(client *redis.Client, key string) *RedisRepository {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRepository{client: client, key: key}
}

// Key returns the hash key.
func (r *RedisRepository) Key() string { return r.key }

type hashGetter interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
}

func hget(cmd hashGetter, hash string) slotGetter {
	return func(ctx context.Context, field string) ([]byte, bool, error) {
		raw, err := cmd.HGet(ctx, hash, field).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("factoring/redis: hget %s: %w", field, err)
		}
		return raw, true, nil
	}
}

// InvoiceCount implements Reader.
func (r *RedisRepository) InvoiceCount(ctx context.Context) (uint64, error) {
	return hget(r.client, r.key).InvoiceCount(ctx)
}

// Invoice implements Reader.
func (r *RedisRepository) Invoice(ctx context.Context, id uint64) (Invoice, bool, error) {
	return hget(r.client, r.key).Invoice(ctx, id)
}

// Stats implements Reader.
func (r *RedisRepository) Stats(ctx context.Context) (PlatformStats, error) {
	return hget(r.client, r.key).Stats(ctx)
}

// WithTx watches the instance hash, runs fn and applies the staged commit
// in a MULTI/EXEC block. A write by another client between the reads and
// EXEC aborts with ErrConflict.
func (r *RedisRepository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	err := r.client.Watch(ctx, func(rtx *redis.Tx) error {
		tx := &redisTx{slotGetter: hget(rtx, r.key), staged: stagedCommit{}}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if len(tx.staged) == 0 {
			return nil
		}
		values := make(map[string]any, len(tx.staged))
		for k, v := range tx.staged {
			values[k] = v
		}
		_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, r.key, values)
			return nil
		})
		return err
	}, r.key)
	if errors.Is(err, redis.TxFailedErr) {
		return ErrConflict
	}
	return err
}

// ExtendRetention sets the hash TTL to ExtendTo when it has none or when
// the remaining TTL is below Threshold.
func (r *RedisRepository) ExtendRetention(ctx context.Context, ret Retention) error {
	if !ret.Enabled() {
		return nil
	}
	ttl, err := r.TTL(ctx)
	if err != nil {
		return fmt.Errorf("factoring/redis: ttl: %w", err)
	}
	switch {
	case ttl == -2:
		// nothing stored yet
		return nil
	case ttl < 0, ttl < ret.Threshold:
		if err := r.client.Expire(ctx, r.key, ret.ExtendTo).Err(); err != nil {
			return fmt.Errorf("factoring/redis: expire: %w", err)
		}
	}
	return nil
}

// TTL reports the remaining lifetime of the instance hash.
func (r *RedisRepository) TTL(ctx context.Context) (time.Duration, error) {
	return r.client.TTL(ctx, r.key).Result()
}

type redisTx struct {
	slotGetter
	staged stagedCommit
}

func (t *redisTx) Commit(_ context.Context, c Commit) error {
	return t.staged.add(c)
}
