package progress

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"randomness-oracle-sol/internal/logic/syncloop"
	"randomness-oracle-sol/internal/pkg/types"

	"github.com/redis/go-redis/v9"
)

// RedisProgressStore 保存 broadcaster 的检查点、slot 状态与账户更新记录
type RedisProgressStore struct {
	rdb    *redis.Client
	prefix string
}

// Redis key 前缀
const (
	checkpointPrefix = "checkpoint"
	slotPrefix       = "slot"
	updatePrefix     = "update"
)

const (
	slotTTL   = 24 * time.Hour
	updateTTL = 7 * 24 * time.Hour
)

// NewRedisProgressStore prefix 用于多个 broadcaster 共享同一 Redis
func NewRedisProgressStore(rdb *redis.Client, prefix string) *RedisProgressStore {
	if prefix == "" {
		prefix = "randomness"
	}
	return &RedisProgressStore{rdb: rdb, prefix: prefix}
}

func (r *RedisProgressStore) checkpointKey(authority types.Pubkey) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, checkpointPrefix, authority)
}

func (r *RedisProgressStore) slotKey(authority types.Pubkey, slot uint64) string {
	return fmt.Sprintf("%s:%s:%s:%d", r.prefix, slotPrefix, authority, slot)
}

func (r *RedisProgressStore) updateKey(account types.Pubkey) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, updatePrefix, account)
}

func (r *RedisProgressStore) LoadCheckpoint(ctx context.Context, authority types.Pubkey) (syncloop.Checkpoint, error) {
	val, err := r.rdb.Get(ctx, r.checkpointKey(authority)).Uint64()
	switch {
	case errors.Is(err, redis.Nil):
		return syncloop.Checkpoint{}, nil
	case err != nil:
		return syncloop.Checkpoint{}, fmt.Errorf("redis get checkpoint: %w", err)
	}
	return syncloop.Checkpoint{Slot: val, Valid: true}, nil
}

// SaveCheckpoint 同时标记该 slot 已处理
func (r *RedisProgressStore) SaveCheckpoint(ctx context.Context, authority types.Pubkey, cp syncloop.Checkpoint) error {
	if !cp.Valid {
		return nil
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.checkpointKey(authority), strconv.FormatUint(cp.Slot, 10), 0)
	pipe.Set(ctx, r.slotKey(authority, cp.Slot), int(SlotProcessed), slotTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis save checkpoint: %w", err)
	}
	return nil
}

func (r *RedisProgressStore) GetSlotStatus(ctx context.Context, authority types.Pubkey, slot uint64) (SlotStatus, error) {
	val, err := r.rdb.Get(ctx, r.slotKey(authority, slot)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return SlotUnknown, nil
	case err != nil:
		return SlotUnknown, fmt.Errorf("redis get error: %w", err)
	case val == int(SlotProcessed):
		return SlotProcessed, nil
	default:
		return SlotUnknown, nil // 容错处理
	}
}

// WriteUpdates 批量写入账户更新记录，每个账户一个 hash
func (r *RedisProgressStore) WriteUpdates(ctx context.Context, records []*UpdateRecord) error {
	if len(records) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	for _, rec := range records {
		key := r.updateKey(rec.Account)
		pipe.HSet(ctx, key, rec.fields())
		pipe.Expire(ctx, key, updateTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis write updates: %w", err)
	}
	return nil
}

// GetUpdate 读取账户最近一次更新记录，不存在时返回 nil
func (r *RedisProgressStore) GetUpdate(ctx context.Context, account types.Pubkey) (*UpdateRecord, error) {
	vals, err := r.rdb.HGetAll(ctx, r.updateKey(account)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	if len(vals) == 0 {
		return nil, nil
	}
	return parseUpdateRecord(account, vals)
}
