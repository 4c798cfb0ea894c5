package progress

import (
	"context"
	"sync/atomic"
	"time"

	"randomness-oracle-sol/internal/logic/dispatcher"
	"randomness-oracle-sol/internal/logic/syncloop"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"

	"github.com/zeromicro/go-zero/core/service"
	"github.com/zeromicro/go-zero/core/threading"
)

type progressStore interface {
	LoadCheckpoint(ctx context.Context, authority types.Pubkey) (syncloop.Checkpoint, error)
	SaveCheckpoint(ctx context.Context, authority types.Pubkey, cp syncloop.Checkpoint) error
	GetSlotStatus(ctx context.Context, authority types.Pubkey, slot uint64) (SlotStatus, error)
	WriteUpdates(ctx context.Context, records []*UpdateRecord) error
}

// ProgressManager 封装 Redis + 缓冲：检查点同步写入，账户更新记录缓冲后批量写入
type ProgressManager struct {
	store  progressStore
	buffer *recordBuffer
	now    func() time.Time
}

func NewProgressManager(redis *RedisProgressStore) *ProgressManager {
	return newProgressManager(redis)
}

func newProgressManager(store progressStore) *ProgressManager {
	return &ProgressManager{
		store:  store,
		buffer: newRecordBuffer(),
		now:    time.Now,
	}
}

// LoadCheckpoint slot 标记已过期（超过 slotTTL）的检查点视为无效
func (pm *ProgressManager) LoadCheckpoint(ctx context.Context, authority types.Pubkey) (syncloop.Checkpoint, error) {
	cp, err := pm.store.LoadCheckpoint(ctx, authority)
	if err != nil || !cp.Valid {
		return cp, err
	}
	status, err := pm.store.GetSlotStatus(ctx, authority, cp.Slot)
	if err != nil {
		return syncloop.Checkpoint{}, err
	}
	if status != SlotProcessed {
		logger.Warnf("[Progress] checkpoint slot %d is stale, ignored", cp.Slot)
		return syncloop.Checkpoint{}, nil
	}
	return cp, nil
}

func (pm *ProgressManager) SaveCheckpoint(ctx context.Context, authority types.Pubkey, cp syncloop.Checkpoint) error {
	return pm.store.SaveCheckpoint(ctx, authority, cp)
}

// RecordUpdates 只写缓冲，由 StartFlushLoop 定时落 Redis
func (pm *ProgressManager) RecordUpdates(_ context.Context, slot uint64, results []dispatcher.Result) error {
	now := pm.now()
	for _, res := range results {
		if !res.OK() {
			continue
		}
		pm.buffer.Add(&UpdateRecord{
			Account:   res.Pubkey,
			Slot:      slot,
			Value:     res.Value,
			Signature: res.Signature,
			UpdatedAt: now,
		})
	}
	return nil
}

func (pm *ProgressManager) Flush(ctx context.Context) error {
	records := pm.buffer.Flush()
	if len(records) == 0 {
		return nil
	}
	if err := pm.store.WriteUpdates(ctx, records); err != nil {
		return err
	}
	logger.Debugf("[Progress] flushed %d update records", len(records))
	return nil
}

// StartFlushLoop 启动后台定时 flush，ctx 结束时做最后一次 flush
func (pm *ProgressManager) StartFlushLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := pm.Flush(context.WithoutCancel(ctx)); err != nil {
				logger.Errorf("[Progress] final flush failed: %v", err)
			}
			return
		case <-ticker.C:
			if err := pm.Flush(ctx); err != nil {
				// 打日志即可，buffer 已清空
				logger.Errorf("[Progress] flush failed: %v", err)
			}
		}
	}
}

var _ syncloop.CheckpointStore = (*ProgressManager)(nil)

// FlushService 将 StartFlushLoop 包装为 go-zero service.Service。
// upstream 为写入 RecordUpdates 的服务：Stop 时先等它们全部停止，再做最后一次 flush，
// ServiceGroup 并发 Stop 各服务，无法保证这个顺序
type FlushService struct {
	pm       *ProgressManager
	interval time.Duration
	upstream []service.Service
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	started  atomic.Bool
}

func NewFlushService(pm *ProgressManager, interval time.Duration, upstream ...service.Service) *FlushService {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &FlushService{
		pm:       pm,
		interval: interval,
		upstream: upstream,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

func (s *FlushService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)

	group := threading.NewRoutineGroup()
	for _, svc := range s.upstream {
		group.RunSafe(svc.Start)
	}
	group.RunSafe(func() {
		s.pm.StartFlushLoop(s.ctx, s.interval)
	})
	group.Wait()
}

func (s *FlushService) Stop() {
	group := threading.NewRoutineGroup()
	for _, svc := range s.upstream {
		group.RunSafe(svc.Stop)
	}
	group.Wait()

	s.cancel()
	if s.started.Load() {
		<-s.done
	} else if err := s.pm.Flush(context.Background()); err != nil {
		logger.Errorf("[Progress] final flush failed: %v", err)
	}
}
