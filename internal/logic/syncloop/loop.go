package syncloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"randomness-oracle-sol/internal/logic/dispatcher"
	"randomness-oracle-sol/internal/logic/feed"
	"randomness-oracle-sol/internal/logic/scanner"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"
)

const DefaultBackoff = 5 * time.Second

type State int

const (
	StateIdle State = iota
	StateScanning
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateScanning:
		return "Scanning"
	case StateDisconnected:
		return "Disconnected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Checkpoint 最近一次完整处理成功的 slot；Valid=false 表示尚未观测到任何高度
type Checkpoint struct {
	Slot  uint64
	Valid bool
}

type AccountScanner interface {
	Scan(ctx context.Context, authority types.Pubkey) ([]scanner.OracleAccount, error)
}

type UpdateDispatcher interface {
	Dispatch(ctx context.Context, accounts []scanner.OracleAccount) (*dispatcher.BatchReport, error)
}

// CheckpointStore 可选的进度持久化
type CheckpointStore interface {
	LoadCheckpoint(ctx context.Context, authority types.Pubkey) (Checkpoint, error)
	SaveCheckpoint(ctx context.Context, authority types.Pubkey, cp Checkpoint) error
	RecordUpdates(ctx context.Context, slot uint64, results []dispatcher.Result) error
}

// UpdatePublisher 可选的更新事件发布
type UpdatePublisher interface {
	PublishUpdates(ctx context.Context, slot uint64, authority types.Pubkey, results []dispatcher.Result) error
}

type Options struct {
	Backoff              time.Duration
	ResumeFromCheckpoint bool
	Store                CheckpointStore
	Publisher            UpdatePublisher
}

// Stats 运行统计
type Stats struct {
	Cycles      int // 完整执行的扫描+分发轮次
	FailedBatch int
	Reconnects  int
}

// Loop 监听高度变化，驱动扫描与分发。同一时刻最多只有一个批次在执行。
type Loop struct {
	feed       feed.HeightFeed
	scanner    AccountScanner
	dispatcher UpdateDispatcher
	authority  types.Pubkey
	opts       Options

	mu         sync.Mutex
	state      State
	checkpoint Checkpoint
	stats      Stats
}

func NewLoop(f feed.HeightFeed, s AccountScanner, d UpdateDispatcher, authority types.Pubkey, opts Options) *Loop {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	return &Loop{
		feed:       f,
		scanner:    s,
		dispatcher: d,
		authority:  authority,
		opts:       opts,
		state:      StateIdle,
	}
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) Checkpoint() Checkpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.checkpoint
}

func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

func (l *Loop) setState(state State) {
	l.mu.Lock()
	l.state = state
	l.mu.Unlock()
}

func (l *Loop) update(fn func()) {
	l.mu.Lock()
	fn()
	l.mu.Unlock()
}

// Run 阻塞运行直到 ctx 结束。停止信号只在两次迭代之间或退避等待中生效，不会打断进行中的批次。
func (l *Loop) Run(ctx context.Context) error {
	cp := l.restore(ctx)
	connected := false

	for {
		if ctx.Err() != nil {
			break
		}

		if !connected {
			if err := l.feed.Connect(ctx); err != nil {
				if !l.disconnect(ctx, err) {
					break
				}
				continue
			}
			connected = true
			l.setState(StateIdle)
		}

		slot, err := l.feed.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			connected = false
			if !l.disconnect(ctx, err) {
				break
			}
			continue
		}

		cp, err = l.step(ctx, cp, slot)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			connected = false
			if !l.disconnect(ctx, err) {
				break
			}
		}
	}

	if connected {
		_ = l.feed.Close()
	}
	logger.Infof("[SyncLoop] stopped, checkpoint=%+v", cp)
	return nil
}

// step 处理一次高度观测，返回新的检查点。
// 返回 error 表示数据源异常（扫描查询失败），由 Run 按断连处理；分发失败不视为数据源异常。
func (l *Loop) step(ctx context.Context, cp Checkpoint, slot uint64) (Checkpoint, error) {
	if !cp.Valid {
		cp = Checkpoint{Slot: slot, Valid: true}
		l.update(func() { l.checkpoint = cp })
		logger.Infof("[SyncLoop] first slot observed: %d", slot)
		l.saveCheckpoint(ctx, cp)
		return cp, nil
	}
	if slot == cp.Slot {
		return cp, nil
	}

	l.setState(StateScanning)
	defer l.setState(StateIdle)

	accounts, err := l.scanner.Scan(ctx, l.authority)
	if err != nil {
		return cp, fmt.Errorf("scan: %w", err)
	}
	logger.Infof("[SyncLoop] latest slot: %d, pending: %d, total accounts: %d", slot, int64(slot)-int64(cp.Slot), len(accounts))

	report, err := l.dispatcher.Dispatch(ctx, accounts)
	if report != nil {
		l.afterDispatch(ctx, slot, report)
	}
	if err != nil {
		// 检查点不前进，下一次观测到不同高度时整批重试
		l.update(func() { l.stats.FailedBatch++ })
		logger.Warnf("[SyncLoop] batch at slot %d failed, checkpoint kept at %d: %v", slot, cp.Slot, err)
		return cp, nil
	}

	cp = Checkpoint{Slot: slot, Valid: true}
	l.update(func() {
		l.checkpoint = cp
		l.stats.Cycles++
	})
	l.saveCheckpoint(ctx, cp)
	return cp, nil
}

func (l *Loop) afterDispatch(ctx context.Context, slot uint64, report *dispatcher.BatchReport) {
	committed := report.Committed()
	if len(committed) == 0 {
		return
	}
	// 持久化与发布不影响主流程，失败只记录日志
	ctx = context.WithoutCancel(ctx)
	if l.opts.Store != nil {
		if err := l.opts.Store.RecordUpdates(ctx, slot, committed); err != nil {
			logger.Warnf("[SyncLoop] record updates failed: %v", err)
		}
	}
	if l.opts.Publisher != nil {
		if err := l.opts.Publisher.PublishUpdates(ctx, slot, l.authority, committed); err != nil {
			logger.Warnf("[SyncLoop] publish updates failed: %v", err)
		}
	}
}

func (l *Loop) saveCheckpoint(ctx context.Context, cp Checkpoint) {
	if l.opts.Store == nil {
		return
	}
	if err := l.opts.Store.SaveCheckpoint(context.WithoutCancel(ctx), l.authority, cp); err != nil {
		logger.Warnf("[SyncLoop] save checkpoint failed: %v", err)
	}
}

func (l *Loop) restore(ctx context.Context) Checkpoint {
	if !l.opts.ResumeFromCheckpoint || l.opts.Store == nil {
		return Checkpoint{}
	}
	cp, err := l.opts.Store.LoadCheckpoint(ctx, l.authority)
	if err != nil {
		logger.Warnf("[SyncLoop] load checkpoint failed, starting fresh: %v", err)
		return Checkpoint{}
	}
	if cp.Valid {
		logger.Infof("[SyncLoop] resumed from checkpoint %d", cp.Slot)
		l.update(func() { l.checkpoint = cp })
	}
	return cp
}

// disconnect 关闭数据源并等待退避时间，ctx 结束时返回 false
func (l *Loop) disconnect(ctx context.Context, cause error) bool {
	l.setState(StateDisconnected)
	_ = l.feed.Close()
	if errors.Is(cause, feed.ErrFeedDisconnected) {
		logger.Warnf("[SyncLoop] disconnected: %v, retry in %v", cause, l.opts.Backoff)
	} else {
		logger.Warnf("[SyncLoop] ledger error: %v, reconnect in %v", cause, l.opts.Backoff)
	}

	timer := time.NewTimer(l.opts.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	l.update(func() { l.stats.Reconnects++ })
	return true
}
