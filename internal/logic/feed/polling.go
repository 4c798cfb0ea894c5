package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"randomness-oracle-sol/internal/pkg/logger"
)

const defaultPollInterval = 400 * time.Millisecond

type SlotReader interface {
	GetSlot(ctx context.Context) (uint64, error)
}

// DialFunc 每次 Connect 重新创建客户端
type DialFunc func(ctx context.Context) (SlotReader, error)

// PollingFeed 周期性调用 getSlot
type PollingFeed struct {
	dial     DialFunc
	interval time.Duration

	mu     sync.Mutex
	reader SlotReader
	polled bool
}

func NewPollingFeed(dial DialFunc, interval time.Duration) *PollingFeed {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &PollingFeed{dial: dial, interval: interval}
}

func (f *PollingFeed) Connect(ctx context.Context) error {
	reader, err := f.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %v", ErrFeedDisconnected, err)
	}

	f.mu.Lock()
	f.reader = reader
	f.polled = false
	f.mu.Unlock()
	logger.Infof("[PollingFeed] connected, interval=%v", f.interval)
	return nil
}

// Next 首次调用立即查询，之后每次间隔 interval
func (f *PollingFeed) Next(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	reader, polled := f.reader, f.polled
	f.polled = true
	f.mu.Unlock()

	if reader == nil {
		return 0, fmt.Errorf("%w: not connected", ErrFeedDisconnected)
	}
	if polled {
		timer := time.NewTimer(f.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	slot, err := reader.GetSlot(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: getSlot: %v", ErrFeedDisconnected, err)
	}
	return slot, nil
}

func (f *PollingFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reader = nil
	return nil
}
