package feed

import (
	"context"
	"errors"
)

var ErrFeedDisconnected = errors.New("height feed disconnected")

// HeightFeed 账本高度（slot）来源。
// 生命周期: Connect → Next* → Close；出错后由调用方 Close 再重新 Connect。
// Next 可能重复返回同一个 slot，去重由调用方负责。
type HeightFeed interface {
	Connect(ctx context.Context) error
	Next(ctx context.Context) (uint64, error)
	Close() error
}
