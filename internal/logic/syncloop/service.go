package syncloop

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/zeromicro/go-zero/core/logx"
)

// Service 将 Loop 包装为 go-zero service.Service
type Service struct {
	loop    *Loop
	ctx     context.Context
	cancel  func(err error)
	done    chan struct{}
	started atomic.Bool
	logx.Logger
}

func NewService(loop *Loop) *Service {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Service{
		loop:   loop,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		Logger: logx.WithContext(ctx).WithFields(logx.Field("service", "sync_loop")),
	}
}

func (s *Service) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	defer close(s.done)
	s.Infof("sync loop started, authority=%s", s.loop.authority)
	if err := s.loop.Run(s.ctx); err != nil {
		s.Errorf("sync loop exited: %v", err)
	}
}

// Stop 等待进行中的批次结束后返回
func (s *Service) Stop() {
	s.cancel(errors.New("service stop"))
	if !s.started.Load() {
		return
	}
	<-s.done
	stats := s.loop.Stats()
	s.Infof("sync loop stopped, cause=%v, cycles=%d, failed=%d, reconnects=%d",
		context.Cause(s.ctx), stats.Cycles, stats.FailedBatch, stats.Reconnects)
}
