package syncloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"randomness-oracle-sol/internal/logic/dispatcher"
	"randomness-oracle-sol/internal/logic/feed"
	"randomness-oracle-sol/internal/logic/scanner"
	"randomness-oracle-sol/internal/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var authority = types.Pubkey{0xaa}

// feedEvent 脚本化数据源的一步：slot 或错误
type feedEvent struct {
	slot uint64
	err  error
}

type scriptedFeed struct {
	mu          sync.Mutex
	script      []feedEvent
	connectErrs []error
	connects    int
	closes      int
	exhausted   chan struct{}
	once        sync.Once
}

func newScriptedFeed(events ...feedEvent) *scriptedFeed {
	return &scriptedFeed{script: events, exhausted: make(chan struct{})}
}

func (f *scriptedFeed) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *scriptedFeed) Next(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	if len(f.script) > 0 {
		ev := f.script[0]
		f.script = f.script[1:]
		f.mu.Unlock()
		return ev.slot, ev.err
	}
	f.mu.Unlock()

	f.once.Do(func() { close(f.exhausted) })
	<-ctx.Done()
	return 0, ctx.Err()
}

func (f *scriptedFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

type fakeScanner struct {
	mu       sync.Mutex
	calls    int
	accounts []scanner.OracleAccount
	errs     []error
}

func (s *fakeScanner) Scan(context.Context, types.Pubkey) ([]scanner.OracleAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return s.accounts, nil
}

type fakeDispatcher struct {
	mu      sync.Mutex
	batches int
	fail    []bool
}

func (d *fakeDispatcher) Dispatch(_ context.Context, accounts []scanner.OracleAccount) (*dispatcher.BatchReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batches++
	fail := false
	if len(d.fail) > 0 {
		fail = d.fail[0]
		d.fail = d.fail[1:]
	}

	report := &dispatcher.BatchReport{}
	for i, acc := range accounts {
		res := dispatcher.Result{Pubkey: acc.Pubkey, Signature: "sig"}
		if fail && i == 0 {
			res.Err = dispatcher.ErrSubmissionFailed
			res.Signature = ""
			report.Failed++
		} else {
			report.Succeeded++
		}
		report.Results = append(report.Results, res)
	}
	if fail {
		return report, dispatcher.ErrBatchFailed
	}
	return report, nil
}

type memStore struct {
	mu       sync.Mutex
	cp       Checkpoint
	saves    int
	recorded map[uint64]int
}

func (s *memStore) LoadCheckpoint(context.Context, types.Pubkey) (Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cp, nil
}

func (s *memStore) SaveCheckpoint(_ context.Context, _ types.Pubkey, cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cp = cp
	s.saves++
	return nil
}

func (s *memStore) RecordUpdates(_ context.Context, slot uint64, results []dispatcher.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recorded == nil {
		s.recorded = make(map[uint64]int)
	}
	s.recorded[slot] += len(results)
	return nil
}

func twoAccounts() []scanner.OracleAccount {
	return []scanner.OracleAccount{{Pubkey: types.Pubkey{1}}, {Pubkey: types.Pubkey{2}}}
}

// runUntilExhausted 运行 Loop 直到脚本耗尽，然后停止
func runUntilExhausted(t *testing.T, l *Loop, f *scriptedFeed) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	select {
	case <-f.exhausted:
	case <-time.After(5 * time.Second):
		t.Fatal("feed script not consumed in time")
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestStep_FirstObservationOnlyRecords(t *testing.T) {
	s := &fakeScanner{accounts: twoAccounts()}
	d := &fakeDispatcher{}
	l := NewLoop(newScriptedFeed(), s, d, authority, Options{})

	cp, err := l.step(context.Background(), Checkpoint{}, 100)
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{Slot: 100, Valid: true}, cp)
	assert.Equal(t, 0, s.calls)
	assert.Equal(t, 0, d.batches)
}

func TestStep_DuplicateSlotIgnored(t *testing.T) {
	s := &fakeScanner{accounts: twoAccounts()}
	d := &fakeDispatcher{}
	l := NewLoop(newScriptedFeed(), s, d, authority, Options{})

	cp := Checkpoint{Slot: 100, Valid: true}
	cp, err := l.step(context.Background(), cp, 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), cp.Slot)
	assert.Equal(t, 0, s.calls)
}

func TestStep_AdvanceOnSuccess(t *testing.T) {
	s := &fakeScanner{accounts: twoAccounts()}
	d := &fakeDispatcher{}
	store := &memStore{}
	l := NewLoop(newScriptedFeed(), s, d, authority, Options{Store: store})

	cp, err := l.step(context.Background(), Checkpoint{Slot: 100, Valid: true}, 101)
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{Slot: 101, Valid: true}, cp)
	assert.Equal(t, 1, d.batches)
	assert.Equal(t, cp, store.cp)
	assert.Equal(t, 2, store.recorded[101])
	assert.Equal(t, StateIdle, l.State())
}

func TestStep_BatchFailureKeepsCheckpoint(t *testing.T) {
	s := &fakeScanner{accounts: twoAccounts()}
	d := &fakeDispatcher{fail: []bool{true}}
	store := &memStore{}
	l := NewLoop(newScriptedFeed(), s, d, authority, Options{Store: store})

	cp, err := l.step(context.Background(), Checkpoint{Slot: 100, Valid: true}, 101)
	require.NoError(t, err)
	assert.Equal(t, Checkpoint{Slot: 100, Valid: true}, cp)
	assert.Equal(t, 1, l.Stats().FailedBatch)
	// 成功的那部分仍然记录
	assert.Equal(t, 1, store.recorded[101])
	assert.Equal(t, 0, store.saves)

	// 下一次观测整批重试
	cp, err = l.step(context.Background(), cp, 102)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), cp.Slot)
	assert.Equal(t, 2, d.batches)
}

func TestStep_ScanErrorIsFeedError(t *testing.T) {
	boom := errors.New("rpc unavailable")
	s := &fakeScanner{errs: []error{boom}}
	d := &fakeDispatcher{}
	l := NewLoop(newScriptedFeed(), s, d, authority, Options{})

	cp, err := l.step(context.Background(), Checkpoint{Slot: 100, Valid: true}, 101)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint64(100), cp.Slot)
	assert.Equal(t, 0, d.batches)
}

func TestRun_DuplicateObservations(t *testing.T) {
	f := newScriptedFeed(
		feedEvent{slot: 10}, feedEvent{slot: 10}, feedEvent{slot: 11},
		feedEvent{slot: 11}, feedEvent{slot: 11}, feedEvent{slot: 12},
	)
	s := &fakeScanner{accounts: twoAccounts()}
	d := &fakeDispatcher{}
	l := NewLoop(f, s, d, authority, Options{Backoff: time.Millisecond})

	runUntilExhausted(t, l, f)
	assert.Equal(t, 2, d.batches)
	assert.Equal(t, Checkpoint{Slot: 12, Valid: true}, l.Checkpoint())
	assert.Equal(t, 2, l.Stats().Cycles)
}

func TestRun_DisconnectBackoffReconnect(t *testing.T) {
	f := newScriptedFeed(
		feedEvent{slot: 10},
		feedEvent{slot: 11},
		feedEvent{err: feed.ErrFeedDisconnected},
		// 重连后同一高度不重复处理
		feedEvent{slot: 11},
		feedEvent{slot: 12},
	)
	f.connectErrs = []error{nil, errors.New("dial refused")}
	s := &fakeScanner{accounts: twoAccounts()}
	d := &fakeDispatcher{}
	l := NewLoop(f, s, d, authority, Options{Backoff: time.Millisecond})

	runUntilExhausted(t, l, f)
	assert.Equal(t, 2, d.batches)
	assert.Equal(t, 3, f.connects)
	assert.GreaterOrEqual(t, f.closes, 2)
	assert.Equal(t, 2, l.Stats().Reconnects)
	assert.Equal(t, Checkpoint{Slot: 12, Valid: true}, l.Checkpoint())
}

func TestRun_ScanFailureReconnects(t *testing.T) {
	f := newScriptedFeed(feedEvent{slot: 10}, feedEvent{slot: 11}, feedEvent{slot: 11})
	s := &fakeScanner{accounts: twoAccounts(), errs: []error{errors.New("getProgramAccounts timeout")}}
	d := &fakeDispatcher{}
	l := NewLoop(f, s, d, authority, Options{Backoff: time.Millisecond})

	runUntilExhausted(t, l, f)
	assert.Equal(t, 2, f.connects)
	assert.Equal(t, 1, d.batches)
	assert.Equal(t, uint64(11), l.Checkpoint().Slot)
}

func TestRun_StopDuringBackoff(t *testing.T) {
	f := newScriptedFeed()
	f.connectErrs = []error{errors.New("dial refused")}
	l := NewLoop(f, &fakeScanner{}, &fakeDispatcher{}, authority, Options{Backoff: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool { return l.State() == StateDisconnected }, time.Second, time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop during backoff")
	}
}

func TestRun_ResumeFromCheckpoint(t *testing.T) {
	store := &memStore{cp: Checkpoint{Slot: 50, Valid: true}}
	f := newScriptedFeed(feedEvent{slot: 50}, feedEvent{slot: 51})
	d := &fakeDispatcher{}
	l := NewLoop(f, &fakeScanner{accounts: twoAccounts()}, d, authority,
		Options{Backoff: time.Millisecond, ResumeFromCheckpoint: true, Store: store})

	runUntilExhausted(t, l, f)
	assert.Equal(t, 1, d.batches)
	assert.Equal(t, Checkpoint{Slot: 51, Valid: true}, store.cp)
}

func TestService_StartStop(t *testing.T) {
	f := newScriptedFeed(feedEvent{slot: 1})
	svc := NewService(NewLoop(f, &fakeScanner{}, &fakeDispatcher{}, authority, Options{Backoff: time.Millisecond}))

	go svc.Start()
	<-f.exhausted
	svc.Stop()
	assert.Equal(t, Checkpoint{Slot: 1, Valid: true}, svc.loop.Checkpoint())
}
