package feed

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"randomness-oracle-sol/internal/pkg/logger"

	pb "github.com/rpcpool/yellowstone-grpc/examples/golang/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/metadata"
)

type GeyserOptions struct {
	Endpoint  string
	XToken    string
	Plaintext bool // 不使用 TLS（本地节点）

	ConnectTimeout        time.Duration
	SendTimeout           time.Duration
	StreamPingInterval    time.Duration // 应用层 ping 间隔
	KeepalivePingInterval time.Duration
	KeepalivePingTimeout  time.Duration
	SlotRecvTimeout       time.Duration // 超过该时长未收到 slot 视为断连

	DialOptions []grpc.DialOption // 追加的拨号参数
}

func (o *GeyserOptions) withDefaults() GeyserOptions {
	out := *o
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = 10 * time.Second
	}
	if out.SendTimeout <= 0 {
		out.SendTimeout = 5 * time.Second
	}
	if out.StreamPingInterval <= 0 {
		out.StreamPingInterval = 10 * time.Second
	}
	if out.KeepalivePingInterval <= 0 {
		out.KeepalivePingInterval = 30 * time.Second
	}
	if out.KeepalivePingTimeout <= 0 {
		out.KeepalivePingTimeout = 10 * time.Second
	}
	if out.SlotRecvTimeout <= 0 {
		out.SlotRecvTimeout = 30 * time.Second
	}
	return out
}

type slotUpdate struct {
	slot uint64
	err  error
}

// GeyserFeed 通过 Yellowstone gRPC 订阅 slot 推送
type GeyserFeed struct {
	opts GeyserOptions

	mu         sync.Mutex
	conn       *grpc.ClientConn
	stream     pb.Geyser_SubscribeClient
	connCtx    context.Context
	connCancel context.CancelFunc
	updates    chan slotUpdate
	wg         sync.WaitGroup
}

func NewGeyserFeed(opts GeyserOptions) *GeyserFeed {
	return &GeyserFeed{opts: opts.withDefaults()}
}

func (f *GeyserFeed) dialOptions() []grpc.DialOption {
	creds := credentials.NewTLS(&tls.Config{})
	if f.opts.Plaintext {
		creds = insecure.NewCredentials()
	}
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(creds),
		grpc.WithBlock(),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                f.opts.KeepalivePingInterval,
			Timeout:             f.opts.KeepalivePingTimeout,
			PermitWithoutStream: true,
		}),
	}
	return append(dialOpts, f.opts.DialOptions...)
}

func buildSubscribeRequest() *pb.SubscribeRequest {
	slots := map[string]*pb.SubscribeRequestFilterSlots{
		"slots": {FilterByCommitment: boolPtr(true)},
	}
	commitment := pb.CommitmentLevel_CONFIRMED
	return &pb.SubscribeRequest{
		Slots:      slots,
		Commitment: &commitment,
	}
}

// Connect 建立连接并发送订阅请求，只尝试一次；重试由调用方负责
func (f *GeyserFeed) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeLocked()

	dialCtx, cancel := context.WithTimeout(ctx, f.opts.ConnectTimeout)
	defer cancel()
	conn, err := grpc.DialContext(dialCtx, f.opts.Endpoint, f.dialOptions()...)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrFeedDisconnected, f.opts.Endpoint, err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	metaCtx := metadata.NewOutgoingContext(connCtx, metadata.New(map[string]string{"x-token": f.opts.XToken}))
	stream, err := pb.NewGeyserClient(conn).Subscribe(metaCtx)
	if err != nil {
		connCancel()
		_ = conn.Close()
		return fmt.Errorf("%w: subscribe: %v", ErrFeedDisconnected, err)
	}
	if err := sendWithTimeout(connCtx, stream.Send, buildSubscribeRequest(), f.opts.SendTimeout); err != nil {
		connCancel()
		_ = conn.Close()
		return fmt.Errorf("%w: send subscribe request: %v", ErrFeedDisconnected, err)
	}

	f.conn = conn
	f.stream = stream
	f.connCtx = connCtx
	f.connCancel = connCancel
	f.updates = make(chan slotUpdate, 64)

	f.wg.Add(2)
	go f.pingLoop(connCtx, stream.Send)
	go f.recvLoop(connCtx, stream, f.updates)

	logger.Infof("[GeyserFeed] connected to %s", f.opts.Endpoint)
	return nil
}

func (f *GeyserFeed) Next(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	updates := f.updates
	f.mu.Unlock()
	if updates == nil {
		return 0, fmt.Errorf("%w: not connected", ErrFeedDisconnected)
	}

	timer := time.NewTimer(f.opts.SlotRecvTimeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, fmt.Errorf("%w: no slot update within %v", ErrFeedDisconnected, f.opts.SlotRecvTimeout)
	case u, ok := <-updates:
		if !ok {
			return 0, fmt.Errorf("%w: stream closed", ErrFeedDisconnected)
		}
		if u.err != nil {
			return 0, u.err
		}
		return u.slot, nil
	}
}

func (f *GeyserFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closeLocked()
}

func (f *GeyserFeed) closeLocked() error {
	if f.connCancel != nil {
		f.connCancel()
		f.connCancel = nil
	}
	var err error
	if f.conn != nil {
		err = f.conn.Close()
		f.conn = nil
	}
	// 等待 ping / recv 协程退出，之后 updates 不再有写入
	f.wg.Wait()
	f.stream = nil
	f.updates = nil
	return err
}

func (f *GeyserFeed) recvLoop(ctx context.Context, stream pb.Geyser_SubscribeClient, out chan<- slotUpdate) {
	defer f.wg.Done()
	defer close(out)

	for {
		update, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				err = errors.New("stream closed by server (EOF)")
			}
			select {
			case out <- slotUpdate{err: fmt.Errorf("%w: %v", ErrFeedDisconnected, err)}:
			case <-ctx.Done():
			}
			return
		}

		switch u := update.GetUpdateOneof().(type) {
		case *pb.SubscribeUpdate_Slot:
			select {
			case out <- slotUpdate{slot: u.Slot.GetSlot()}:
			case <-ctx.Done():
				return
			}
		default:
			// ping/pong 等心跳消息
		}
	}
}

// pingLoop 上一次 ping 超时后 Send 可能仍阻塞，stream 不允许并发 Send，在其返回前跳过后续 ping
func (f *GeyserFeed) pingLoop(ctx context.Context, send func(*pb.SubscribeRequest) error) {
	defer f.wg.Done()

	ticker := time.NewTicker(f.opts.StreamPingInterval)
	defer ticker.Stop()

	var pending <-chan error
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pending != nil {
				select {
				case <-pending:
					pending = nil
				default:
					logger.Warnf("[GeyserFeed] previous ping still in flight, skipped")
					continue
				}
			}

			req := &pb.SubscribeRequest{Ping: &pb.SubscribeRequestPing{Id: 1}}
			done := sendAsync(send, req)
			if err := awaitSend(ctx, done, f.opts.SendTimeout); err != nil {
				if errors.Is(err, context.DeadlineExceeded) {
					pending = done
				}
				// 只记录，断连由 recvLoop 发现
				logger.Warnf("[GeyserFeed] ping failed: %v", err)
			}
		}
	}
}

// 带超时的 Send
func sendWithTimeout[T any](ctx context.Context, sendFunc func(T) error, req T, timeout time.Duration) error {
	return awaitSend(ctx, sendAsync(sendFunc, req), timeout)
}

func sendAsync[T any](sendFunc func(T) error, req T) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- sendFunc(req)
	}()
	return done
}

func awaitSend(ctx context.Context, done <-chan error, timeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-timeoutCtx.Done():
		return timeoutCtx.Err()
	case err := <-done:
		return err
	}
}

func boolPtr(b bool) *bool {
	return &b
}
