package svc

import (
	"context"
	"fmt"
	"time"

	"randomness-oracle-sol/internal/config"
	"randomness-oracle-sol/internal/ledger"
	"randomness-oracle-sol/internal/logic/dispatcher"
	"randomness-oracle-sol/internal/logic/feed"
	"randomness-oracle-sol/internal/logic/progress"
	"randomness-oracle-sol/internal/logic/scanner"
	"randomness-oracle-sol/internal/logic/syncloop"
	"randomness-oracle-sol/internal/mq"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/redis/go-redis/v9"
)

// ServiceContext broadcaster 运行所需的全部资源
type ServiceContext struct {
	Config    config.BroadcasterConfig
	Client    ledger.Client
	Authority soltypes.Account
	ProgramID types.Pubkey

	Producer *kafka.Producer           // 未配置 Kafka 时为 nil
	Redis    *redis.Client             // 未配置 Redis 时为 nil
	Progress *progress.ProgressManager // 未配置 Redis 时为 nil
}

func NewServiceContext(c config.BroadcasterConfig) (*ServiceContext, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	programID, err := types.TryPubkeyFromBase58(c.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program_id: %w", err)
	}
	authority, err := config.LoadKeypair(c.KeypairPath)
	if err != nil {
		return nil, err
	}

	sc := &ServiceContext{
		Config:    c,
		Client:    ledger.NewRpcClient(c.RpcEndpoint),
		Authority: authority,
		ProgramID: programID,
	}

	// 1. Redis：检查点与更新记录
	if c.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     c.Redis.Addr,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis ping %s: %w", c.Redis.Addr, err)
		}
		sc.Redis = rdb
		sc.Progress = progress.NewProgressManager(progress.NewRedisProgressStore(rdb, c.Redis.KeyPrefix))
	}

	// 2. Kafka：更新事件
	if c.KafkaProducerConf.Enabled() {
		producer, err := mq.NewKafkaProducer(c.KafkaProducerConf.ToKafkaOption())
		if err != nil {
			logger.Errorf("[Svc] Kafka producer 初始化失败: %v", err)
			sc.Close()
			return nil, err
		}
		sc.Producer = producer
	}

	logger.Infof("[Svc] 服务上下文初始化完成, authority=%s, program=%s, feed=%s",
		types.PubkeyFromCommon(authority.PublicKey), programID, c.Feed)
	return sc, nil
}

func (sc *ServiceContext) NewFeed() feed.HeightFeed {
	if sc.Config.Feed == config.FeedGeyser {
		g := sc.Config.Grpc
		return feed.NewGeyserFeed(feed.GeyserOptions{
			Endpoint:              g.Endpoint,
			XToken:                g.XToken,
			Plaintext:             g.Plaintext,
			ConnectTimeout:        time.Duration(g.ConnectTimeoutSec) * time.Second,
			SendTimeout:           time.Duration(g.SendTimeoutSec) * time.Second,
			StreamPingInterval:    time.Duration(g.StreamPingIntervalSec) * time.Second,
			KeepalivePingInterval: time.Duration(g.KeepalivePingIntervalSec) * time.Second,
			KeepalivePingTimeout:  time.Duration(g.KeepalivePingTimeoutSec) * time.Second,
			SlotRecvTimeout:       time.Duration(g.SlotRecvTimeoutSec) * time.Second,
		})
	}

	endpoint := sc.Config.RpcEndpoint
	return feed.NewPollingFeed(func(context.Context) (feed.SlotReader, error) {
		// 每次重连重建客户端
		return ledger.NewRpcClient(endpoint), nil
	}, sc.Config.PollInterval())
}

func (sc *ServiceContext) NewLoop() *syncloop.Loop {
	opts := syncloop.Options{
		Backoff:              sc.Config.Backoff(),
		ResumeFromCheckpoint: sc.Config.Redis.ResumeFromCheckpoint,
	}
	if sc.Progress != nil {
		opts.Store = sc.Progress
	}
	if sc.Producer != nil {
		k := sc.Config.KafkaProducerConf
		opts.Publisher = mq.NewUpdatePublisher(sc.Producer, k.Topic, k.Partitions,
			time.Duration(k.SendTimeoutMs)*time.Millisecond)
	}

	return syncloop.NewLoop(
		sc.NewFeed(),
		scanner.NewScanner(sc.Client, sc.ProgramID),
		dispatcher.NewDispatcher(sc.Client, sc.ProgramID, sc.Authority, dispatcher.Options{
			SubmitTimeout: sc.Config.SubmitTimeout(),
			WaitConfirm:   sc.Config.WaitConfirm,
		}),
		types.PubkeyFromCommon(sc.Authority.PublicKey),
		opts,
	)
}

// Close 关闭服务上下文中的资源
func (sc *ServiceContext) Close() {
	if sc.Producer != nil {
		sc.Producer.Flush(5000)
		sc.Producer.Close()
	}
	if sc.Redis != nil {
		_ = sc.Redis.Close()
	}
}
