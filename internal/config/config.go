package config

import (
	"fmt"
	"time"

	"randomness-oracle-sol/internal/mq"
	"randomness-oracle-sol/internal/pkg/logger"
)

type LogConfig struct {
	Format   string `json:"format,default=console"` // 日志格式，支持 "console" 或 "json"
	LogDir   string `json:"log_dir,optional"`       // 日志目录（可为相对路径或绝对路径），为空只输出 stdout
	Level    string `json:"level,default=info"`     // 日志级别：debug / info / warn / error
	Compress bool   `json:"compress,optional"`      // 是否压缩旧日志文件
}

func (c *LogConfig) ToLogOption() logger.LogOption {
	return logger.LogOption{
		Format:   c.Format,
		LogDir:   c.LogDir,
		Level:    c.Level,
		Compress: c.Compress,
		FileName: "broadcaster.log",
	}
}

// KafkaProducerConfig Kafka 生产者配置，Brokers 为空时不发布更新事件
type KafkaProducerConfig struct {
	Brokers       string `json:"brokers,optional"`             // Kafka broker 地址，多个用英文逗号分隔
	BatchSize     int    `json:"batch_size,optional"`          // 批处理大小（单位字节）
	LingerMs      int    `json:"linger_ms,default=5"`          // 批处理最大延迟（毫秒）
	Topic         string `json:"topic,default=oracle-updates"` // 更新事件 topic
	Partitions    int    `json:"partitions,default=4"`         // topic 分区数
	SendTimeoutMs int    `json:"send_timeout_ms,default=5000"` // 单条消息发送并等待 ack 的超时
}

func (c *KafkaProducerConfig) Enabled() bool {
	return c.Brokers != ""
}

func (c *KafkaProducerConfig) ToKafkaOption() mq.KafkaProducerOption {
	return mq.KafkaProducerOption{
		Brokers:   c.Brokers,
		BatchSize: c.BatchSize,
		LingerMs:  c.LingerMs,
		Topics:    []mq.TopicSpec{{Topic: c.Topic, Partitions: c.Partitions}},
	}
}

// RedisConfig Addr 为空时不持久化进度
type RedisConfig struct {
	Addr                 string `json:"addr,optional"`
	Password             string `json:"password,optional"`
	DB                   int    `json:"db,optional"`
	KeyPrefix            string `json:"key_prefix,default=randomness"`
	FlushIntervalMs      int    `json:"flush_interval_ms,default=1000"` // 更新记录批量写入间隔
	ResumeFromCheckpoint bool   `json:"resume_from_checkpoint,optional"`
}

func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

const (
	FeedPoll   = "poll"
	FeedGeyser = "geyser"
)

// GrpcConfig Yellowstone gRPC 连接配置，仅 feed=geyser 时使用
type GrpcConfig struct {
	Endpoint  string `json:"endpoint,optional"` // gRPC 服务端地址
	XToken    string `json:"x_token,optional"`  // x-token 认证
	Plaintext bool   `json:"plaintext,optional"`

	StreamPingIntervalSec    int `json:"stream_ping_interval_sec,default=10"`    // 应用层 ping 心跳间隔（秒）
	KeepalivePingIntervalSec int `json:"keepalive_ping_interval_sec,default=30"` // 底层 keepalive 间隔（秒）
	KeepalivePingTimeoutSec  int `json:"keepalive_ping_timeout_sec,default=10"`  // 底层 keepalive 超时（秒）

	ConnectTimeoutSec  int `json:"connect_timeout_sec,default=10"`   // 连接建立超时（秒）
	SendTimeoutSec     int `json:"send_timeout_sec,default=5"`       // 发送超时（秒）
	SlotRecvTimeoutSec int `json:"slot_recv_timeout_sec,default=30"` // 超时未收到 slot 则重连（秒）
}

// BroadcasterConfig broadcaster 主配置
type BroadcasterConfig struct {
	LogConf LogConfig `json:"logger"` // 日志配置

	RpcEndpoint string `json:"rpc_endpoint"` // JSON-RPC 地址
	KeypairPath string `json:"keypair_path"` // authority 密钥文件（solana-keygen 格式）
	ProgramID   string `json:"program_id,default=FfYvEMJip3kLpSJKfyLRXhp8f8yuSSaLxtjzaFecLT9s"`
	Feed        string `json:"feed,default=poll,options=poll|geyser"`

	PollIntervalMs   int  `json:"poll_interval_ms,default=400"`
	BackoffSec       int  `json:"backoff_sec,default=5"`         // 断连后重连前的等待
	SubmitTimeoutSec int  `json:"submit_timeout_sec,default=30"` // 单笔更新交易超时
	WaitConfirm      bool `json:"wait_confirm,optional"`         // 是否等待交易确认

	Grpc              GrpcConfig          `json:"grpc,optional"`
	Redis             RedisConfig         `json:"redis,optional"`
	KafkaProducerConf KafkaProducerConfig `json:"kafka_producer,optional"`
}

func (c *BroadcasterConfig) Validate() error {
	if c.RpcEndpoint == "" {
		return fmt.Errorf("rpc_endpoint is required")
	}
	if c.KeypairPath == "" {
		return fmt.Errorf("keypair_path is required")
	}
	if c.Feed == FeedGeyser && c.Grpc.Endpoint == "" {
		return fmt.Errorf("grpc.endpoint is required when feed=%s", FeedGeyser)
	}
	return nil
}

func (c *BroadcasterConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffSec) * time.Second
}

func (c *BroadcasterConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *BroadcasterConfig) SubmitTimeout() time.Duration {
	return time.Duration(c.SubmitTimeoutSec) * time.Second
}
