package mq

import (
	"context"
	"fmt"
	"time"

	"randomness-oracle-sol/internal/logic/dispatcher"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/pkg/utils"
)

const defaultSendTimeout = 5 * time.Second

// UpdatePublisher 将成功的更新按账户分区发布到 Kafka
type UpdatePublisher struct {
	producer    Producer
	topic       string
	partitions  int
	sendTimeout time.Duration
}

func NewUpdatePublisher(producer Producer, topic string, partitions int, sendTimeout time.Duration) *UpdatePublisher {
	if partitions <= 0 {
		partitions = 1
	}
	if sendTimeout <= 0 {
		sendTimeout = defaultSendTimeout
	}
	return &UpdatePublisher{
		producer:    producer,
		topic:       topic,
		partitions:  partitions,
		sendTimeout: sendTimeout,
	}
}

func (p *UpdatePublisher) PublishUpdates(ctx context.Context, slot uint64, authority types.Pubkey, results []dispatcher.Result) error {
	jobs, err := BuildUpdateKafkaJobs(slot, authority, p.topic, p.partitions, results)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	ok, failed := SendKafkaJobs(ctx, p.producer, jobs, p.sendTimeout)
	if len(failed) > 0 {
		return fmt.Errorf("kafka send failed: %d of %d messages, first error: %w", len(failed), len(jobs), failed[0].Err)
	}
	logger.Debugf("[mq] published slot %d: %d messages", slot, len(ok))
	return nil
}

// BuildUpdateKafkaJobs 按账户地址分区，每个分区一条消息
func BuildUpdateKafkaJobs(
	slot uint64,
	authority types.Pubkey,
	topic string,
	partitions int,
	results []dispatcher.Result,
) ([]*KafkaJob, error) {
	if partitions <= 0 {
		partitions = 1
	}

	capacity := utils.CalcCapPerPartition(len(results), partitions, 4)
	buckets := make([][]OracleUpdateEvent, partitions)
	for _, res := range results {
		if !res.OK() {
			continue
		}
		pid := utils.PartitionHashBytes(res.Pubkey[:], uint32(partitions))
		if buckets[pid] == nil {
			buckets[pid] = make([]OracleUpdateEvent, 0, capacity)
		}
		buckets[pid] = append(buckets[pid], OracleUpdateEvent{
			Account:   res.Pubkey,
			Value:     res.Value,
			Signature: res.Signature,
		})
	}

	jobs := make([]*KafkaJob, 0, partitions)
	for pid, events := range buckets {
		if len(events) == 0 {
			continue
		}
		value, err := EncodeEvent(EventTypeOracleUpdate, OracleUpdateEvents{
			Version:   eventVersion,
			Slot:      slot,
			Authority: authority,
			Events:    events,
		})
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, &KafkaJob{
			Topic:     topic,
			Partition: int32(pid),
			Key:       authority[:],
			Value:     value,
		})
	}
	return jobs, nil
}
