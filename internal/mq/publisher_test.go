package mq

import (
	"context"
	"testing"
	"time"

	"randomness-oracle-sol/internal/logic/dispatcher"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() []dispatcher.Result {
	results := make([]dispatcher.Result, 0, 8)
	for i := 0; i < 8; i++ {
		key := types.Pubkey{byte(i)}
		key[31] = byte(i * 2)
		results = append(results, dispatcher.Result{Pubkey: key, Value: [32]byte{byte(i)}, Signature: "sig"})
	}
	results[3].Err = dispatcher.ErrSubmissionFailed
	return results
}

func TestBuildUpdateKafkaJobs(t *testing.T) {
	authority := types.Pubkey{0xaa}
	jobs, err := BuildUpdateKafkaJobs(99, authority, "oracle-updates", 4, sampleResults())
	require.NoError(t, err)
	require.NotEmpty(t, jobs)

	total := 0
	for _, job := range jobs {
		assert.Equal(t, "oracle-updates", job.Topic)
		assert.Equal(t, authority[:], job.Key)

		events, err := DecodeOracleUpdateEvents(job.Value)
		require.NoError(t, err)
		assert.Equal(t, uint64(99), events.Slot)
		assert.Equal(t, [32]byte(authority), events.Authority)
		for _, ev := range events.Events {
			assert.Equal(t, uint32(job.Partition), utils.PartitionHashBytes(ev.Account[:], 4))
			assert.NotEqual(t, byte(3), ev.Account[0], "failed results must not be published")
		}
		total += len(events.Events)
	}
	assert.Equal(t, 7, total)
}

func TestDecodeOracleUpdateEvents_WrongType(t *testing.T) {
	data, err := EncodeEvent(EventType(42), OracleUpdateEvents{})
	require.NoError(t, err)
	_, err = DecodeOracleUpdateEvents(data)
	assert.Error(t, err)

	_, err = DecodeOracleUpdateEvents([]byte{1})
	assert.Error(t, err)
}

func TestUpdatePublisher_Publish(t *testing.T) {
	producer := &fakeProducer{}
	pub := NewUpdatePublisher(producer, "oracle-updates", 2, time.Second)

	require.NoError(t, pub.PublishUpdates(context.Background(), 5, types.Pubkey{1}, sampleResults()))
	assert.NotEmpty(t, producer.produced)

	producer = &fakeProducer{silent: true}
	pub = NewUpdatePublisher(producer, "oracle-updates", 2, 10*time.Millisecond)
	assert.Error(t, pub.PublishUpdates(context.Background(), 5, types.Pubkey{1}, sampleResults()))

	// 没有成功结果时不发送
	producer = &fakeProducer{}
	pub = NewUpdatePublisher(producer, "oracle-updates", 2, time.Second)
	require.NoError(t, pub.PublishUpdates(context.Background(), 5, types.Pubkey{1}, nil))
	assert.Empty(t, producer.produced)
}
