package mq

import (
	"encoding/binary"
	"fmt"

	"github.com/near/borsh-go"
)

// EventType 消息前缀，区分事件类型
type EventType uint32

const (
	EventTypeOracleUpdate EventType = 1
)

const eventVersion uint8 = 1

// OracleUpdateEvent 一个账户的随机数更新
type OracleUpdateEvent struct {
	Account   [32]byte
	Value     [32]byte
	Signature string
}

// OracleUpdateEvents 同一分区、同一 slot 的更新事件集合
type OracleUpdateEvents struct {
	Version   uint8
	Slot      uint64
	Authority [32]byte
	Events    []OracleUpdateEvent
}

// EncodeEvent 编码为带事件类型前缀的二进制数据：
// - 前 4 字节为事件类型（uint32，小端序）
// - 后续为 borsh 序列化数据
func EncodeEvent(eventType EventType, msg any) ([]byte, error) {
	payload, err := borsh.Serialize(msg)
	if err != nil {
		return nil, fmt.Errorf("EncodeEvent: serialize %T: %w", msg, err)
	}
	buf := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(eventType))
	return append(buf, payload...), nil
}

// DecodeOracleUpdateEvents 供消费方使用
func DecodeOracleUpdateEvents(data []byte) (*OracleUpdateEvents, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("event too short: %d bytes", len(data))
	}
	if t := EventType(binary.LittleEndian.Uint32(data[:4])); t != EventTypeOracleUpdate {
		return nil, fmt.Errorf("unexpected event type %d", t)
	}
	var events OracleUpdateEvents
	if err := borsh.Deserialize(&events, data[4:]); err != nil {
		return nil, fmt.Errorf("decode oracle update events: %w", err)
	}
	return &events, nil
}
