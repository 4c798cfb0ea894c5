package progress

import (
	"sync"

	"randomness-oracle-sol/internal/pkg/types"
)

// recordBuffer 缓存待写入 Redis 的更新记录，同一账户只保留最新一条
type recordBuffer struct {
	mu     sync.Mutex
	buffer map[types.Pubkey]*UpdateRecord
}

func newRecordBuffer() *recordBuffer {
	return &recordBuffer{
		buffer: make(map[types.Pubkey]*UpdateRecord),
	}
}

func (b *recordBuffer) Add(record *UpdateRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if old, ok := b.buffer[record.Account]; ok && old.Slot > record.Slot {
		return
	}
	b.buffer[record.Account] = record
}

func (b *recordBuffer) Flush() []*UpdateRecord {
	b.mu.Lock()
	defer b.mu.Unlock()

	flushed := make([]*UpdateRecord, 0, len(b.buffer))
	for _, record := range b.buffer {
		flushed = append(flushed, record)
	}
	b.buffer = make(map[types.Pubkey]*UpdateRecord) // reset
	return flushed
}

func (b *recordBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}
