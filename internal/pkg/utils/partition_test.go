package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartitionHashBytes(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i * 7)
	}

	assert.Equal(t, uint32(0), PartitionHashBytes(key, 1))
	assert.Equal(t, uint32(0), PartitionHashBytes(key, 0))
	assert.Equal(t, uint32(0), PartitionHashBytes(key[:4], 8))

	for _, mod := range []uint32{2, 3, 8, 10} {
		p := PartitionHashBytes(key, mod)
		assert.Less(t, p, mod)
		assert.Equal(t, p, PartitionHashBytes(key, mod), "must be deterministic")
	}
}

func TestPartitionHashBytes_Spread(t *testing.T) {
	const mod = 4
	seen := make(map[uint32]bool)
	for i := 0; i < 64; i++ {
		key := make([]byte, 32)
		key[0] = byte(i)
		key[31] = byte(i * 2)
		seen[PartitionHashBytes(key, mod)] = true
	}
	assert.Len(t, seen, mod)
}

func TestCalcCapPerPartition(t *testing.T) {
	assert.Equal(t, 100, CalcCapPerPartition(100, 1, 10))
	assert.Equal(t, 50, CalcCapPerPartition(100, 4, 10))
	assert.Equal(t, 30, CalcCapPerPartition(100, 10, 10))
	assert.Equal(t, 10, CalcCapPerPartition(3, 10, 10))
}
