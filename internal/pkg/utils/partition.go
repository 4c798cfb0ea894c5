package utils

import (
	"encoding/binary"
)

// PartitionHashBytes 为公钥类（近似均匀分布）的字节选择分区。
// 取首尾各 4 字节异或作为哈希，非加密用途；长度不足 8 或 mod<=1 时返回 0。
func PartitionHashBytes(b []byte, mod uint32) uint32 {
	if len(b) < 8 || mod <= 1 {
		return 0
	}
	hash := binary.LittleEndian.Uint32(b[:4]) ^ binary.BigEndian.Uint32(b[len(b)-4:])
	if mod&(mod-1) == 0 {
		return hash & (mod - 1) // 2 的幂：掩码替代取模
	}
	return hash % mod
}

// CalcCapPerPartition 根据总量和分区数估算每个分区的初始容量，带一定冗余，不低于 minCap
func CalcCapPerPartition(total, partitions, minCap int) int {
	switch {
	case partitions <= 1:
		return max(total, minCap)
	case partitions < 5:
		return max(total/2, minCap)
	default:
		return max(total*3/partitions, minCap)
	}
}
