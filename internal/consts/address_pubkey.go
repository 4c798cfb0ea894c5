package consts

import (
	"randomness-oracle-sol/internal/pkg/types"
)

// 公钥形式的地址常量（types.Pubkey），用于链上比对
var (
	SystemProgram           = types.PubkeyFromBase58(SystemProgramStr)
	RandomnessOracleProgram = types.PubkeyFromBase58(RandomnessOracleProgramStr)
	SysvarClock             = types.PubkeyFromBase58(SysvarClockStr)
)
