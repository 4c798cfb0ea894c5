package consts

// Base58 地址常量（可读性高，适合配置与日志使用）
const (
	// Programs
	SystemProgramStr = "11111111111111111111111111111111"

	// 随机数预言机程序（部署地址，可通过配置覆盖）
	RandomnessOracleProgramStr = "FfYvEMJip3kLpSJKfyLRXhp8f8yuSSaLxtjzaFecLT9s"

	// Sysvars
	SysvarClockStr = "SysvarC1ock11111111111111111111111111111111"
)
