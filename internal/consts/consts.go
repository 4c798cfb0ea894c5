package consts

// RandomnessOracle 账户布局: [account_type:1][authority:32][value:32][slot:8]
const (
	RandomnessOracleSize = 1 + 32 + 32 + 8

	AccountTypeOffset = 0
	AuthorityOffset   = 1
	ValueOffset       = 33
	SlotOffset        = 65
)

// ClockSysvarSize slot, epoch_start_timestamp, epoch, leader_schedule_epoch, unix_timestamp
const ClockSysvarSize = 40
