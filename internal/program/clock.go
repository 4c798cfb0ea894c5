package program

import (
	"fmt"

	"randomness-oracle-sol/internal/consts"

	"github.com/near/borsh-go"
)

// Clock sysvar 数据布局
type Clock struct {
	Slot                uint64
	EpochStartTimestamp int64
	Epoch               uint64
	LeaderScheduleEpoch uint64
	UnixTimestamp       int64
}

func (c Clock) Encode() ([]byte, error) {
	return borsh.Serialize(c)
}

func ClockFromAccountInfo(acc *AccountInfo) (*Clock, error) {
	if acc.Key != consts.SysvarClock {
		return nil, fmt.Errorf("%w: got account %s", ErrInvalidClock, acc.Key)
	}
	if len(acc.Data) < consts.ClockSysvarSize {
		return nil, fmt.Errorf("%w: data too short (%d)", ErrInvalidClock, len(acc.Data))
	}
	var clock Clock
	if err := borsh.Deserialize(&clock, acc.Data[:consts.ClockSysvarSize]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidClock, err)
	}
	return &clock, nil
}
