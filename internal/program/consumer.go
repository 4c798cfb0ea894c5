package program

import (
	"fmt"

	"randomness-oracle-sol/internal/pkg/types"
)

// ReadValue 供下游程序读取随机数。
// 先校验账户归属本程序，未校验前 value / slot 都不可信。
func ReadValue(programID types.Pubkey, acc *AccountInfo) ([32]byte, uint64, error) {
	if err := RequireOwnedBy(acc, programID); err != nil {
		return [32]byte{}, 0, err
	}
	state, err := DecodeRandomnessOracle(acc.Data)
	if err != nil {
		return [32]byte{}, 0, err
	}
	if !state.IsInitialized() {
		return [32]byte{}, 0, fmt.Errorf("%w: %s", ErrUninitializedAccount, acc.Key)
	}
	return state.Value, state.Slot, nil
}
