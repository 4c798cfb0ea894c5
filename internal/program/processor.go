package program

import (
	"fmt"

	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"
)

// oracleAccounts 两条指令共用的账户布局: [oracle, authority, clock]
type oracleAccounts struct {
	oracle    *AccountInfo
	authority *AccountInfo
	clock     *Clock
}

func parseOracleAccounts(accounts []*AccountInfo) (*oracleAccounts, error) {
	if len(accounts) < 3 {
		return nil, fmt.Errorf("%w: got %d, want 3", ErrNotEnoughAccountKeys, len(accounts))
	}
	clock, err := ClockFromAccountInfo(accounts[2])
	if err != nil {
		return nil, err
	}
	return &oracleAccounts{
		oracle:    accounts[0],
		authority: accounts[1],
		clock:     clock,
	}, nil
}

// Process 指令路由，由账本执行环境在每笔交易中调用。
// 任何校验失败都在写账户之前返回。
func Process(programID types.Pubkey, accounts []*AccountInfo, input []byte) error {
	ix, err := DecodeInstruction(input)
	if err != nil {
		return err
	}

	logger.Debugf("[Program] Instruction: %s", ix.Kind)
	switch ix.Kind {
	case InstructionInitRandomnessOracle:
		return processInitRandomnessOracle(programID, accounts)
	case InstructionUpdateRandomnessOracle:
		return processUpdateRandomnessOracle(programID, accounts, ix.Value)
	default:
		return fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstructionData, ix.Kind)
	}
}

func processInitRandomnessOracle(programID types.Pubkey, accounts []*AccountInfo) error {
	accs, err := parseOracleAccounts(accounts)
	if err != nil {
		return err
	}

	if err := RequireSigner(accs.authority); err != nil {
		return err
	}
	if err := RequireOwnedBy(accs.oracle, programID); err != nil {
		return err
	}

	state, err := DecodeRandomnessOracle(accs.oracle.Data)
	if err != nil {
		return err
	}
	if state.IsInitialized() {
		return fmt.Errorf("%w: %s", ErrAlreadyInitialized, accs.oracle.Key)
	}

	// 签名者即成为 authority，没有额外的 owner 指定步骤
	state.Init(InitRandomnessOracleParams{
		Authority: accs.authority.Key,
		Slot:      accs.clock.Slot,
	})
	return saveRandomnessOracle(state, accs.oracle)
}

func processUpdateRandomnessOracle(programID types.Pubkey, accounts []*AccountInfo, value [32]byte) error {
	accs, err := parseOracleAccounts(accounts)
	if err != nil {
		return err
	}

	if err := RequireSigner(accs.authority); err != nil {
		return err
	}
	if err := RequireOwnedBy(accs.oracle, programID); err != nil {
		return err
	}

	state, err := DecodeRandomnessOracle(accs.oracle.Data)
	if err != nil {
		return err
	}
	if !state.IsInitialized() {
		return fmt.Errorf("%w: %s", ErrUninitializedAccount, accs.oracle.Key)
	}
	if err := RequireAuthority(state.Authority, accs.authority.Key); err != nil {
		return err
	}

	state.Update(value, accs.clock.Slot)
	return saveRandomnessOracle(state, accs.oracle)
}

// saveRandomnessOracle 先完整编码到新缓冲区，再一次性拷贝进账户数据
func saveRandomnessOracle(state *RandomnessOracle, acc *AccountInfo) error {
	data, err := state.Encode()
	if err != nil {
		return err
	}
	if len(acc.Data) != len(data) {
		return fmt.Errorf("%w: account size %d", ErrInvalidAccountData, len(acc.Data))
	}
	copy(acc.Data, data)
	return nil
}
