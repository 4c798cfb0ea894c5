package scanner

import (
	"context"
	"fmt"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/ledger"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/program"
)

// OracleAccount 扫描结果：账户地址 + 解码后的状态
type OracleAccount struct {
	Pubkey types.Pubkey
	State  *program.RandomnessOracle
}

type Scanner struct {
	client    ledger.Client
	programID types.Pubkey
}

func NewScanner(client ledger.Client, programID types.Pubkey) *Scanner {
	return &Scanner{client: client, programID: programID}
}

// Scan 查询本程序下属于 authority 的全部已初始化预言机账户。
// 过滤在节点侧完成：offset 0 为账户类型，offset 1 为 authority。
// 解码失败的账户直接丢弃，查询失败则返回错误。
func (s *Scanner) Scan(ctx context.Context, authority types.Pubkey) ([]OracleAccount, error) {
	accounts, err := s.client.GetProgramAccounts(ctx, s.programID, Filters(authority)...)
	if err != nil {
		return nil, fmt.Errorf("get program accounts: %w", err)
	}

	result := make([]OracleAccount, 0, len(accounts))
	for i := range accounts {
		acc := &accounts[i]
		state, err := program.DecodeRandomnessOracle(acc.Data)
		if err != nil {
			logger.Debugf("[Scanner] skip account %s: %v", acc.Pubkey, err)
			continue
		}
		// 节点实现可能忽略过滤条件，这里再校验一次
		if acc.Owner != s.programID || !state.IsInitialized() || state.Authority != authority {
			logger.Debugf("[Scanner] skip account %s: not an oracle of %s", acc.Pubkey, authority)
			continue
		}
		result = append(result, OracleAccount{Pubkey: acc.Pubkey, State: state})
	}
	return result, nil
}

func Filters(authority types.Pubkey) []ledger.MemcmpFilter {
	return []ledger.MemcmpFilter{
		{Offset: consts.AccountTypeOffset, Bytes: []byte{byte(program.AccountTypeRandomnessOracle)}},
		{Offset: consts.AuthorityOffset, Bytes: authority[:]},
	}
}
