package program

import (
	"fmt"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/pkg/types"

	"github.com/near/borsh-go"
)

// AccountType 账户类型，位于账户数据首字节
type AccountType uint8

const (
	AccountTypeUninitialized    AccountType = 0 // 未初始化，其余字段全为 0
	AccountTypeRandomnessOracle AccountType = 1
)

func (t AccountType) String() string {
	switch t {
	case AccountTypeUninitialized:
		return "Uninitialized"
	case AccountTypeRandomnessOracle:
		return "RandomnessOracle"
	default:
		return fmt.Sprintf("AccountType(%d)", uint8(t))
	}
}

type InitRandomnessOracleParams struct {
	Authority types.Pubkey
	Slot      uint64
}

// RandomnessOracle 链上随机数预言机账户
type RandomnessOracle struct {
	AccountType AccountType
	Authority   types.Pubkey // 唯一有权更新 Value 的公钥，初始化后不可变
	Value       [32]byte
	Slot        uint64 // 最近一次更新时的 slot
}

// randomnessOracleLayout 账户的 borsh 布局，共 73 字节
type randomnessOracleLayout struct {
	AccountType uint8
	Authority   types.Pubkey
	Value       [32]byte
	Slot        uint64
}

func (o *RandomnessOracle) IsInitialized() bool {
	return o.AccountType == AccountTypeRandomnessOracle
}

func (o *RandomnessOracle) Init(params InitRandomnessOracleParams) {
	o.AccountType = AccountTypeRandomnessOracle
	o.Authority = params.Authority
	o.Value = [32]byte{}
	o.Slot = params.Slot
}

func (o *RandomnessOracle) Update(value [32]byte, slot uint64) {
	o.Value = value
	o.Slot = slot
}

func (o *RandomnessOracle) Encode() ([]byte, error) {
	data, err := borsh.Serialize(randomnessOracleLayout{
		AccountType: uint8(o.AccountType),
		Authority:   o.Authority,
		Value:       o.Value,
		Slot:        o.Slot,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	if len(data) != consts.RandomnessOracleSize {
		return nil, fmt.Errorf("%w: encoded %d bytes, want %d", ErrInvalidAccountData, len(data), consts.RandomnessOracleSize)
	}
	return data, nil
}

// DecodeRandomnessOracle 先看首字节的账户类型再按类型解码。
// 全 0 数据视为未初始化账户；类型未知、长度不符或未初始化账户带有非 0 字段都返回 ErrInvalidAccountData。
func DecodeRandomnessOracle(data []byte) (*RandomnessOracle, error) {
	if len(data) != consts.RandomnessOracleSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidAccountData, len(data), consts.RandomnessOracleSize)
	}

	switch AccountType(data[consts.AccountTypeOffset]) {
	case AccountTypeUninitialized:
		for i, b := range data {
			if b != 0 {
				return nil, fmt.Errorf("%w: uninitialized account has non-zero byte at %d", ErrInvalidAccountData, i)
			}
		}
		return &RandomnessOracle{}, nil

	case AccountTypeRandomnessOracle:
		var layout randomnessOracleLayout
		if err := borsh.Deserialize(&layout, data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
		}
		return &RandomnessOracle{
			AccountType: AccountType(layout.AccountType),
			Authority:   layout.Authority,
			Value:       layout.Value,
			Slot:        layout.Slot,
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown account type %d", ErrInvalidAccountData, data[consts.AccountTypeOffset])
	}
}
