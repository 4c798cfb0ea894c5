package program

import (
	"fmt"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/pkg/types"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/near/borsh-go"
)

// InstructionKind borsh 枚举下标，即指令数据首字节
type InstructionKind uint8

const (
	// InstructionInitRandomnessOracle 初始化预言机账户
	//
	// 账户:
	// [W]  预言机账户（链下已分配 73 字节并归属本程序）
	// [RS] Authority，之后唯一可更新的签名者
	// [R]  Clock sysvar
	InstructionInitRandomnessOracle InstructionKind = 0

	// InstructionUpdateRandomnessOracle 更新随机数，账户顺序同上
	InstructionUpdateRandomnessOracle InstructionKind = 1
)

const (
	initInstructionSize   = 1
	updateInstructionSize = 1 + 32
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionInitRandomnessOracle:
		return "InitRandomnessOracle"
	case InstructionUpdateRandomnessOracle:
		return "UpdateRandomnessOracle"
	default:
		return fmt.Sprintf("InstructionKind(%d)", uint8(k))
	}
}

type Instruction struct {
	Kind  InstructionKind
	Value [32]byte // 仅 Update 使用
}

type updatePayload struct {
	Value [32]byte
}

func (ix Instruction) Encode() ([]byte, error) {
	switch ix.Kind {
	case InstructionInitRandomnessOracle:
		return []byte{byte(ix.Kind)}, nil
	case InstructionUpdateRandomnessOracle:
		payload, err := borsh.Serialize(updatePayload{Value: ix.Value})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
		}
		return append([]byte{byte(ix.Kind)}, payload...), nil
	default:
		return nil, fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstructionData, ix.Kind)
	}
}

// DecodeInstruction 先读判别字节再解码对应变体，未知判别值或长度不符直接拒绝
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return Instruction{}, fmt.Errorf("%w: empty", ErrInvalidInstructionData)
	}

	kind := InstructionKind(data[0])
	switch kind {
	case InstructionInitRandomnessOracle:
		if len(data) != initInstructionSize {
			return Instruction{}, fmt.Errorf("%w: %s got %d bytes", ErrInvalidInstructionData, kind, len(data))
		}
		return Instruction{Kind: kind}, nil

	case InstructionUpdateRandomnessOracle:
		if len(data) != updateInstructionSize {
			return Instruction{}, fmt.Errorf("%w: %s got %d bytes", ErrInvalidInstructionData, kind, len(data))
		}
		var payload updatePayload
		if err := borsh.Deserialize(&payload, data[1:]); err != nil {
			return Instruction{}, fmt.Errorf("%w: %v", ErrInvalidInstructionData, err)
		}
		return Instruction{Kind: kind, Value: payload.Value}, nil

	default:
		return Instruction{}, fmt.Errorf("%w: unknown instruction %d", ErrInvalidInstructionData, data[0])
	}
}

// NewInitRandomnessOracleInstruction 构造 InitRandomnessOracle 指令
func NewInitRandomnessOracleInstruction(programID, oracle, authority types.Pubkey) (soltypes.Instruction, error) {
	return newInstruction(programID, oracle, authority, Instruction{Kind: InstructionInitRandomnessOracle})
}

// NewUpdateRandomnessOracleInstruction 构造 UpdateRandomnessOracle 指令
func NewUpdateRandomnessOracleInstruction(programID, oracle, authority types.Pubkey, value [32]byte) (soltypes.Instruction, error) {
	return newInstruction(programID, oracle, authority, Instruction{Kind: InstructionUpdateRandomnessOracle, Value: value})
}

func newInstruction(programID, oracle, authority types.Pubkey, ix Instruction) (soltypes.Instruction, error) {
	data, err := ix.Encode()
	if err != nil {
		return soltypes.Instruction{}, err
	}
	return soltypes.Instruction{
		ProgramID: programID.ToCommon(),
		Accounts: []soltypes.AccountMeta{
			{PubKey: oracle.ToCommon(), IsSigner: false, IsWritable: true},
			{PubKey: authority.ToCommon(), IsSigner: true, IsWritable: false},
			{PubKey: consts.SysvarClock.ToCommon(), IsSigner: false, IsWritable: false},
		},
		Data: data,
	}, nil
}
