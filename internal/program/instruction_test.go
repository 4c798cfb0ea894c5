package program

import (
	"testing"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstruction_Encode(t *testing.T) {
	data, err := Instruction{Kind: InstructionInitRandomnessOracle}.Encode()
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, data)

	value := [32]byte{1, 2, 3, 31: 4}
	data, err = Instruction{Kind: InstructionUpdateRandomnessOracle, Value: value}.Encode()
	require.NoError(t, err)
	require.Len(t, data, 33)
	assert.Equal(t, byte(1), data[0])
	assert.Equal(t, value[:], data[1:])

	_, err = Instruction{Kind: 7}.Encode()
	assert.ErrorIs(t, err, ErrInvalidInstructionData)
}

func TestDecodeInstruction(t *testing.T) {
	ix, err := DecodeInstruction([]byte{0})
	require.NoError(t, err)
	assert.Equal(t, InstructionInitRandomnessOracle, ix.Kind)

	raw := make([]byte, 33)
	raw[0] = 1
	raw[32] = 0xFF
	ix, err = DecodeInstruction(raw)
	require.NoError(t, err)
	assert.Equal(t, InstructionUpdateRandomnessOracle, ix.Kind)
	assert.Equal(t, byte(0xFF), ix.Value[31])

	invalid := map[string][]byte{
		"empty":              {},
		"unknown tag":        {2},
		"init with payload":  {0, 1},
		"update too short":   raw[:32],
		"update with suffix": append(append([]byte{}, raw...), 0),
	}
	for name, data := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeInstruction(data)
			assert.ErrorIs(t, err, ErrInvalidInstructionData)
		})
	}
}

func TestNewUpdateRandomnessOracleInstruction(t *testing.T) {
	programID := consts.RandomnessOracleProgram
	oracle := types.Pubkey{1}
	authority := types.Pubkey{2}

	ix, err := NewUpdateRandomnessOracleInstruction(programID, oracle, authority, [32]byte{9})
	require.NoError(t, err)

	assert.Equal(t, programID.ToCommon(), ix.ProgramID)
	require.Len(t, ix.Accounts, 3)

	assert.Equal(t, oracle.ToCommon(), ix.Accounts[0].PubKey)
	assert.True(t, ix.Accounts[0].IsWritable)
	assert.False(t, ix.Accounts[0].IsSigner)

	assert.Equal(t, authority.ToCommon(), ix.Accounts[1].PubKey)
	assert.True(t, ix.Accounts[1].IsSigner)
	assert.False(t, ix.Accounts[1].IsWritable)

	assert.Equal(t, consts.SysvarClock.ToCommon(), ix.Accounts[2].PubKey)
	assert.False(t, ix.Accounts[2].IsWritable)

	decoded, err := DecodeInstruction(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, [32]byte{9}, decoded.Value)

	initIx, err := NewInitRandomnessOracleInstruction(programID, oracle, authority)
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, initIx.Data)
}
