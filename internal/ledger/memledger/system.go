package memledger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/program"
)

var (
	ErrAccountAlreadyInUse  = errors.New("account already in use")
	ErrInsufficientLamports = errors.New("insufficient lamports")
	ErrUnsupportedSystemIx  = errors.New("unsupported system instruction")
)

const (
	systemInstructionCreateAccount uint32 = 0
	// u32 指令号 + u64 lamports + u64 space + owner
	createAccountDataSize = 4 + 8 + 8 + 32
)

// processSystemInstruction 只实现 CreateAccount: [from (signer, writable), new (signer, writable)]
func processSystemInstruction(_ types.Pubkey, accounts []*program.AccountInfo, input []byte) error {
	if len(input) < 4 {
		return fmt.Errorf("%w: system instruction too short", program.ErrInvalidInstructionData)
	}
	if kind := binary.LittleEndian.Uint32(input[:4]); kind != systemInstructionCreateAccount {
		return fmt.Errorf("%w: %d", ErrUnsupportedSystemIx, kind)
	}
	if len(input) != createAccountDataSize {
		return fmt.Errorf("%w: create account data length %d", program.ErrInvalidInstructionData, len(input))
	}
	if len(accounts) < 2 {
		return fmt.Errorf("%w: got %d, want 2", program.ErrNotEnoughAccountKeys, len(accounts))
	}

	lamports := binary.LittleEndian.Uint64(input[4:12])
	space := binary.LittleEndian.Uint64(input[12:20])
	var owner types.Pubkey
	copy(owner[:], input[20:52])

	from, created := accounts[0], accounts[1]
	if err := program.RequireSigner(from); err != nil {
		return err
	}
	if err := program.RequireSigner(created); err != nil {
		return err
	}
	if created.Lamports != 0 || len(created.Data) != 0 || created.Owner != consts.SystemProgram {
		return fmt.Errorf("%w: %s", ErrAccountAlreadyInUse, created.Key)
	}
	if from.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d, need %d", ErrInsufficientLamports, from.Key, from.Lamports, lamports)
	}

	from.Lamports -= lamports
	created.Lamports = lamports
	created.Data = make([]byte, space)
	created.Owner = owner
	return nil
}
