package program

import (
	"fmt"

	"randomness-oracle-sol/internal/pkg/types"
)

// AccountInfo 指令执行时传入程序的账户视图。
// Data 指向账本中的账户数据，程序原地写入。
type AccountInfo struct {
	Key        types.Pubkey
	Owner      types.Pubkey
	IsSigner   bool
	IsWritable bool
	Lamports   uint64
	Data       []byte
}

func RequireSigner(acc *AccountInfo) error {
	if acc.IsSigner {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingSignature, acc.Key)
}

func RequireOwnedBy(acc *AccountInfo, owner types.Pubkey) error {
	if acc.Owner != owner {
		return fmt.Errorf("%w: account %s owned by %s, want %s", ErrIllegalOwner, acc.Key, acc.Owner, owner)
	}
	return nil
}

// RequireAuthority 仅用于 Update；Init 时签名者直接成为 authority
func RequireAuthority(stored, caller types.Pubkey) error {
	if stored != caller {
		return fmt.Errorf("%w: stored %s, caller %s", ErrUnauthorized, stored, caller)
	}
	return nil
}
