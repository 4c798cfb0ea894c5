package program

import "errors"

// 程序执行错误，交易整体失败，账户数据不变
var (
	ErrInvalidAccountData     = errors.New("invalid account data")
	ErrInvalidInstructionData = errors.New("invalid instruction data")
	ErrNotEnoughAccountKeys   = errors.New("not enough account keys")
	ErrInvalidClock           = errors.New("invalid clock sysvar")
	ErrMissingSignature       = errors.New("missing required signature")
	ErrIllegalOwner           = errors.New("illegal owner")
	ErrUnauthorized           = errors.New("unauthorized authority")
	ErrAlreadyInitialized     = errors.New("account already initialized")
	ErrUninitializedAccount   = errors.New("uninitialized account")
)
