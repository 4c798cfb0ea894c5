package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"randomness-oracle-sol/internal/pkg/types"

	soltypes "github.com/blocto/solana-go-sdk/types"
)

var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionFailed   = errors.New("transaction failed")
	ErrConfirmationTimeout = errors.New("transaction confirmation timeout")
)

type Account struct {
	Pubkey     types.Pubkey
	Owner      types.Pubkey
	Lamports   uint64
	Executable bool
	Data       []byte
}

// MemcmpFilter getProgramAccounts 的 memcmp 过滤条件，Bytes 为原始字节
type MemcmpFilter struct {
	Offset uint64
	Bytes  []byte
}

type SignatureStatus struct {
	Slot      uint64
	Confirmed bool
	Err       error // 链上执行失败原因，nil 表示成功
}

// Client 链下组件访问账本的全部能力
type Client interface {
	GetSlot(ctx context.Context) (uint64, error)
	GetAccount(ctx context.Context, pubkey types.Pubkey) (*Account, error)
	GetProgramAccounts(ctx context.Context, program types.Pubkey, filters ...MemcmpFilter) ([]Account, error)
	GetLatestBlockhash(ctx context.Context) (string, error)
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
	SendTransaction(ctx context.Context, tx soltypes.Transaction) (string, error)
	// GetSignatureStatus 交易未知时返回 nil, nil
	GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error)
}

// WaitForConfirmation 轮询签名状态直到确认、失败或 ctx 结束
func WaitForConfirmation(ctx context.Context, c Client, signature string, pollInterval time.Duration) (*SignatureStatus, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.GetSignatureStatus(ctx, signature)
		if err != nil {
			return nil, fmt.Errorf("get signature status %s: %w", signature, err)
		}
		if status != nil {
			if status.Err != nil {
				return status, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, signature, status.Err)
			}
			if status.Confirmed {
				return status, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %v", ErrConfirmationTimeout, signature, ctx.Err())
		case <-ticker.C:
		}
	}
}
