package ledger

import (
	"context"
	"encoding/base64"
	"fmt"

	"randomness-oracle-sol/internal/pkg/types"

	"github.com/blocto/solana-go-sdk/client"
	"github.com/blocto/solana-go-sdk/rpc"
	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

// RpcClient 基于 solana-go-sdk JSON-RPC 的 Client 实现
type RpcClient struct {
	client     *client.Client
	commitment rpc.Commitment
}

func NewRpcClient(endpoint string) *RpcClient {
	return &RpcClient{
		client:     client.NewClient(endpoint),
		commitment: rpc.CommitmentConfirmed,
	}
}

func (c *RpcClient) GetSlot(ctx context.Context) (uint64, error) {
	return c.client.GetSlot(ctx)
}

func (c *RpcClient) GetAccount(ctx context.Context, pubkey types.Pubkey) (*Account, error) {
	info, err := c.client.GetAccountInfo(ctx, pubkey.String())
	if err != nil {
		return nil, fmt.Errorf("getAccountInfo %s: %w", pubkey, err)
	}
	// 账户不存在时 RPC 返回 null，SDK 给出零值
	if info.Lamports == 0 && len(info.Data) == 0 && types.PubkeyFromCommon(info.Owner).IsZero() {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, pubkey)
	}
	return &Account{
		Pubkey:     pubkey,
		Owner:      types.PubkeyFromCommon(info.Owner),
		Lamports:   info.Lamports,
		Executable: info.Executable,
		Data:       info.Data,
	}, nil
}

// GetProgramAccounts memcmp 过滤在服务端执行，字节按 base58 编码传输
func (c *RpcClient) GetProgramAccounts(ctx context.Context, program types.Pubkey, filters ...MemcmpFilter) ([]Account, error) {
	rpcFilters := make([]rpc.GetProgramAccountsConfigFilter, 0, len(filters))
	for _, f := range filters {
		rpcFilters = append(rpcFilters, rpc.GetProgramAccountsConfigFilter{
			MemCmp: &rpc.GetProgramAccountsConfigFilterMemCmp{
				Offset: f.Offset,
				Bytes:  base58.Encode(f.Bytes),
			},
		})
	}

	res, err := c.client.RpcClient.GetProgramAccountsWithConfig(ctx, program.String(), rpc.GetProgramAccountsConfig{
		Encoding:   rpc.AccountEncodingBase64,
		Commitment: c.commitment,
		Filters:    rpcFilters,
	})
	if err != nil {
		return nil, fmt.Errorf("getProgramAccounts %s: %w", program, err)
	}
	if err := res.GetError(); err != nil {
		return nil, fmt.Errorf("getProgramAccounts %s: %w", program, err)
	}

	accounts := make([]Account, 0, len(res.Result))
	for _, item := range res.Result {
		acc, err := convertProgramAccount(item)
		if err != nil {
			return nil, fmt.Errorf("getProgramAccounts %s: %w", program, err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, nil
}

// convertProgramAccount data 字段格式为 [base64, "base64"]
func convertProgramAccount(item rpc.GetProgramAccount) (Account, error) {
	pubkey, err := types.TryPubkeyFromBase58(item.Pubkey)
	if err != nil {
		return Account{}, err
	}
	owner, err := types.TryPubkeyFromBase58(item.Account.Owner)
	if err != nil {
		return Account{}, err
	}
	data, ok := item.Account.Data.([]any)
	if !ok || len(data) != 2 {
		return Account{}, fmt.Errorf("account %s: unexpected data format", item.Pubkey)
	}
	if enc, _ := data[1].(string); enc != string(rpc.AccountEncodingBase64) {
		return Account{}, fmt.Errorf("account %s: unexpected encoding %v", item.Pubkey, data[1])
	}
	raw, _ := data[0].(string)
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Account{}, fmt.Errorf("account %s: decode data: %w", item.Pubkey, err)
	}
	return Account{
		Pubkey:     pubkey,
		Owner:      owner,
		Lamports:   item.Account.Lamports,
		Executable: item.Account.Executable,
		Data:       decoded,
	}, nil
}

func (c *RpcClient) GetLatestBlockhash(ctx context.Context) (string, error) {
	res, err := c.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("getLatestBlockhash: %w", err)
	}
	return res.Blockhash, nil
}

func (c *RpcClient) GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error) {
	return c.client.GetMinimumBalanceForRentExemption(ctx, size)
}

func (c *RpcClient) SendTransaction(ctx context.Context, tx soltypes.Transaction) (string, error) {
	return c.client.SendTransaction(ctx, tx)
}

func (c *RpcClient) GetSignatureStatus(ctx context.Context, signature string) (*SignatureStatus, error) {
	status, err := c.client.GetSignatureStatus(ctx, signature)
	if err != nil {
		return nil, err
	}
	if status == nil {
		return nil, nil
	}

	result := &SignatureStatus{Slot: status.Slot}
	if status.Err != nil {
		result.Err = fmt.Errorf("%v", status.Err)
	}
	if status.ConfirmationStatus != nil {
		switch *status.ConfirmationStatus {
		case rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
			result.Confirmed = true
		}
	}
	return result, nil
}

var _ Client = (*RpcClient)(nil)
