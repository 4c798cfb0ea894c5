package admin

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/ledger"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/program"

	"github.com/blocto/solana-go-sdk/program/system"
	soltypes "github.com/blocto/solana-go-sdk/types"
)

var ErrInsufficientBalance = errors.New("fee payer has insufficient balance")

const (
	lamportsPerSignature = 5000
	lamportsPerSol       = 1_000_000_000
	confirmPollInterval  = 500 * time.Millisecond
)

type InitParams struct {
	FeePayer soltypes.Account
	Owner    soltypes.Account  // 成为预言机的 authority
	Oracle   *soltypes.Account // 新账户密钥，nil 时随机生成
	Timeout  time.Duration     // 等待确认的超时，<=0 不等待
}

type InitResult struct {
	Oracle    types.Pubkey
	Authority types.Pubkey
	Rent      uint64
	Signature string
}

// InitOracle 在同一笔交易中创建 73 字节账户（归属本程序、租金豁免）并执行 Init
func InitOracle(ctx context.Context, client ledger.Client, programID types.Pubkey, params InitParams) (*InitResult, error) {
	oracle := soltypes.NewAccount()
	if params.Oracle != nil {
		oracle = *params.Oracle
	}
	oracleKey := types.PubkeyFromCommon(oracle.PublicKey)
	ownerKey := types.PubkeyFromCommon(params.Owner.PublicKey)
	logger.Infof("[Admin] Creating account %s", oracleKey)
	logger.Infof("[Admin] Authority: %s", ownerKey)

	rent, err := client.GetMinimumBalanceForRentExemption(ctx, consts.RandomnessOracleSize)
	if err != nil {
		return nil, fmt.Errorf("get rent exemption: %w", err)
	}

	initIx, err := program.NewInitRandomnessOracleInstruction(programID, oracleKey, ownerKey)
	if err != nil {
		return nil, err
	}
	instructions := []soltypes.Instruction{
		system.CreateAccount(system.CreateAccountParam{
			From:     params.FeePayer.PublicKey,
			New:      oracle.PublicKey,
			Owner:    programID.ToCommon(),
			Lamports: rent,
			Space:    consts.RandomnessOracleSize,
		}),
		initIx,
	}

	signers := uniqueSigners(params.FeePayer, params.Owner, oracle)
	required := rent + uint64(len(signers))*lamportsPerSignature
	if err := checkFeePayerBalance(ctx, client, types.PubkeyFromCommon(params.FeePayer.PublicKey), required); err != nil {
		return nil, err
	}

	blockhash, err := client.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("get latest blockhash: %w", err)
	}
	tx, err := soltypes.NewTransaction(soltypes.NewTransactionParam{
		Message: soltypes.NewMessage(soltypes.NewMessageParam{
			FeePayer:        params.FeePayer.PublicKey,
			RecentBlockhash: blockhash,
			Instructions:    instructions,
		}),
		Signers: signers,
	})
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := client.SendTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}
	if params.Timeout > 0 {
		confirmCtx, cancel := context.WithTimeout(ctx, params.Timeout)
		defer cancel()
		if _, err := ledger.WaitForConfirmation(confirmCtx, client, sig, confirmPollInterval); err != nil {
			return nil, err
		}
	}

	return &InitResult{
		Oracle:    oracleKey,
		Authority: ownerKey,
		Rent:      rent,
		Signature: sig,
	}, nil
}

// uniqueSigners 按公钥去重并排序
func uniqueSigners(accounts ...soltypes.Account) []soltypes.Account {
	sort.SliceStable(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i].PublicKey[:], accounts[j].PublicKey[:]) < 0
	})
	out := make([]soltypes.Account, 0, len(accounts))
	for _, acc := range accounts {
		if len(out) > 0 && out[len(out)-1].PublicKey == acc.PublicKey {
			continue
		}
		out = append(out, acc)
	}
	return out
}

func checkFeePayerBalance(ctx context.Context, client ledger.Client, payer types.Pubkey, required uint64) error {
	var balance uint64
	acc, err := client.GetAccount(ctx, payer)
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
	case err != nil:
		return fmt.Errorf("get fee payer balance: %w", err)
	default:
		balance = acc.Lamports
	}
	if balance < required {
		return fmt.Errorf("%w: %s, %s SOL required, %s SOL available",
			ErrInsufficientBalance, payer, lamportsToSol(required), lamportsToSol(balance))
	}
	return nil
}

func lamportsToSol(lamports uint64) string {
	return fmt.Sprintf("%d.%09d", lamports/lamportsPerSol, lamports%lamportsPerSol)
}

// OracleInfo info 命令的输出
type OracleInfo struct {
	Address  types.Pubkey
	Owner    types.Pubkey
	Lamports uint64
	State    *program.RandomnessOracle
}

func (i *OracleInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Address:     %s\n", i.Address)
	fmt.Fprintf(&b, "Owner:       %s\n", i.Owner)
	fmt.Fprintf(&b, "Balance:     %s SOL\n", lamportsToSol(i.Lamports))
	fmt.Fprintf(&b, "AccountType: %s\n", i.State.AccountType)
	fmt.Fprintf(&b, "Authority:   %s\n", i.State.Authority)
	fmt.Fprintf(&b, "Value:       %s\n", hex.EncodeToString(i.State.Value[:]))
	fmt.Fprintf(&b, "Slot:        %d\n", i.State.Slot)
	return b.String()
}

// Info 读取并解码预言机账户；账户须归属本程序且已初始化
func Info(ctx context.Context, client ledger.Client, programID, address types.Pubkey) (*OracleInfo, error) {
	acc, err := client.GetAccount(ctx, address)
	if err != nil {
		return nil, err
	}
	if _, _, err := program.ReadValue(programID, &program.AccountInfo{Key: acc.Pubkey, Owner: acc.Owner, Data: acc.Data}); err != nil {
		return nil, err
	}
	state, err := program.DecodeRandomnessOracle(acc.Data)
	if err != nil {
		return nil, err
	}
	return &OracleInfo{
		Address:  address,
		Owner:    acc.Owner,
		Lamports: acc.Lamports,
		State:    state,
	}, nil
}
