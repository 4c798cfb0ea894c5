package dispatcher

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"randomness-oracle-sol/internal/ledger"
	"randomness-oracle-sol/internal/logic/scanner"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/program"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/zeromicro/go-zero/core/threading"
)

var (
	ErrSubmissionFailed = errors.New("submission failed")
	ErrBatchFailed      = errors.New("batch had failed submissions")
)

const (
	defaultSubmitTimeout    = 30 * time.Second
	defaultConfirmPollEvery = 500 * time.Millisecond
)

type Options struct {
	SubmitTimeout time.Duration // 单笔提交（含确认）超时
	WaitConfirm   bool          // 是否等待交易确认后才视为成功
	ConfirmPoll   time.Duration
	Entropy       io.Reader // 随机数来源，默认 crypto/rand
}

// Result 单个账户的提交结果
type Result struct {
	Pubkey    types.Pubkey
	Value     [32]byte
	Signature string
	Err       error
}

func (r *Result) OK() bool {
	return r.Err == nil
}

// BatchReport 一轮批量更新的汇总，Results 与输入账户一一对应、顺序一致
type BatchReport struct {
	Results   []Result
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// Committed 返回成功提交的结果
func (r *BatchReport) Committed() []Result {
	out := make([]Result, 0, r.Succeeded)
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res)
		}
	}
	return out
}

type Dispatcher struct {
	client    ledger.Client
	programID types.Pubkey
	authority soltypes.Account
	opts      Options
}

func NewDispatcher(client ledger.Client, programID types.Pubkey, authority soltypes.Account, opts Options) *Dispatcher {
	if opts.SubmitTimeout <= 0 {
		opts.SubmitTimeout = defaultSubmitTimeout
	}
	if opts.ConfirmPoll <= 0 {
		opts.ConfirmPoll = defaultConfirmPollEvery
	}
	if opts.Entropy == nil {
		opts.Entropy = rand.Reader
	}
	return &Dispatcher{
		client:    client,
		programID: programID,
		authority: authority,
		opts:      opts,
	}
}

func (d *Dispatcher) Authority() types.Pubkey {
	return types.PubkeyFromCommon(d.authority.PublicKey)
}

// Dispatch 为每个账户并发提交一笔 UpdateRandomnessOracle 交易，等待全部完成后返回。
// 单个账户失败只记录在其 Result 上，不影响其他账户；只要有失败，返回的 error 包装 ErrBatchFailed。
// 提交不受调用方取消影响，每笔受 SubmitTimeout 约束。
func (d *Dispatcher) Dispatch(ctx context.Context, accounts []scanner.OracleAccount) (*BatchReport, error) {
	start := time.Now()
	report := &BatchReport{Results: make([]Result, len(accounts))}
	if len(accounts) == 0 {
		return report, nil
	}

	// 每个账户独立取值，在启动协程前完成，避免共享随机源
	for i, acc := range accounts {
		report.Results[i].Pubkey = acc.Pubkey
		if _, err := io.ReadFull(d.opts.Entropy, report.Results[i].Value[:]); err != nil {
			report.Results[i].Err = fmt.Errorf("%w: draw value: %v", ErrSubmissionFailed, err)
		}
	}

	baseCtx := context.WithoutCancel(ctx)
	group := threading.NewRoutineGroup()
	for i := range report.Results {
		res := &report.Results[i]
		if res.Err != nil {
			continue
		}
		authority := cloneAccount(d.authority)
		group.RunSafe(func() {
			sig, err := d.submit(baseCtx, authority, res.Pubkey, res.Value)
			if err != nil {
				res.Err = fmt.Errorf("%w: %s: %w", ErrSubmissionFailed, res.Pubkey, err)
				return
			}
			res.Signature = sig
		})
	}
	group.Wait()

	for i := range report.Results {
		res := &report.Results[i]
		// RunSafe 吞掉 panic 后结果既无签名也无错误
		if res.Err == nil && res.Signature == "" {
			res.Err = fmt.Errorf("%w: %s: task aborted", ErrSubmissionFailed, res.Pubkey)
		}
		if res.OK() {
			report.Succeeded++
			continue
		}
		report.Failed++
		logger.Warnf("[Dispatcher] update %s failed: %v", res.Pubkey, res.Err)
	}
	report.Elapsed = time.Since(start)

	logger.Infof("[Dispatcher] batch done: total=%d, ok=%d, failed=%d, elapsed=%v",
		len(report.Results), report.Succeeded, report.Failed, report.Elapsed)
	if report.Failed > 0 {
		return report, fmt.Errorf("%w: %d of %d", ErrBatchFailed, report.Failed, len(report.Results))
	}
	return report, nil
}

func (d *Dispatcher) submit(ctx context.Context, authority soltypes.Account, oracle types.Pubkey, value [32]byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.SubmitTimeout)
	defer cancel()

	ix, err := program.NewUpdateRandomnessOracleInstruction(d.programID, oracle, types.PubkeyFromCommon(authority.PublicKey), value)
	if err != nil {
		return "", err
	}
	blockhash, err := d.client.GetLatestBlockhash(ctx)
	if err != nil {
		return "", fmt.Errorf("get latest blockhash: %w", err)
	}
	tx, err := soltypes.NewTransaction(soltypes.NewTransactionParam{
		Message: soltypes.NewMessage(soltypes.NewMessageParam{
			FeePayer:        authority.PublicKey,
			RecentBlockhash: blockhash,
			Instructions:    []soltypes.Instruction{ix},
		}),
		Signers: []soltypes.Account{authority},
	})
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := d.client.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	if d.opts.WaitConfirm {
		if _, err := ledger.WaitForConfirmation(ctx, d.client, sig, d.opts.ConfirmPoll); err != nil {
			return "", err
		}
	}
	logger.Debugf("[Dispatcher] updated %s, signature=%s", oracle, sig)
	return sig, nil
}

func cloneAccount(acc soltypes.Account) soltypes.Account {
	return soltypes.Account{
		PublicKey:  acc.PublicKey,
		PrivateKey: append(acc.PrivateKey[:0:0], acc.PrivateKey...),
	}
}
