package memledger

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"sync"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/ledger"
	"randomness-oracle-sol/internal/pkg/logger"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/program"

	"github.com/blocto/solana-go-sdk/common"
	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/mr-tron/base58"
)

var (
	ErrInvalidSignature     = errors.New("invalid transaction signature")
	ErrBlockhashNotFound    = errors.New("blockhash not found")
	ErrProgramNotFound      = errors.New("program not found")
	ErrReadonlyDataModified = errors.New("instruction modified data of a read-only account")
	ErrExternalDataModified = errors.New("instruction modified data of an account it does not own")
)

const (
	// Solana 租金豁免公式: (128 + size) * 3480 * 2
	accountStorageOverhead = 128
	lamportsPerByteYear    = 3480
	exemptionThreshold     = 2
)

var sysvarOwner = types.PubkeyFromBase58("Sysvar1111111111111111111111111111111111111")

// ProgramFunc 可执行程序入口
type ProgramFunc func(programID types.Pubkey, accounts []*program.AccountInfo, input []byte) error

// Ledger 进程内账本：按 Solana 语义执行交易（签名校验、位置账户、原子提交），
// 用于测试和本地联调。
type Ledger struct {
	mu         sync.Mutex
	slot       uint64
	hashSeq    uint64
	accounts   map[types.Pubkey]*ledger.Account
	programs   map[types.Pubkey]ProgramFunc
	blockhash  map[string]struct{}
	signatures map[string]*ledger.SignatureStatus

	failures map[types.Pubkey]error // 涉及这些账户的交易在提交阶段失败
	slotErr  error                  // 非空时 GetSlot / GetProgramAccounts 返回该错误
	sent     int
}

// New 创建账本并注册 system program 与随机数预言机程序
func New(oracleProgramID types.Pubkey) *Ledger {
	l := &Ledger{
		slot:       1,
		accounts:   make(map[types.Pubkey]*ledger.Account),
		programs:   make(map[types.Pubkey]ProgramFunc),
		blockhash:  make(map[string]struct{}),
		signatures: make(map[string]*ledger.SignatureStatus),
		failures:   make(map[types.Pubkey]error),
	}
	l.programs[consts.SystemProgram] = processSystemInstruction
	l.programs[oracleProgramID] = program.Process
	l.writeClockLocked()
	return l
}

func (l *Ledger) RegisterProgram(id types.Pubkey, fn ProgramFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[id] = fn
}

// WarpToSlot 推进账本高度，同时刷新 Clock sysvar
func (l *Ledger) WarpToSlot(slot uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if slot < l.slot {
		return
	}
	l.slot = slot
	l.writeClockLocked()
}

func (l *Ledger) Slot() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

func (l *Ledger) SetAccount(acc ledger.Account) {
	l.mu.Lock()
	defer l.mu.Unlock()
	clone := cloneAccount(&acc)
	l.accounts[acc.Pubkey] = clone
}

func (l *Ledger) Airdrop(pubkey types.Pubkey, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[pubkey]
	if !ok {
		acc = &ledger.Account{Pubkey: pubkey, Owner: consts.SystemProgram}
		l.accounts[pubkey] = acc
	}
	acc.Lamports += lamports
}

// FailAccount 之后所有引用该账户的交易在提交时返回 err（模拟网络或节点失败）
func (l *Ledger) FailAccount(pubkey types.Pubkey, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[pubkey] = err
}

func (l *Ledger) ClearFailures() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures = make(map[types.Pubkey]error)
}

// SetQueryError 非 nil 时模拟节点不可用
func (l *Ledger) SetQueryError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.slotErr = err
}

// SentCount 成功执行的交易数
func (l *Ledger) SentCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

func (l *Ledger) GetSlot(_ context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slotErr != nil {
		return 0, l.slotErr
	}
	return l.slot, nil
}

func (l *Ledger) GetAccount(_ context.Context, pubkey types.Pubkey) (*ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	acc, ok := l.accounts[pubkey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, pubkey)
	}
	return cloneAccount(acc), nil
}

func (l *Ledger) GetProgramAccounts(_ context.Context, programID types.Pubkey, filters ...ledger.MemcmpFilter) ([]ledger.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slotErr != nil {
		return nil, l.slotErr
	}

	result := make([]ledger.Account, 0)
	for _, acc := range l.accounts {
		if acc.Owner != programID || !matchFilters(acc.Data, filters) {
			continue
		}
		result = append(result, *cloneAccount(acc))
	}
	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Pubkey[:], result[j].Pubkey[:]) < 0
	})
	return result, nil
}

func matchFilters(data []byte, filters []ledger.MemcmpFilter) bool {
	for _, f := range filters {
		end := f.Offset + uint64(len(f.Bytes))
		if end > uint64(len(data)) || !bytes.Equal(data[f.Offset:end], f.Bytes) {
			return false
		}
	}
	return true
}

func (l *Ledger) GetLatestBlockhash(_ context.Context) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hashSeq++
	var seed [16]byte
	binary.LittleEndian.PutUint64(seed[:8], l.slot)
	binary.LittleEndian.PutUint64(seed[8:], l.hashSeq)
	hash := types.Hash(sha256.Sum256(seed[:]))
	l.blockhash[hash.String()] = struct{}{}
	return hash.String(), nil
}

func (l *Ledger) GetMinimumBalanceForRentExemption(_ context.Context, size uint64) (uint64, error) {
	return (accountStorageOverhead + size) * lamportsPerByteYear * exemptionThreshold, nil
}

func (l *Ledger) GetSignatureStatus(_ context.Context, signature string) (*ledger.SignatureStatus, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	status, ok := l.signatures[signature]
	if !ok {
		return nil, nil
	}
	clone := *status
	return &clone, nil
}

// SendTransaction 校验签名后同步执行全部指令，全部成功才提交
func (l *Ledger) SendTransaction(_ context.Context, tx soltypes.Transaction) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	msg := tx.Message
	if err := l.checkFailuresLocked(msg.Accounts); err != nil {
		return "", err
	}

	msgData, err := msg.Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize message: %w", err)
	}
	if err := verifySignatures(tx, msgData); err != nil {
		return "", err
	}
	if _, ok := l.blockhash[msg.RecentBlockHash]; !ok {
		return "", fmt.Errorf("%w: %s", ErrBlockhashNotFound, msg.RecentBlockHash)
	}

	signature := base58.Encode(tx.Signatures[0])
	working := make(map[types.Pubkey]*program.AccountInfo)
	for i, ix := range msg.Instructions {
		if err := l.executeLocked(msg, ix, working); err != nil {
			logger.Debugf("[MemLedger] tx %s instruction %d failed: %v", signature, i, err)
			return "", fmt.Errorf("transaction simulation failed: instruction %d: %w", i, err)
		}
	}

	for idx, key := range msg.Accounts {
		info, ok := working[types.PubkeyFromCommon(key)]
		if !ok || !isWritable(msg, idx) {
			continue
		}
		l.accounts[info.Key] = &ledger.Account{
			Pubkey:   info.Key,
			Owner:    info.Owner,
			Lamports: info.Lamports,
			Data:     info.Data,
		}
	}
	l.signatures[signature] = &ledger.SignatureStatus{Slot: l.slot, Confirmed: true}
	l.sent++
	return signature, nil
}

func (l *Ledger) checkFailuresLocked(keys []common.PublicKey) error {
	for _, key := range keys {
		if err, ok := l.failures[types.PubkeyFromCommon(key)]; ok {
			return err
		}
	}
	return nil
}

func (l *Ledger) executeLocked(msg soltypes.Message, ix soltypes.CompiledInstruction, working map[types.Pubkey]*program.AccountInfo) error {
	if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(msg.Accounts) {
		return fmt.Errorf("%w: program index %d", ErrProgramNotFound, ix.ProgramIDIndex)
	}
	programID := types.PubkeyFromCommon(msg.Accounts[ix.ProgramIDIndex])
	fn, ok := l.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}

	infos := make([]*program.AccountInfo, 0, len(ix.Accounts))
	before := make([]program.AccountInfo, 0, len(ix.Accounts))
	for _, idx := range ix.Accounts {
		if idx < 0 || idx >= len(msg.Accounts) {
			return fmt.Errorf("%w: account index %d", program.ErrNotEnoughAccountKeys, idx)
		}
		key := types.PubkeyFromCommon(msg.Accounts[idx])
		info, ok := working[key]
		if !ok {
			info = l.loadLocked(key)
			working[key] = info
		}
		info.IsSigner = idx < int(msg.Header.NumRequireSignatures)
		info.IsWritable = isWritable(msg, idx)
		infos = append(infos, info)
		before = append(before, program.AccountInfo{
			Key:        info.Key,
			Owner:      info.Owner,
			IsWritable: info.IsWritable,
			Lamports:   info.Lamports,
			Data:       bytes.Clone(info.Data),
		})
	}

	if err := fn(programID, infos, ix.Data); err != nil {
		return err
	}

	for i, info := range infos {
		pre := before[i]
		if bytes.Equal(pre.Data, info.Data) && pre.Owner == info.Owner {
			continue
		}
		if !pre.IsWritable {
			return fmt.Errorf("%w: %s", ErrReadonlyDataModified, info.Key)
		}
		if pre.Owner != programID {
			return fmt.Errorf("%w: %s", ErrExternalDataModified, info.Key)
		}
	}
	return nil
}

func (l *Ledger) loadLocked(key types.Pubkey) *program.AccountInfo {
	acc, ok := l.accounts[key]
	if !ok {
		return &program.AccountInfo{Key: key, Owner: consts.SystemProgram}
	}
	return &program.AccountInfo{
		Key:      key,
		Owner:    acc.Owner,
		Lamports: acc.Lamports,
		Data:     bytes.Clone(acc.Data),
	}
}

func (l *Ledger) writeClockLocked() {
	data, err := program.Clock{Slot: l.slot}.Encode()
	if err != nil {
		panic(fmt.Errorf("encode clock: %w", err))
	}
	l.accounts[consts.SysvarClock] = &ledger.Account{
		Pubkey:   consts.SysvarClock,
		Owner:    sysvarOwner,
		Lamports: 1,
		Data:     data,
	}
}

func verifySignatures(tx soltypes.Transaction, msgData []byte) error {
	required := int(tx.Message.Header.NumRequireSignatures)
	if required == 0 || len(tx.Signatures) != required || len(tx.Message.Accounts) < required {
		return fmt.Errorf("%w: got %d signatures, want %d", ErrInvalidSignature, len(tx.Signatures), required)
	}
	for i := 0; i < required; i++ {
		key := tx.Message.Accounts[i]
		if !ed25519.Verify(ed25519.PublicKey(key[:]), msgData, tx.Signatures[i]) {
			return fmt.Errorf("%w: signer %s", ErrInvalidSignature, key.ToBase58())
		}
	}
	return nil
}

// isWritable 按消息头推导账户可写性
func isWritable(msg soltypes.Message, idx int) bool {
	h := msg.Header
	if idx < int(h.NumRequireSignatures) {
		return idx < int(h.NumRequireSignatures)-int(h.NumReadonlySignedAccounts)
	}
	return idx < len(msg.Accounts)-int(h.NumReadonlyUnsignedAccounts)
}

func cloneAccount(acc *ledger.Account) *ledger.Account {
	clone := *acc
	clone.Data = bytes.Clone(acc.Data)
	return &clone
}

var _ ledger.Client = (*Ledger)(nil)
