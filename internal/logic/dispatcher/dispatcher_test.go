package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/ledger"
	"randomness-oracle-sol/internal/ledger/memledger"
	"randomness-oracle-sol/internal/logic/scanner"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/program"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var programID = consts.RandomnessOracleProgram

type fixture struct {
	ledger    *memledger.Ledger
	authority soltypes.Account
	accounts  []scanner.OracleAccount
}

func newFixture(t *testing.T, n int) *fixture {
	t.Helper()
	l := memledger.New(programID)
	authority := soltypes.NewAccount()
	authorityKey := types.PubkeyFromCommon(authority.PublicKey)
	l.Airdrop(authorityKey, 1_000_000_000)

	f := &fixture{ledger: l, authority: authority}
	for i := 0; i < n; i++ {
		state := &program.RandomnessOracle{}
		state.Init(program.InitRandomnessOracleParams{Authority: authorityKey, Slot: 1})
		data, err := state.Encode()
		require.NoError(t, err)
		key := types.Pubkey{0x10, byte(i + 1)}
		l.SetAccount(ledger.Account{Pubkey: key, Owner: programID, Lamports: 1, Data: data})
		f.accounts = append(f.accounts, scanner.OracleAccount{Pubkey: key, State: state})
	}
	return f
}

func (f *fixture) state(t *testing.T, key types.Pubkey) *program.RandomnessOracle {
	t.Helper()
	acc, err := f.ledger.GetAccount(context.Background(), key)
	require.NoError(t, err)
	state, err := program.DecodeRandomnessOracle(acc.Data)
	require.NoError(t, err)
	return state
}

func TestDispatch_AllSucceed(t *testing.T) {
	f := newFixture(t, 3)
	f.ledger.WarpToSlot(50)
	d := NewDispatcher(f.ledger, programID, f.authority, Options{WaitConfirm: true, ConfirmPoll: time.Millisecond})

	report, err := d.Dispatch(context.Background(), f.accounts)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Len(t, report.Committed(), 3)

	seen := make(map[[32]byte]bool)
	for i, res := range report.Results {
		assert.Equal(t, f.accounts[i].Pubkey, res.Pubkey)
		assert.NotEmpty(t, res.Signature)
		assert.False(t, seen[res.Value], "values must be drawn independently")
		seen[res.Value] = true

		state := f.state(t, res.Pubkey)
		assert.Equal(t, res.Value, state.Value)
		assert.Equal(t, uint64(50), state.Slot)
	}
}

func TestDispatch_PartialFailure(t *testing.T) {
	f := newFixture(t, 3)
	f.ledger.WarpToSlot(20)
	boom := errors.New("node rejected transaction")
	f.ledger.FailAccount(f.accounts[1].Pubkey, boom)
	d := NewDispatcher(f.ledger, programID, f.authority, Options{})

	report, err := d.Dispatch(context.Background(), f.accounts)
	require.ErrorIs(t, err, ErrBatchFailed)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)

	assert.True(t, report.Results[0].OK())
	assert.True(t, report.Results[2].OK())
	assert.ErrorIs(t, report.Results[1].Err, ErrSubmissionFailed)
	assert.ErrorIs(t, report.Results[1].Err, boom)

	assert.Equal(t, uint64(20), f.state(t, f.accounts[0].Pubkey).Slot)
	assert.Equal(t, uint64(1), f.state(t, f.accounts[1].Pubkey).Slot)
	assert.Equal(t, uint64(20), f.state(t, f.accounts[2].Pubkey).Slot)
}

func TestDispatch_EmptyBatch(t *testing.T) {
	f := newFixture(t, 0)
	report, err := NewDispatcher(f.ledger, programID, f.authority, Options{}).Dispatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Results)
	assert.Equal(t, 0, f.ledger.SentCount())
}

func TestDispatch_IgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewDispatcher(f.ledger, programID, f.authority, Options{}).Dispatch(ctx, f.accounts)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestDispatch_EntropyFailure(t *testing.T) {
	f := newFixture(t, 2)
	d := NewDispatcher(f.ledger, programID, f.authority, Options{Entropy: failingReader{}})

	report, err := d.Dispatch(context.Background(), f.accounts)
	require.ErrorIs(t, err, ErrBatchFailed)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 0, f.ledger.SentCount())
}

func TestDispatch_WrongAuthority(t *testing.T) {
	f := newFixture(t, 1)
	stranger := soltypes.NewAccount()
	f.ledger.Airdrop(types.PubkeyFromCommon(stranger.PublicKey), 1_000_000_000)

	report, err := NewDispatcher(f.ledger, programID, stranger, Options{}).Dispatch(context.Background(), f.accounts)
	require.ErrorIs(t, err, ErrBatchFailed)
	assert.ErrorIs(t, report.Results[0].Err, program.ErrUnauthorized)
}
