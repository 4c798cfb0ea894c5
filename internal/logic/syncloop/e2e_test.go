package syncloop

import (
	"context"
	"testing"
	"time"

	"randomness-oracle-sol/internal/consts"
	"randomness-oracle-sol/internal/ledger"
	"randomness-oracle-sol/internal/ledger/memledger"
	"randomness-oracle-sol/internal/logic/dispatcher"
	"randomness-oracle-sol/internal/logic/feed"
	"randomness-oracle-sol/internal/logic/scanner"
	"randomness-oracle-sol/internal/pkg/types"
	"randomness-oracle-sol/internal/program"

	soltypes "github.com/blocto/solana-go-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_EndToEnd(t *testing.T) {
	programID := consts.RandomnessOracleProgram
	l := memledger.New(programID)
	signer := soltypes.NewAccount()
	authorityKey := types.PubkeyFromCommon(signer.PublicKey)
	l.Airdrop(authorityKey, 1_000_000_000)

	oracles := []types.Pubkey{{0x31}, {0x32}, {0x33}}
	for _, key := range oracles {
		state := &program.RandomnessOracle{}
		state.Init(program.InitRandomnessOracleParams{Authority: authorityKey, Slot: 1})
		data, err := state.Encode()
		require.NoError(t, err)
		l.SetAccount(ledger.Account{Pubkey: key, Owner: programID, Lamports: 1, Data: data})
	}
	// 其他 authority 的账户不应被更新
	foreign := &program.RandomnessOracle{}
	foreign.Init(program.InitRandomnessOracleParams{Authority: types.Pubkey{0x99}, Slot: 1})
	foreignData, err := foreign.Encode()
	require.NoError(t, err)
	l.SetAccount(ledger.Account{Pubkey: types.Pubkey{0x40}, Owner: programID, Lamports: 1, Data: foreignData})

	pollingFeed := feed.NewPollingFeed(func(context.Context) (feed.SlotReader, error) {
		return l, nil
	}, time.Millisecond)
	loop := NewLoop(
		pollingFeed,
		scanner.NewScanner(l, programID),
		dispatcher.NewDispatcher(l, programID, signer, dispatcher.Options{}),
		authorityKey,
		Options{Backoff: time.Millisecond},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return loop.Checkpoint().Valid }, 2*time.Second, time.Millisecond)
	first := loop.Checkpoint().Slot
	assert.Equal(t, 0, l.SentCount())

	l.WarpToSlot(first + 5)
	require.Eventually(t, func() bool { return loop.Checkpoint().Slot == first+5 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, len(oracles), l.SentCount())

	// 同一高度多次轮询不产生新交易
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, len(oracles), l.SentCount())

	cancel()
	require.NoError(t, <-done)

	for _, key := range oracles {
		acc, err := l.GetAccount(context.Background(), key)
		require.NoError(t, err)
		state, err := program.DecodeRandomnessOracle(acc.Data)
		require.NoError(t, err)
		assert.Equal(t, first+5, state.Slot)
		assert.NotEqual(t, [32]byte{}, state.Value)
	}
	acc, err := l.GetAccount(context.Background(), types.Pubkey{0x40})
	require.NoError(t, err)
	assert.Equal(t, foreignData, acc.Data)
}
