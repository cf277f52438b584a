package txbuilder

import (
	"context"
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/rpc"
)

type fakeChain struct {
	samples   []uint64
	samplesErr error
	blockhash  solana.Hash
	height     uint64
	hashErr    error
}

func (f *fakeChain) GetRecentFeeSamples(context.Context) ([]uint64, error) {
	return f.samples, f.samplesErr
}

func (f *fakeChain) GetLatestBlockhash(context.Context, string) (rpc.BlockRef, error) {
	if f.hashErr != nil {
		return rpc.BlockRef{}, f.hashErr
	}
	return rpc.BlockRef{Hash: f.blockhash, ValidUntilHeight: f.height}, nil
}

type fixedCongestion bool

func (f fixedCongestion) HighCongestion(context.Context) bool { return bool(f) }

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

var testPayer = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

func testChain() *fakeChain {
	return &fakeChain{
		samples:   []uint64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000},
		blockhash: solana.MustHashFromBase58("EkSnNWid2cvwEVnVx9aBqawnmiCNiDgp3gUdkDPTKN1N"),
		height:    424_242,
	}
}

func newBuilder(t *testing.T, chain ChainInfo, congested bool) *Builder {
	t.Helper()
	b, err := NewBuilder(chain, fixedCongestion(congested), Config{
		Payer:          testPayer,
		MinPriorityFee: 50,
		MaxPriorityFee: 10_000,
		Logger:         quietLogger(),
	})
	require.NoError(t, err)
	return b
}

func noopIx() solana.Instruction {
	return solana.NewInstruction(solana.SystemProgramID, []*solana.AccountMeta{
		{PublicKey: testPayer, IsSigner: true, IsWritable: true},
	}, []byte{1, 2, 3})
}

func TestPriorityFee_Percentiles(t *testing.T) {
	samples := []uint64{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000}

	assert.Equal(t, uint64(700), PriorityFee(samples, false, 0, 100_000), "75th percentile")
	assert.Equal(t, uint64(900), PriorityFee(samples, true, 0, 100_000), "90th percentile under congestion")
}

func TestPriorityFee_CapAndFloor(t *testing.T) {
	samples := []uint64{5_000, 6_000, 7_000}

	assert.Equal(t, uint64(1_000), PriorityFee(samples, false, 0, 1_000), "cap applies")
	assert.Equal(t, uint64(500), PriorityFee([]uint64{1, 2, 3}, false, 500, 1_000), "floor applies")
	assert.Equal(t, uint64(250), PriorityFee(nil, false, 250, 1_000), "no samples falls back to minimum")
}

func TestComputeBudgetInstructions_Layout(t *testing.T) {
	limit := SetComputeUnitLimit(600_000)
	price := SetComputeUnitPrice(1_234)

	limitData, err := limit.Data()
	require.NoError(t, err)
	require.Len(t, limitData, 5)
	assert.Equal(t, byte(2), limitData[0])
	assert.Equal(t, uint32(600_000), binary.LittleEndian.Uint32(limitData[1:]))

	priceData, err := price.Data()
	require.NoError(t, err)
	require.Len(t, priceData, 9)
	assert.Equal(t, byte(3), priceData[0])
	assert.Equal(t, uint64(1_234), binary.LittleEndian.Uint64(priceData[1:]))

	assert.Equal(t, computeBudgetProgramID, limit.ProgramID())
}

func TestBuild_PrependsComputeBudget(t *testing.T) {
	b := newBuilder(t, testChain(), false)

	bt, err := b.Build(context.Background(), []solana.Instruction{noopIx()}, "test swap")
	require.NoError(t, err)

	require.Len(t, bt.Instructions, 3)
	assert.Equal(t, computeBudgetProgramID, bt.Instructions[0].ProgramID())
	assert.Equal(t, computeBudgetProgramID, bt.Instructions[1].ProgramID())
	assert.Equal(t, solana.SystemProgramID, bt.Instructions[2].ProgramID())

	assert.Equal(t, uint64(700), bt.PriorityFeeMicroLamports)
	assert.Equal(t, uint64(424_242), bt.LastValidBlockHeight)
	assert.Equal(t, "test swap", bt.Summary)
	assert.NotEmpty(t, bt.ContentHash)
}

func TestBuild_CongestionRaisesFee(t *testing.T) {
	b := newBuilder(t, testChain(), true)

	bt, err := b.Build(context.Background(), []solana.Instruction{noopIx()}, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(900), bt.PriorityFeeMicroLamports)
}

func TestBuild_NonceIsMonotonic(t *testing.T) {
	b := newBuilder(t, testChain(), false)

	first, err := b.Build(context.Background(), []solana.Instruction{noopIx()}, "")
	require.NoError(t, err)
	second, err := b.Build(context.Background(), []solana.Instruction{noopIx()}, "")
	require.NoError(t, err)

	assert.Greater(t, second.Nonce, first.Nonce)
	assert.NotEqual(t, first.ContentHash, second.ContentHash,
		"nonce participates in the content hash")
}

func TestBuild_FeeSamplingFailureDegradesToMinimum(t *testing.T) {
	chain := testChain()
	chain.samplesErr = fmt.Errorf("rpc unavailable")
	b := newBuilder(t, chain, false)

	bt, err := b.Build(context.Background(), []solana.Instruction{noopIx()}, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(50), bt.PriorityFeeMicroLamports)
}

func TestBuild_BlockhashFailureIsFatal(t *testing.T) {
	chain := testChain()
	chain.hashErr = fmt.Errorf("rpc unavailable")
	b := newBuilder(t, chain, false)

	_, err := b.Build(context.Background(), []solana.Instruction{noopIx()}, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blockhash")
}

func TestBuild_RejectsEmptyInstructionSet(t *testing.T) {
	b := newBuilder(t, testChain(), false)
	_, err := b.Build(context.Background(), nil, "")
	assert.Error(t, err)
}

func TestBuiltTransaction_Staleness(t *testing.T) {
	b := newBuilder(t, testChain(), false)

	bt, err := b.Build(context.Background(), []solana.Instruction{noopIx()}, "")
	require.NoError(t, err)
	assert.False(t, bt.Stale(), "fresh transaction is usable")

	bt.BuiltAt = time.Now().Add(-61 * time.Second)
	assert.True(t, bt.Stale(), "past the 60s window")
}

func TestBuiltTransaction_AssemblesUnsignedTransaction(t *testing.T) {
	b := newBuilder(t, testChain(), false)

	bt, err := b.Build(context.Background(), []solana.Instruction{noopIx()}, "")
	require.NoError(t, err)

	tx, err := bt.Transaction()
	require.NoError(t, err)
	assert.Equal(t, testPayer, tx.Message.AccountKeys[0], "payer is the first account")
	assert.Len(t, tx.Message.Instructions, 3)
}
