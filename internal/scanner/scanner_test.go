package scanner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	solMint  = "So11111111111111111111111111111111111111112"
	usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"
	bonkMint = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
)

// fakeSource serves quotes from a static edge table keyed by input|output.
type fakeSource struct {
	mu    sync.Mutex
	edges map[string]fakeEdge
	calls int
}

type fakeEdge struct {
	out    uint64
	impact float64
}

func (f *fakeSource) Quote(_ context.Context, in, out string, amount uint64, _ uint16) (*Quote, error) {
	f.mu.Lock()
	f.calls++
	edge, ok := f.edges[in+"|"+out]
	f.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("no route for %s -> %s", in, out)
	}
	return &Quote{
		InputMint:      in,
		OutputMint:     out,
		InAmount:       amount,
		OutAmount:      edge.out,
		PriceImpactPct: edge.impact,
		RouteLegs: []RouteLeg{{
			AMMKey:     "amm-" + in[:4] + out[:4],
			InputMint:  in,
			OutputMint: out,
			InAmount:   amount,
			OutAmount:  edge.out,
		}},
	}, nil
}

func (f *fakeSource) BuildSwapInstructions(context.Context, *Quote, solana.PublicKey) ([]solana.Instruction, error) {
	return nil, fmt.Errorf("not supported by fake")
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func newScanner(t *testing.T, src QuoteSource, mints []string) *Scanner {
	t.Helper()
	s, err := New(src, Config{
		BaseMint:          solMint,
		IntermediateMints: mints,
		ProbeAmount:       1_000_000,
		MaxSlippageBps:    50,
		GasEstimate:       5_000,
		Logger:            quietLogger(),
	})
	require.NoError(t, err)
	return s
}

func TestScan_FindsProfitableTriangle(t *testing.T) {
	src := &fakeSource{edges: map[string]fakeEdge{
		solMint + "|" + usdcMint:  {out: 150_000, impact: 0.2},
		usdcMint + "|" + usdtMint: {out: 150_500, impact: 0.1},
		usdtMint + "|" + solMint:  {out: 1_050_000, impact: 0.2},
	}}

	opps, err := newScanner(t, src, []string{usdcMint, usdtMint}).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, opps, 1, "only the SOL>USDC>USDT>SOL ordering has all three legs")

	opp := opps[0]
	assert.Equal(t, int64(50_000), opp.EstimatedProfit)
	assert.Equal(t, uint64(1_000_000), opp.RequiredCapital)
	assert.Equal(t, []string{solMint, usdcMint, usdtMint, solMint}, opp.Cycle.Path)
	assert.InDelta(t, 0.5, opp.PriceImpactPct, 1e-9)
	assert.Greater(t, opp.Confidence, 0.0)
	assert.LessOrEqual(t, opp.Confidence, 1.0)
	assert.Equal(t, uint64(5_000), opp.EstimatedGasFee)
}

func TestScan_DiscardsCycleOnMissingLeg(t *testing.T) {
	// Second leg missing: the cycle must be dropped entirely, and the third
	// leg never quoted for that ordering.
	src := &fakeSource{edges: map[string]fakeEdge{
		solMint + "|" + usdcMint: {out: 150_000},
		// usdc -> usdt absent
		usdtMint + "|" + solMint: {out: 1_050_000},
	}}

	opps, err := newScanner(t, src, []string{usdcMint, usdtMint}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestScan_SortsByProfitDescending(t *testing.T) {
	src := &fakeSource{edges: map[string]fakeEdge{
		solMint + "|" + usdcMint:  {out: 150_000},
		usdcMint + "|" + usdtMint: {out: 150_500},
		usdtMint + "|" + solMint:  {out: 1_050_000}, // +50_000

		solMint + "|" + bonkMint:  {out: 9_000_000},
		bonkMint + "|" + usdcMint: {out: 151_000},
		usdcMint + "|" + solMint:  {out: 1_010_000}, // +10_000

		usdtMint + "|" + bonkMint: {out: 1},
		bonkMint + "|" + usdtMint: {out: 1},
		usdcMint + "|" + bonkMint: {out: 1},
		bonkMint + "|" + solMint:  {out: 900_000}, // losers
		usdtMint + "|" + usdcMint: {out: 149_000},
	}}

	opps, err := newScanner(t, src, []string{usdcMint, usdtMint, bonkMint}).Scan(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, opps)

	for i := 1; i < len(opps); i++ {
		assert.GreaterOrEqual(t, opps[i-1].EstimatedProfit, opps[i].EstimatedProfit)
	}
	assert.Equal(t, int64(50_000), opps[0].EstimatedProfit)
}

func TestScan_SkipsBaseAsIntermediate(t *testing.T) {
	src := &fakeSource{edges: map[string]fakeEdge{}}

	opps, err := newScanner(t, src, []string{solMint, usdcMint}).Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
	assert.Zero(t, src.calls, "no valid ordered pair exists, so no quotes are requested")
}

func TestFingerprint_StableAcrossDiscoveries(t *testing.T) {
	src := &fakeSource{edges: map[string]fakeEdge{
		solMint + "|" + usdcMint:  {out: 150_000},
		usdcMint + "|" + usdtMint: {out: 150_500},
		usdtMint + "|" + solMint:  {out: 1_050_000},
	}}
	s := newScanner(t, src, []string{usdcMint, usdtMint})

	first, err := s.Scan(context.Background())
	require.NoError(t, err)
	second, err := s.Scan(context.Background())
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEmpty(t, first[0].Fingerprint())
	assert.Equal(t, first[0].Fingerprint(), second[0].Fingerprint(),
		"fingerprint carries no timestamp, so rediscoveries dedupe")
}

func TestScan_FiltersNonCandidates(t *testing.T) {
	t.Run("losing cycle", func(t *testing.T) {
		src := &fakeSource{edges: map[string]fakeEdge{
			solMint + "|" + usdcMint:  {out: 150_000},
			usdcMint + "|" + usdtMint: {out: 150_500},
			usdtMint + "|" + solMint:  {out: 990_000},
		}}
		opps, err := newScanner(t, src, []string{usdcMint, usdtMint}).Scan(context.Background())
		require.NoError(t, err)
		assert.Empty(t, opps)
	})

	t.Run("impact above ceiling", func(t *testing.T) {
		src := &fakeSource{edges: map[string]fakeEdge{
			solMint + "|" + usdcMint:  {out: 150_000, impact: 2.0},
			usdcMint + "|" + usdtMint: {out: 150_500, impact: 1.5},
			usdtMint + "|" + solMint:  {out: 1_050_000},
		}}
		opps, err := newScanner(t, src, []string{usdcMint, usdtMint}).Scan(context.Background())
		require.NoError(t, err)
		assert.Empty(t, opps, "aggregate impact 3.5%% exceeds the 3%% ceiling")
	})

	t.Run("confidence below floor", func(t *testing.T) {
		// Thin margin and high (but admissible) impact together sink the
		// confidence score under 0.7.
		src := &fakeSource{edges: map[string]fakeEdge{
			solMint + "|" + usdcMint:  {out: 150_000, impact: 2.0},
			usdcMint + "|" + usdtMint: {out: 150_500, impact: 0.5},
			usdtMint + "|" + solMint:  {out: 1_001_000},
		}}
		opps, err := newScanner(t, src, []string{usdcMint, usdtMint}).Scan(context.Background())
		require.NoError(t, err)
		assert.Empty(t, opps)
	})
}

func TestRun_DeliversOnCadence(t *testing.T) {
	src := &fakeSource{edges: map[string]fakeEdge{
		solMint + "|" + usdcMint:  {out: 150_000},
		usdcMint + "|" + usdtMint: {out: 150_500},
		usdtMint + "|" + solMint:  {out: 1_050_000},
	}}
	s := newScanner(t, src, []string{usdcMint, usdtMint})

	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Run(ctx, 5*time.Millisecond)

	batch, ok := <-ch
	require.True(t, ok)
	require.Len(t, batch, 1)
	assert.Equal(t, int64(50_000), batch[0].EstimatedProfit)

	cancel()
	for range ch {
		// Drain until the scanner closes the channel.
	}
}

func TestConfidence_Bounds(t *testing.T) {
	assert.Equal(t, 0.0, confidence(1000, 0, 0, 3))
	assert.Equal(t, 0.0, confidence(1000, 1_000_000, 0, 0))

	full := confidence(10_000, 1_000_000, 0, 3) // 100 bps margin, zero impact
	assert.InDelta(t, 1.0, full, 1e-9)

	losing := confidence(-5_000, 1_000_000, 5.0, 3)
	assert.GreaterOrEqual(t, losing, 0.0)
	assert.Less(t, losing, 0.5)
}
