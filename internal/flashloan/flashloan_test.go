package flashloan

import (
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCatalog = `
[[providers]]
venue = "solend"
name = "solend-main"
program_id = "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo"
max_loan = 1000000
fee_bps = 15

[[providers]]
venue = "marginfi"
name = "marginfi-main"
program_id = "MFv2hWf31Z9kbCa1snEPYctwafyhdvnV7FZnsebVacA"
max_loan = 800000
fee_bps = 9

[[providers]]
venue = "solend"
name = "solend-turbo"
program_id = "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo"
max_loan = 1200000
fee_bps = 20
`

func testProviders(t *testing.T) []Provider {
	t.Helper()
	providers, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	require.Len(t, providers, 3)
	return providers
}

func TestParseCatalog_RejectsUnknownVenue(t *testing.T) {
	_, err := ParseCatalog([]byte(`
[[providers]]
venue = "kamino"
program_id = "So1endDq2YkqhipRh3WViPa8hdiSpxWy6z3Z6tMCpAo"
max_loan = 1000
fee_bps = 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported venue")
}

func TestParseCatalog_RejectsEmpty(t *testing.T) {
	_, err := ParseCatalog([]byte(""))
	assert.Error(t, err)
}

func TestSelect_LowestFeeAmongCapable(t *testing.T) {
	providers := testProviders(t)

	// All three can cover 500k; marginfi-main has the lowest fee.
	best := Select(providers, 500_000)
	require.NotNil(t, best)
	assert.Equal(t, "marginfi-main", best.Name())
}

func TestSelect_ExcludesUndersizedProviders(t *testing.T) {
	providers := testProviders(t)

	// 900k exceeds marginfi's capacity; solend-main wins on fee among the rest.
	best := Select(providers, 900_000)
	require.NotNil(t, best)
	assert.Equal(t, "solend-main", best.Name())
}

func TestSelect_NoneCanServe(t *testing.T) {
	providers := testProviders(t)
	assert.Nil(t, Select(providers, 1_500_000))
}

func TestSelect_CapacityBreaksFeeTies(t *testing.T) {
	a := &venueProvider{name: "a", maxLoan: 1_000_000, feeBps: 10}
	b := &venueProvider{name: "b", maxLoan: 2_000_000, feeBps: 10}

	best := Select([]Provider{a, b}, 500_000)
	require.NotNil(t, best)
	assert.Equal(t, "b", best.Name())
}

func TestEvaluate_ProfitablePath(t *testing.T) {
	ev, err := Evaluate(1_000_000, 9, 1_020_000, 10_000)
	require.NoError(t, err)

	assert.Equal(t, uint64(900), ev.FeeAmount)
	assert.Equal(t, uint64(1_000_900), ev.RepayAmount)
	assert.Equal(t, int64(19_100), ev.Profit)
	assert.True(t, ev.Profitable)
}

func TestEvaluate_NegativeProfit(t *testing.T) {
	ev, err := Evaluate(1_000_000, 9, 990_000, 0)
	require.NoError(t, err)

	assert.Equal(t, int64(-10_900), ev.Profit)
	assert.False(t, ev.Profitable)
}

func TestEvaluate_FeeRoundsDown(t *testing.T) {
	// 999 * 15 / 10000 = 1.4985 -> 1
	ev, err := Evaluate(999, 15, 1_100, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev.FeeAmount)
	assert.Equal(t, uint64(1_000), ev.RepayAmount)
}

func TestEvaluate_ThresholdIsInclusive(t *testing.T) {
	ev, err := Evaluate(1_000_000, 9, 1_010_900, 10_000)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), ev.Profit)
	assert.True(t, ev.Profitable, "profit exactly at the minimum counts")
}

func TestEvaluate_LargeLoanDoesNotWrap(t *testing.T) {
	// loan * feeBps would overflow uint64 if computed naively.
	loan := uint64(1) << 62
	ev, err := Evaluate(loan, 30, loan, 0)
	require.NoError(t, err)
	assert.Equal(t, loan*3/1_000, ev.FeeAmount)
	assert.False(t, ev.Profitable)
}

func TestEvaluate_ZeroLoanRejected(t *testing.T) {
	_, err := Evaluate(0, 9, 100, 0)
	assert.Error(t, err)
}

func TestEncodeBorrowRepay_Layout(t *testing.T) {
	providers := testProviders(t)
	borrower := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	borrow, err := providers[0].EncodeBorrow(borrower, 250_000)
	require.NoError(t, err)
	repay, err := providers[0].EncodeRepay(borrower, 250_375)
	require.NoError(t, err)

	borrowData, err := borrow.Data()
	require.NoError(t, err)
	require.Len(t, borrowData, 9)
	assert.Equal(t, byte(10), borrowData[0])
	assert.Equal(t, uint64(250_000), binary.LittleEndian.Uint64(borrowData[1:]))

	repayData, err := repay.Data()
	require.NoError(t, err)
	assert.Equal(t, byte(11), repayData[0])
	assert.Equal(t, uint64(250_375), binary.LittleEndian.Uint64(repayData[1:]))

	assert.Equal(t, providers[0].ProgramID(), borrow.ProgramID())
	accounts := borrow.Accounts()
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].IsSigner)
}

func TestEncodeBorrow_RespectsCapacity(t *testing.T) {
	providers := testProviders(t)
	borrower := solana.PublicKey{}

	_, err := providers[0].EncodeBorrow(borrower, 2_000_000)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max loan")
}
