package flashloan

import (
	"fmt"
	"math"
	"math/big"
)

// Evaluation is the integer-exact economics of one flash-loan execution. All
// amounts are in the loan asset's smallest unit.
type Evaluation struct {
	LoanAmount  uint64 `json:"loan_amount"`
	FeeAmount   uint64 `json:"fee_amount"`
	RepayAmount uint64 `json:"repay_amount"`
	// Profit is expected output minus repay; negative when the cycle loses
	// money after the flash-loan fee.
	Profit     int64 `json:"profit"`
	Profitable bool  `json:"profitable"`
}

// Evaluate computes fee, repayment, and profit for a loan. The fee rounds
// down: fee = floor(loan * feeBps / 10000). Profitability requires profit to
// meet minProfit. Intermediate math runs in big.Int so no product can
// silently wrap.
func Evaluate(loanAmount uint64, feeBps uint16, expectedOutput uint64, minProfit uint64) (Evaluation, error) {
	if loanAmount == 0 {
		return Evaluation{}, fmt.Errorf("flashloan: loan amount must be positive")
	}

	loan := new(big.Int).SetUint64(loanAmount)
	fee := new(big.Int).Mul(loan, big.NewInt(int64(feeBps)))
	fee.Div(fee, big.NewInt(10_000))

	repay := new(big.Int).Add(loan, fee)
	if !repay.IsUint64() {
		return Evaluation{}, fmt.Errorf("flashloan: repay amount overflows uint64")
	}

	profit := new(big.Int).SetUint64(expectedOutput)
	profit.Sub(profit, repay)
	if !profit.IsInt64() {
		return Evaluation{}, fmt.Errorf("flashloan: profit out of int64 range")
	}

	p := profit.Int64()
	if minProfit > math.MaxInt64 {
		return Evaluation{}, fmt.Errorf("flashloan: min profit out of range")
	}

	return Evaluation{
		LoanAmount:  loanAmount,
		FeeAmount:   fee.Uint64(),
		RepayAmount: repay.Uint64(),
		Profit:      p,
		Profitable:  p >= int64(minProfit),
	}, nil
}
