package safety

import "fmt"

// Severity classifies one safety check outcome.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// RiskLevel is the rolled-up risk of the whole battery.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Check is one rule's outcome.
type Check struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail,omitempty"`
}

// Report is the result of the full validation battery. CanProceed is false
// iff any error-severity check failed.
type Report struct {
	Checks     []Check   `json:"checks"`
	RiskLevel  RiskLevel `json:"risk_level"`
	CanProceed bool      `json:"can_proceed"`
}

// FailedErrors returns the failed error-severity checks.
func (r *Report) FailedErrors() []Check {
	var out []Check
	for _, c := range r.Checks {
		if !c.Passed && c.Severity == SeverityError {
			out = append(out, c)
		}
	}
	return out
}

// Params are the inputs to one validation pass. Amounts are in the starting
// asset's smallest unit; percentages are whole percents (5.0 == 5%).
type Params struct {
	InputAmount     uint64
	ExpectedOutput  uint64
	FlashLoanFeeBps uint16
	GasCost         uint64
	SlippageBps     uint16
	PriceImpactPct  float64
	MinimumProfit   uint64
}

// Thresholds for the battery. Exported so operators can see them in docs and
// handlers can echo them, not so they can be tuned per call.
const (
	MaxSlippageBps        = 500  // 5%
	MaxPriceImpactPct     = 3.0  // hard ceiling
	WarnPriceImpactPct    = 1.5  // warning band below the ceiling
	MaxGasProfitRatioPct  = 20.0 // gas above this share of gross profit warns
	WarnFlashLoanFeeBps   = 50   // 0.5%
	warningsForMediumRisk = 1
	warningsForHighRisk   = 3
)

// Validate runs the full battery. It is pure: same params, same report. Every
// check always runs so the report is complete even when an early check fails.
func Validate(p Params) Report {
	var checks []Check

	fee := p.InputAmount * uint64(p.FlashLoanFeeBps) / 10_000
	repay := p.InputAmount + fee
	grossProfit := int64(p.ExpectedOutput) - int64(repay)
	netProfit := grossProfit - int64(p.GasCost)

	checks = append(checks, Check{
		Name:     "profitability",
		Passed:   netProfit > 0,
		Severity: SeverityError,
		Detail:   fmt.Sprintf("net profit %d after flash-loan fee %d and gas %d", netProfit, fee, p.GasCost),
	})

	checks = append(checks, Check{
		Name:     "slippage_tolerance",
		Passed:   p.SlippageBps <= MaxSlippageBps,
		Severity: SeverityError,
		Detail:   fmt.Sprintf("slippage %d bps, limit %d bps", p.SlippageBps, MaxSlippageBps),
	})

	checks = append(checks, Check{
		Name:     "price_impact_ceiling",
		Passed:   p.PriceImpactPct <= MaxPriceImpactPct,
		Severity: SeverityError,
		Detail:   fmt.Sprintf("price impact %.2f%%, ceiling %.2f%%", p.PriceImpactPct, MaxPriceImpactPct),
	})

	checks = append(checks, Check{
		Name:     "price_impact_band",
		Passed:   p.PriceImpactPct <= WarnPriceImpactPct,
		Severity: SeverityWarning,
		Detail:   fmt.Sprintf("price impact %.2f%%, comfort band %.2f%%", p.PriceImpactPct, WarnPriceImpactPct),
	})

	gasOK := true
	gasDetail := "no gross profit to compare against"
	if grossProfit > 0 {
		ratio := float64(p.GasCost) / float64(grossProfit) * 100
		gasOK = ratio <= MaxGasProfitRatioPct
		gasDetail = fmt.Sprintf("gas is %.1f%% of gross profit, limit %.1f%%", ratio, MaxGasProfitRatioPct)
	}
	checks = append(checks, Check{
		Name:     "gas_to_profit_ratio",
		Passed:   gasOK,
		Severity: SeverityWarning,
		Detail:   gasDetail,
	})

	checks = append(checks, Check{
		Name:     "flash_loan_fee",
		Passed:   p.FlashLoanFeeBps <= WarnFlashLoanFeeBps,
		Severity: SeverityWarning,
		Detail:   fmt.Sprintf("fee %d bps, comfort limit %d bps", p.FlashLoanFeeBps, WarnFlashLoanFeeBps),
	})

	checks = append(checks, Check{
		Name:     "net_profit_minimum",
		Passed:   netProfit >= int64(p.MinimumProfit),
		Severity: SeverityError,
		Detail:   fmt.Sprintf("net profit %d, minimum %d", netProfit, p.MinimumProfit),
	})

	return Report{
		Checks:     checks,
		RiskLevel:  rollUp(checks),
		CanProceed: canProceed(checks),
	}
}

func canProceed(checks []Check) bool {
	for _, c := range checks {
		if !c.Passed && c.Severity == SeverityError {
			return false
		}
	}
	return true
}

// rollUp maps check outcomes to a single risk level: any failed error is
// critical, then warning count decides.
func rollUp(checks []Check) RiskLevel {
	warnings := 0
	for _, c := range checks {
		if c.Passed {
			continue
		}
		if c.Severity == SeverityError {
			return RiskCritical
		}
		warnings++
	}
	switch {
	case warnings >= warningsForHighRisk:
		return RiskHigh
	case warnings >= warningsForMediumRisk:
		return RiskMedium
	default:
		return RiskLow
	}
}
