package scanner

const (
	// Price impact above this level zeroes the impact component.
	impactCeilingPct = 3.0
	// Profit margin, in basis points of required capital, that earns the
	// full margin component.
	fullMarginBps = 100.0
)

// confidence scores an opportunity in [0,1]. The margin on capital dominates,
// price impact penalizes, and longer cycles score lower than the three-leg
// baseline.
func confidence(profit int64, capital uint64, impactPct float64, legCount int) float64 {
	if capital == 0 || legCount == 0 {
		return 0
	}

	marginBps := float64(profit) / float64(capital) * 10_000
	marginScore := clamp01(marginBps / fullMarginBps)

	impactScore := clamp01(1 - impactPct/impactCeilingPct)

	legScore := clamp01(3.0 / float64(legCount))

	return clamp01(0.5*marginScore + 0.3*impactScore + 0.2*legScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
