package txbuilder

import (
	"encoding/binary"
	"sort"

	"github.com/gagliardetto/solana-go"
)

var computeBudgetProgramID = solana.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111")

const (
	computeUnitLimitDiscriminator byte = 2
	computeUnitPriceDiscriminator byte = 3
)

// PriorityFee picks a fee in micro-lamports per compute unit from recent
// observations: the 75th percentile normally, the 90th under congestion,
// capped at maxFee. Empty samples fall back to minFee.
func PriorityFee(samples []uint64, congested bool, minFee, maxFee uint64) uint64 {
	if len(samples) == 0 {
		return minFee
	}

	sorted := make([]uint64, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	pct := 0.75
	if congested {
		pct = 0.90
	}
	idx := int(float64(len(sorted)-1) * pct)
	fee := sorted[idx]

	if fee < minFee {
		fee = minFee
	}
	if fee > maxFee {
		fee = maxFee
	}
	return fee
}

// SetComputeUnitLimit builds the compute-budget instruction capping compute
// units for the transaction.
func SetComputeUnitLimit(units uint32) solana.Instruction {
	data := make([]byte, 5)
	data[0] = computeUnitLimitDiscriminator
	binary.LittleEndian.PutUint32(data[1:], units)
	return solana.NewInstruction(computeBudgetProgramID, nil, data)
}

// SetComputeUnitPrice builds the compute-budget instruction setting the
// priority fee in micro-lamports per compute unit.
func SetComputeUnitPrice(microLamports uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = computeUnitPriceDiscriminator
	binary.LittleEndian.PutUint64(data[1:], microLamports)
	return solana.NewInstruction(computeBudgetProgramID, nil, data)
}
