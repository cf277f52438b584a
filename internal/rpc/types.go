package rpc

import "github.com/gagliardetto/solana-go"

// RPCError represents a JSON-RPC error response
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// BlockRef is the recent block reference a transaction is anchored to.
type BlockRef struct {
	Hash             solana.Hash
	ValidUntilHeight uint64
}

// FeeSample is one recent prioritization fee observation.
type FeeSample struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

// SimulationResult contains the outcome of simulateTransaction.
type SimulationResult struct {
	Success       bool
	Err           string
	Logs          []string
	UnitsConsumed uint64
}

// SendOptions configures sendTransaction behavior.
type SendOptions struct {
	SkipPreflight       bool
	PreflightCommitment string
	MaxRetries          *int
}

// DefaultSendOptions returns recommended send settings. Preflight is skipped
// because the pipeline always simulates explicitly before signing.
func DefaultSendOptions() SendOptions {
	maxRetries := 3
	return SendOptions{
		SkipPreflight:       true,
		PreflightCommitment: "processed",
		MaxRetries:          &maxRetries,
	}
}
