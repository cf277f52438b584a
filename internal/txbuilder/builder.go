package txbuilder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/rpc"
)

// ChainInfo is the slice of the RPC client the builder needs.
type ChainInfo interface {
	GetRecentFeeSamples(ctx context.Context) ([]uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment string) (rpc.BlockRef, error)
}

// CongestionSignal reports whether the network is currently congested, which
// shifts the priority fee percentile upward.
type CongestionSignal interface {
	HighCongestion(ctx context.Context) bool
}

// Config for the transaction builder.
type Config struct {
	Payer solana.PublicKey

	ComputeUnitLimit uint32
	MinPriorityFee   uint64 // micro-lamports per compute unit
	MaxPriorityFee   uint64

	// StaleAfter is how long a built transaction stays usable. Zero means 60s.
	StaleAfter time.Duration
	Commitment string

	Logger *logrus.Logger
}

// Builder assembles unsigned transactions: compute budget first, then the
// caller's instructions, stamped with a fresh blockhash, a monotonic nonce,
// and a content hash.
type Builder struct {
	chain      ChainInfo
	congestion CongestionSignal
	cfg        Config
	nonce      atomic.Uint64
	log        *logrus.Logger
}

func NewBuilder(chain ChainInfo, congestion CongestionSignal, cfg Config) (*Builder, error) {
	if chain == nil {
		return nil, fmt.Errorf("txbuilder: chain info is required")
	}
	if cfg.Payer.IsZero() {
		return nil, fmt.Errorf("txbuilder: payer is required")
	}
	if cfg.ComputeUnitLimit == 0 {
		cfg.ComputeUnitLimit = 600_000
	}
	if cfg.MaxPriorityFee == 0 {
		cfg.MaxPriorityFee = 1_000_000
	}
	if cfg.StaleAfter == 0 {
		cfg.StaleAfter = 60 * time.Second
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	b := &Builder{chain: chain, congestion: congestion, cfg: cfg, log: cfg.Logger}
	// Seed from the wall clock so nonces stay unique across restarts.
	b.nonce.Store(uint64(time.Now().UnixNano()))
	return b, nil
}

// BuiltTransaction is an immutable, unsigned transaction plus the metadata
// the rest of the pipeline keys on.
type BuiltTransaction struct {
	Payer                    solana.PublicKey
	Instructions             []solana.Instruction
	Blockhash                solana.Hash
	LastValidBlockHeight     uint64
	Nonce                    uint64
	ContentHash              string
	PriorityFeeMicroLamports uint64
	ComputeUnitLimit         uint32
	Summary                  string
	BuiltAt                  time.Time

	staleAfter time.Duration
}

// Stale reports whether the transaction has outlived its usable window and
// must be rebuilt rather than signed.
func (bt *BuiltTransaction) Stale() bool {
	window := bt.staleAfter
	if window == 0 {
		window = 60 * time.Second
	}
	return time.Since(bt.BuiltAt) > window
}

// Transaction assembles the unsigned solana transaction.
func (bt *BuiltTransaction) Transaction() (*solana.Transaction, error) {
	tx, err := solana.NewTransaction(bt.Instructions, bt.Blockhash, solana.TransactionPayer(bt.Payer))
	if err != nil {
		return nil, fmt.Errorf("txbuilder: assemble transaction: %w", err)
	}
	return tx, nil
}

// Build assembles an unsigned transaction around the given instructions. Fee
// sampling failures degrade to the configured minimum fee; a blockhash
// failure is fatal because the transaction could never land.
func (b *Builder) Build(ctx context.Context, instructions []solana.Instruction, summary string) (*BuiltTransaction, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("txbuilder: no instructions")
	}

	samples, err := b.chain.GetRecentFeeSamples(ctx)
	if err != nil {
		b.log.WithError(err).Warn("fee sampling failed, using minimum priority fee")
		samples = nil
	}

	congested := false
	if b.congestion != nil {
		congested = b.congestion.HighCongestion(ctx)
	}
	fee := PriorityFee(samples, congested, b.cfg.MinPriorityFee, b.cfg.MaxPriorityFee)

	ref, err := b.chain.GetLatestBlockhash(ctx, b.cfg.Commitment)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: fetch blockhash: %w", err)
	}

	all := make([]solana.Instruction, 0, len(instructions)+2)
	all = append(all, SetComputeUnitLimit(b.cfg.ComputeUnitLimit))
	all = append(all, SetComputeUnitPrice(fee))
	all = append(all, instructions...)

	nonce := b.nonce.Add(1)
	hash, err := contentHash(b.cfg.Payer, all, nonce)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: content hash: %w", err)
	}

	bt := &BuiltTransaction{
		Payer:                    b.cfg.Payer,
		Instructions:             all,
		Blockhash:                ref.Hash,
		LastValidBlockHeight:     ref.ValidUntilHeight,
		Nonce:                    nonce,
		ContentHash:              hash,
		PriorityFeeMicroLamports: fee,
		ComputeUnitLimit:         b.cfg.ComputeUnitLimit,
		Summary:                  summary,
		BuiltAt:                  time.Now(),
		staleAfter:               b.cfg.StaleAfter,
	}

	b.log.WithFields(logrus.Fields{
		"nonce":        nonce,
		"content_hash": hash[:16],
		"priority_fee": fee,
		"congested":    congested,
		"instructions": len(all),
	}).Debug("transaction built")

	return bt, nil
}

// contentHash binds payer, instruction set, and nonce into a hex digest used
// for idempotent replay detection downstream.
func contentHash(payer solana.PublicKey, instructions []solana.Instruction, nonce uint64) (string, error) {
	h := sha256.New()
	h.Write(payer.Bytes())

	for _, ix := range instructions {
		h.Write(ix.ProgramID().Bytes())
		data, err := ix.Data()
		if err != nil {
			return "", fmt.Errorf("instruction data: %w", err)
		}
		h.Write(data)
		for _, acc := range ix.Accounts() {
			h.Write(acc.PublicKey.Bytes())
			flags := byte(0)
			if acc.IsSigner {
				flags |= 1
			}
			if acc.IsWritable {
				flags |= 2
			}
			h.Write([]byte{flags})
		}
	}

	var nb [8]byte
	binary.LittleEndian.PutUint64(nb[:], nonce)
	h.Write(nb[:])

	return hex.EncodeToString(h.Sum(nil)), nil
}
