package flashloan

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Provider is one flash-loan venue. Implementations encode the venue's borrow
// and repay instructions; everything else about a venue is data.
type Provider interface {
	Name() string
	// MaxLoan is the largest loan the venue will extend, in the asset's
	// smallest unit.
	MaxLoan() uint64
	// FeeBps is the venue's flash-loan fee in basis points.
	FeeBps() uint16
	ProgramID() solana.PublicKey

	EncodeBorrow(borrower solana.PublicKey, amount uint64) (solana.Instruction, error)
	EncodeRepay(borrower solana.PublicKey, amount uint64) (solana.Instruction, error)
}

// Instruction discriminators shared by the supported venues. Payload layout is
// a 1-byte discriminator followed by the amount as little-endian u64.
const (
	ixBorrow byte = 10
	ixRepay  byte = 11
)

func encodeAmountIx(program solana.PublicKey, discriminator byte, borrower solana.PublicKey, amount uint64) solana.Instruction {
	data := make([]byte, 9)
	data[0] = discriminator
	binary.LittleEndian.PutUint64(data[1:], amount)

	accounts := []*solana.AccountMeta{
		{PublicKey: borrower, IsSigner: true, IsWritable: true},
	}
	return solana.NewInstruction(program, accounts, data)
}

// venueProvider is the catalog-backed implementation for the supported
// venues. The venue set is closed: unknown names are rejected at load time.
type venueProvider struct {
	name      string
	maxLoan   uint64
	feeBps    uint16
	programID solana.PublicKey
}

func (v *venueProvider) Name() string                { return v.name }
func (v *venueProvider) MaxLoan() uint64             { return v.maxLoan }
func (v *venueProvider) FeeBps() uint16              { return v.feeBps }
func (v *venueProvider) ProgramID() solana.PublicKey { return v.programID }

func (v *venueProvider) EncodeBorrow(borrower solana.PublicKey, amount uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("flashloan: borrow amount must be positive")
	}
	if amount > v.maxLoan {
		return nil, fmt.Errorf("flashloan: %s max loan is %d, requested %d", v.name, v.maxLoan, amount)
	}
	return encodeAmountIx(v.programID, ixBorrow, borrower, amount), nil
}

func (v *venueProvider) EncodeRepay(borrower solana.PublicKey, amount uint64) (solana.Instruction, error) {
	if amount == 0 {
		return nil, fmt.Errorf("flashloan: repay amount must be positive")
	}
	return encodeAmountIx(v.programID, ixRepay, borrower, amount), nil
}

// Select picks the provider for a loan of the given size: among providers
// whose capacity covers the amount, the lowest fee wins; capacity breaks
// ties. Returns nil when no provider can serve the amount.
func Select(providers []Provider, amount uint64) Provider {
	var best Provider
	for _, p := range providers {
		if p.MaxLoan() < amount {
			continue
		}
		if best == nil ||
			p.FeeBps() < best.FeeBps() ||
			(p.FeeBps() == best.FeeBps() && p.MaxLoan() > best.MaxLoan()) {
			best = p
		}
	}
	return best
}
