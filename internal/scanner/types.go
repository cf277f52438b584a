package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// QuoteSource is the boundary to an external swap aggregator. Implementations
// return quotes for a single hop and can render a quote into executable
// instructions.
type QuoteSource interface {
	Quote(ctx context.Context, inputMint, outputMint string, amount uint64, maxSlippageBps uint16) (*Quote, error)
	BuildSwapInstructions(ctx context.Context, quote *Quote, signer solana.PublicKey) ([]solana.Instruction, error)
}

// RouteLeg is one hop inside a single quote's route plan.
type RouteLeg struct {
	AMMKey     string
	Label      string
	InputMint  string
	OutputMint string
	InAmount   uint64
	OutAmount  uint64
}

// Quote is an immutable swap quote for one cycle leg. Amounts are in the
// token's smallest unit.
type Quote struct {
	InputMint      string
	OutputMint     string
	InAmount       uint64
	OutAmount      uint64
	PriceImpactPct float64
	RouteLegs      []RouteLeg

	// Raw carries the venue's original quote payload so instructions can be
	// built later without re-quoting.
	Raw json.RawMessage
}

// Cycle is a closed sequence of quotes: each leg's output feeds the next
// leg's input and the path returns to the starting asset.
type Cycle struct {
	Legs []*Quote
	Path []string // len(Path) == len(Legs)+1, Path[0] == Path[last]
}

// RouteSignature is a stable discriminator for the cycle's route: the asset
// path plus each leg's AMM keys. Deliberately excludes any timestamp so that
// logically identical opportunities share a fingerprint.
func (c *Cycle) RouteSignature() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(c.Path, ">"))
	for _, leg := range c.Legs {
		for _, rl := range leg.RouteLegs {
			sb.WriteByte('#')
			sb.WriteString(rl.AMMKey)
		}
	}
	return sb.String()
}

// AggregatePriceImpactPct sums the per-leg price impact.
func (c *Cycle) AggregatePriceImpactPct() float64 {
	total := 0.0
	for _, leg := range c.Legs {
		total += leg.PriceImpactPct
	}
	return total
}

// FinalAmount is the amount of the starting asset produced by the last leg.
func (c *Cycle) FinalAmount() uint64 {
	if len(c.Legs) == 0 {
		return 0
	}
	return c.Legs[len(c.Legs)-1].OutAmount
}

// Opportunity is a scored candidate cycle. Immutable once created.
type Opportunity struct {
	Cycle             *Cycle
	EstimatedProfit   int64 // in the starting asset's smallest unit
	RequiredCapital   uint64
	Confidence        float64 // in [0,1]
	PriceImpactPct    float64
	EstimatedSlippage uint64
	EstimatedGasFee   uint64
	DiscoveredAt      time.Time
}

// Fingerprint identifies the opportunity for reentrancy deduplication:
// first-leg input and output assets plus the route signature.
func (o *Opportunity) Fingerprint() string {
	if o.Cycle == nil || len(o.Cycle.Legs) == 0 {
		return ""
	}
	first := o.Cycle.Legs[0]
	return fmt.Sprintf("%s|%s|%s", first.InputMint, first.OutputMint, o.Cycle.RouteSignature())
}
