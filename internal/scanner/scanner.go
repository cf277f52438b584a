package scanner

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Config controls a scan pass.
type Config struct {
	// BaseMint is the asset every cycle starts and ends in.
	BaseMint string
	// IntermediateMints are the candidate assets for the middle legs.
	IntermediateMints []string
	// ProbeAmount is the notional, in BaseMint's smallest unit, each cycle is
	// quoted with.
	ProbeAmount uint64
	// MaxSlippageBps is passed through to every leg quote.
	MaxSlippageBps uint16
	// GasEstimate is the flat per-execution gas cost estimate in lamports.
	GasEstimate uint64

	// MaxPriceImpactPct is the aggregate price-impact ceiling a cycle must
	// stay under to become a candidate. Zero means 3.0.
	MaxPriceImpactPct float64
	// MinConfidence is the confidence floor for candidates. Zero means 0.7.
	MinConfidence float64

	// MaxConcurrency bounds concurrent cycle evaluations. Zero means 4.
	MaxConcurrency int
	// QuoteRate throttles upstream quote requests. Nil means no throttle.
	QuoteRate *rate.Limiter

	Logger *logrus.Logger
}

// Scanner enumerates triangular cycles over a quote source and scores the
// profitable ones.
type Scanner struct {
	source QuoteSource
	cfg    Config
	log    *logrus.Logger
}

func New(source QuoteSource, cfg Config) (*Scanner, error) {
	if source == nil {
		return nil, fmt.Errorf("scanner: quote source is required")
	}
	if cfg.BaseMint == "" {
		return nil, fmt.Errorf("scanner: base mint is required")
	}
	if cfg.ProbeAmount == 0 {
		return nil, fmt.Errorf("scanner: probe amount must be positive")
	}
	if cfg.MaxPriceImpactPct <= 0 {
		cfg.MaxPriceImpactPct = 3.0
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = 0.7
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Scanner{source: source, cfg: cfg, log: cfg.Logger}, nil
}

// Scan evaluates every ordered cycle base -> B -> C -> base over the
// configured intermediate mints and returns the opportunities sorted by
// estimated profit, best first. Cycles with a missing quote on any leg are
// discarded, never partially evaluated.
func (s *Scanner) Scan(ctx context.Context) ([]*Opportunity, error) {
	type pair struct{ b, c string }
	var pairs []pair
	for _, b := range s.cfg.IntermediateMints {
		if b == s.cfg.BaseMint {
			continue
		}
		for _, c := range s.cfg.IntermediateMints {
			if c == b || c == s.cfg.BaseMint {
				continue
			}
			pairs = append(pairs, pair{b, c})
		}
	}

	var (
		mu    sync.Mutex
		found []*Opportunity
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)

	for _, p := range pairs {
		p := p
		g.Go(func() error {
			opp, err := s.evaluateCycle(gctx, p.b, p.c)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				s.log.WithFields(logrus.Fields{
					"cycle": fmt.Sprintf("%s>%s>%s", s.cfg.BaseMint, p.b, p.c),
				}).WithError(err).Debug("cycle discarded")
				return nil
			}
			if opp != nil {
				mu.Lock()
				found = append(found, opp)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i].EstimatedProfit > found[j].EstimatedProfit
	})
	return found, nil
}

// evaluateCycle quotes the three legs sequentially, feeding each leg's output
// into the next leg's input.
func (s *Scanner) evaluateCycle(ctx context.Context, b, c string) (*Opportunity, error) {
	path := []string{s.cfg.BaseMint, b, c, s.cfg.BaseMint}

	amount := s.cfg.ProbeAmount
	legs := make([]*Quote, 0, 3)
	for i := 0; i < 3; i++ {
		if err := s.throttle(ctx); err != nil {
			return nil, err
		}
		q, err := s.source.Quote(ctx, path[i], path[i+1], amount, s.cfg.MaxSlippageBps)
		if err != nil {
			return nil, fmt.Errorf("leg %d (%s -> %s): %w", i+1, path[i], path[i+1], err)
		}
		legs = append(legs, q)
		amount = q.OutAmount
	}

	cycle := &Cycle{Legs: legs, Path: path}

	profit := int64(cycle.FinalAmount()) - int64(s.cfg.ProbeAmount)
	impact := cycle.AggregatePriceImpactPct()

	opp := &Opportunity{
		Cycle:             cycle,
		EstimatedProfit:   profit,
		RequiredCapital:   s.cfg.ProbeAmount,
		Confidence:        confidence(profit, s.cfg.ProbeAmount, impact, len(legs)),
		PriceImpactPct:    impact,
		EstimatedSlippage: estimatedSlippage(s.cfg.ProbeAmount, s.cfg.MaxSlippageBps),
		EstimatedGasFee:   s.cfg.GasEstimate,
		DiscoveredAt:      time.Now(),
	}

	// Candidate gate: losing, high-impact, or low-confidence cycles never
	// leave the scanner.
	if profit <= 0 || impact > s.cfg.MaxPriceImpactPct || opp.Confidence < s.cfg.MinConfidence {
		s.log.WithFields(logrus.Fields{
			"cycle":      cycle.RouteSignature(),
			"profit":     profit,
			"impact":     impact,
			"confidence": opp.Confidence,
		}).Debug("cycle rejected")
		return nil, nil
	}
	return opp, nil
}

// Run scans on a fixed cadence and delivers each non-empty result set on the
// returned channel until ctx is cancelled. The channel is closed on return.
func (s *Scanner) Run(ctx context.Context, interval time.Duration) <-chan []*Opportunity {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	out := make(chan []*Opportunity)

	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				opps, err := s.Scan(ctx)
				if err != nil {
					s.log.WithError(err).Warn("scan pass failed")
					continue
				}
				if len(opps) == 0 {
					continue
				}
				select {
				case out <- opps:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (s *Scanner) throttle(ctx context.Context) error {
	if s.cfg.QuoteRate == nil {
		return nil
	}
	return s.cfg.QuoteRate.Wait(ctx)
}

// estimatedSlippage is the worst-case shortfall implied by the slippage
// tolerance, in the base asset's smallest unit.
func estimatedSlippage(amount uint64, slippageBps uint16) uint64 {
	return amount * uint64(slippageBps) / 10_000
}
