package stream

import (
	"context"
	"sync"
	"time"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/rpc"
)

// ChainFeeSource is the RPC slice the overlay wraps.
type ChainFeeSource interface {
	GetRecentFeeSamples(ctx context.Context) ([]uint64, error)
	GetLatestBlockhash(ctx context.Context, commitment string) (rpc.BlockRef, error)
}

// FeeOverlay layers streamed priority-fee observations over the RPC fee
// endpoint. While fresh streamed samples exist the transaction builder uses
// those and skips the RPC round-trip; once the stream goes quiet, sampling
// falls through to the chain again. Blockhash fetches always hit the chain.
type FeeOverlay struct {
	chain ChainFeeSource

	mu      sync.Mutex
	samples []uint64
	lastAt  time.Time

	window   int
	freshFor time.Duration
}

func NewFeeOverlay(chain ChainFeeSource) *FeeOverlay {
	return &FeeOverlay{
		chain:    chain,
		window:   32,
		freshFor: 30 * time.Second,
	}
}

// Run consumes fee updates from the hub until ctx is done or the hub closes
// the subscription.
func (o *FeeOverlay) Run(ctx context.Context, hub *Hub) {
	sub := hub.Subscribe(0)
	defer hub.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-sub.C:
			if !ok {
				return
			}
			o.observe(update)
		}
	}
}

func (o *FeeOverlay) observe(update FeeUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.samples = append(o.samples, update.MicroLamports)
	if len(o.samples) > o.window {
		o.samples = o.samples[len(o.samples)-o.window:]
	}
	o.lastAt = time.Now()
}

// GetRecentFeeSamples returns the streamed window while it is fresh, falling
// back to the chain otherwise.
func (o *FeeOverlay) GetRecentFeeSamples(ctx context.Context) ([]uint64, error) {
	o.mu.Lock()
	fresh := len(o.samples) > 0 && time.Since(o.lastAt) <= o.freshFor
	samples := append([]uint64(nil), o.samples...)
	o.mu.Unlock()

	if fresh {
		return samples, nil
	}
	return o.chain.GetRecentFeeSamples(ctx)
}

// GetLatestBlockhash delegates to the chain.
func (o *FeeOverlay) GetLatestBlockhash(ctx context.Context, commitment string) (rpc.BlockRef, error) {
	return o.chain.GetLatestBlockhash(ctx, commitment)
}
