package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Feed consumes a websocket stream of priority-fee updates and fans them out
// through its Hub. The connection is re-established with backoff until the
// context is cancelled.
type Feed struct {
	*Hub

	url string
	log *logrus.Logger
}

func NewFeed(url string, log *logrus.Logger) *Feed {
	if log == nil {
		log = logrus.New()
	}
	return &Feed{Hub: NewHub(), url: url, log: log}
}

type feeNotification struct {
	Method string `json:"method"`
	Params struct {
		Result FeeUpdate `json:"result"`
	} `json:"params"`
}

// Run connects and pumps updates until ctx is done. Connection failures back
// off up to 30s and never kill the loop.
func (f *Feed) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := f.pump(ctx); err != nil && ctx.Err() == nil {
			f.log.WithError(err).Warn("fee feed disconnected, reconnecting")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (f *Feed) pump(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	subscribe := map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "prioritizationFeeSubscribe",
		"params":  []any{map[string]any{"commitment": "processed"}},
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	f.log.WithField("url", f.url).Info("fee feed connected")

	// Close the socket when the context ends so ReadJSON unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var msg feeNotification
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if msg.Method == "" {
			// Subscription acknowledgement.
			continue
		}
		f.Broadcast(msg.Params.Result)
	}
}

// FeeSampler is the RPC slice the polling fallback needs.
type FeeSampler interface {
	GetRecentFeeSamples(ctx context.Context) ([]uint64, error)
}

// Poller feeds the hub from periodic RPC fee sampling, for deployments
// without a streaming fee source.
type Poller struct {
	*Hub

	sampler  FeeSampler
	interval time.Duration
	log      *logrus.Logger
}

func NewPoller(sampler FeeSampler, interval time.Duration, log *logrus.Logger) *Poller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if log == nil {
		log = logrus.New()
	}
	return &Poller{Hub: NewHub(), sampler: sampler, interval: interval, log: log}
}

// Run polls until ctx is done, broadcasting the highest observed fee of each
// sample batch.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			samples, err := p.sampler.GetRecentFeeSamples(ctx)
			if err != nil {
				p.log.WithError(err).Debug("fee sampling failed")
				continue
			}
			var max uint64
			for _, s := range samples {
				if s > max {
					max = s
				}
			}
			p.Broadcast(FeeUpdate{MicroLamports: max})
		}
	}
}
