package rpc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// An endpoint is flipped unhealthy once its consecutive error score
	// reaches this threshold. Each success decays the score by one; health
	// is only restored once the score has fully decayed back to zero.
	unhealthyThreshold = 3

	defaultProbeTimeout  = 5 * time.Second
	defaultProbeInterval = 60 * time.Second
)

// Endpoint identifies one RPC endpoint in the pool. Immutable.
type Endpoint struct {
	URL      string
	Name     string
	Priority int
}

// EndpointHealth is the registry's view of one endpoint. Mutated only by the
// Pool under its lock; callers receive copies.
type EndpointHealth struct {
	Endpoint      Endpoint  `json:"endpoint"`
	Healthy       bool      `json:"healthy"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	LatencyMs     float64   `json:"latency_ms"`
	ErrorScore    int       `json:"error_score"`
	SuccessCount  uint64    `json:"success_count"`
}

// PoolConfig configures the endpoint health registry.
type PoolConfig struct {
	Endpoints     []Endpoint
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration
	Logger        *logrus.Logger
}

// Pool tracks liveness and latency for a set of RPC endpoints and selects the
// active one. All methods are safe for concurrent use.
type Pool struct {
	mu        sync.Mutex
	endpoints []Endpoint
	health    []*EndpointHealth
	current   int

	probeTimeout  time.Duration
	probeInterval time.Duration
	httpClient    *http.Client
	log           *logrus.Logger
}

// NewPool creates a registry over the given endpoints. All endpoints start
// healthy; the active endpoint is the first one.
func NewPool(cfg PoolConfig) (*Pool, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("rpc: at least one endpoint is required")
	}
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	if cfg.ProbeInterval == 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	health := make([]*EndpointHealth, len(cfg.Endpoints))
	for i, ep := range cfg.Endpoints {
		health[i] = &EndpointHealth{Endpoint: ep, Healthy: true}
	}

	return &Pool{
		endpoints:     cfg.Endpoints,
		health:        health,
		probeTimeout:  cfg.ProbeTimeout,
		probeInterval: cfg.ProbeInterval,
		httpClient: &http.Client{
			Timeout: cfg.ProbeTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		log: cfg.Logger,
	}, nil
}

// Current returns the active endpoint.
func (p *Pool) Current() Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.endpoints[p.current]
}

// Failover marks the active endpoint unhealthy and advances to the next
// healthy endpoint, scanning forward cyclically. If no endpoint is healthy it
// resets to index 0 and logs a degraded-mode signal; it never blocks.
func (p *Pool) Failover() Endpoint {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.health[p.current]
	h.Healthy = false
	h.ErrorScore = unhealthyThreshold

	for i := 1; i <= len(p.endpoints); i++ {
		idx := (p.current + i) % len(p.endpoints)
		if p.health[idx].Healthy {
			p.log.WithFields(logrus.Fields{
				"from": p.endpoints[p.current].Name,
				"to":   p.endpoints[idx].Name,
			}).Warn("rpc endpoint failover")
			p.current = idx
			return p.endpoints[idx]
		}
	}

	p.log.Error("all rpc endpoints unhealthy, degraded mode: resetting to primary")
	p.current = 0
	return p.endpoints[0]
}

// markSuccess records a successful probe or call. The error score decays by
// one per success; health is restored only when the score reaches zero, so a
// single success at the threshold boundary does not flip the endpoint back.
func (p *Pool) markSuccess(ep Endpoint, latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.healthFor(ep)
	if h == nil {
		return
	}
	h.LastCheckedAt = time.Now()
	h.LatencyMs = float64(latency.Microseconds()) / 1000.0
	h.SuccessCount++
	if h.ErrorScore > 0 {
		h.ErrorScore--
	}
	if h.ErrorScore == 0 {
		h.Healthy = true
	}
}

// markFailure records a failed probe or call and flips the endpoint unhealthy
// once the error score crosses the threshold.
func (p *Pool) markFailure(ep Endpoint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h := p.healthFor(ep)
	if h == nil {
		return
	}
	h.LastCheckedAt = time.Now()
	h.ErrorScore++
	if h.ErrorScore >= unhealthyThreshold {
		h.Healthy = false
	}
}

func (p *Pool) healthFor(ep Endpoint) *EndpointHealth {
	for _, h := range p.health {
		if h.Endpoint.URL == ep.URL {
			return h
		}
	}
	return nil
}

// CheckHealth issues a lightweight getHealth probe against one endpoint and
// updates its health record.
func (p *Pool) CheckHealth(ctx context.Context, ep Endpoint) error {
	ctx, cancel := context.WithTimeout(ctx, p.probeTimeout)
	defer cancel()

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"getHealth"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
	if err != nil {
		p.markFailure(ep)
		return fmt.Errorf("health probe request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.markFailure(ep)
		return fmt.Errorf("health probe failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		p.markFailure(ep)
		return fmt.Errorf("health probe status %d", resp.StatusCode)
	}

	p.markSuccess(ep, time.Since(start))
	return nil
}

// CheckAll probes every endpoint concurrently. One endpoint's failure never
// blocks or fails another's probe; errors are reflected in health state.
func (p *Pool) CheckAll(ctx context.Context) {
	p.mu.Lock()
	endpoints := make([]Endpoint, len(p.endpoints))
	copy(endpoints, p.endpoints)
	p.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, ep := range endpoints {
		ep := ep
		g.Go(func() error {
			if err := p.CheckHealth(gctx, ep); err != nil {
				p.log.WithFields(logrus.Fields{
					"endpoint": ep.Name,
					"error":    err.Error(),
				}).Debug("health probe failed")
			}
			return nil
		})
	}
	_ = g.Wait()
}

// RunPeriodicHealthChecks probes all endpoints on the configured interval
// until the context is cancelled.
func (p *Pool) RunPeriodicHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(p.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.CheckAll(ctx)
		}
	}
}

// Snapshot returns a copy of every endpoint's health record.
func (p *Pool) Snapshot() []EndpointHealth {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]EndpointHealth, len(p.health))
	for i, h := range p.health {
		out[i] = *h
	}
	return out
}
