package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/models"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/scanner"
)

const (
	recentExecutionsKey = "arb:executions:recent"
	recentExecutionsMax = 100

	executionsChannel = "arb:events:executions"

	recentOpportunitiesKey = "arb:opportunities:recent"
	recentOpportunitiesMax = 50
	opportunityTTL         = 5 * time.Minute
)

// Store keeps a rolling window of recent executions in Redis and broadcasts
// each one to subscribers.
type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return &Store{client: client}, nil
}

// RecordExecution prepends the record to the rolling window, trims the
// window, and publishes the record, all in one pipeline.
func (s *Store) RecordExecution(ctx context.Context, rec *models.ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, recentExecutionsKey, data)
	pipe.LTrim(ctx, recentExecutionsKey, 0, recentExecutionsMax-1)
	pipe.Publish(ctx, executionsChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

// RecentExecutions returns up to limit most recent records, newest first.
func (s *Store) RecentExecutions(ctx context.Context, limit int64) ([]*models.ExecutionRecord, error) {
	if limit <= 0 || limit > recentExecutionsMax {
		limit = recentExecutionsMax
	}

	vals, err := s.client.LRange(ctx, recentExecutionsKey, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent executions: %w", err)
	}

	out := make([]*models.ExecutionRecord, 0, len(vals))
	for _, v := range vals {
		var rec models.ExecutionRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		out = append(out, &rec)
	}
	return out, nil
}

// RecordOpportunities replaces the recent-opportunity window with the latest
// scan results. The window expires on its own when scanning stops, so stale
// opportunities never linger.
func (s *Store) RecordOpportunities(ctx context.Context, opps []*scanner.Opportunity) error {
	if len(opps) == 0 {
		return nil
	}
	if len(opps) > recentOpportunitiesMax {
		opps = opps[:recentOpportunitiesMax]
	}

	vals := make([]interface{}, 0, len(opps))
	for _, opp := range opps {
		data, err := json.Marshal(opp)
		if err != nil {
			return fmt.Errorf("marshal opportunity: %w", err)
		}
		vals = append(vals, data)
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, recentOpportunitiesKey)
	pipe.RPush(ctx, recentOpportunitiesKey, vals...)
	pipe.Expire(ctx, recentOpportunitiesKey, opportunityTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record opportunities: %w", err)
	}
	return nil
}

// RecentOpportunities returns the latest scan results, best first, or an
// empty slice when the window has expired.
func (s *Store) RecentOpportunities(ctx context.Context) ([]*scanner.Opportunity, error) {
	vals, err := s.client.LRange(ctx, recentOpportunitiesKey, 0, recentOpportunitiesMax-1).Result()
	if err != nil {
		return nil, fmt.Errorf("list recent opportunities: %w", err)
	}

	out := make([]*scanner.Opportunity, 0, len(vals))
	for _, v := range vals {
		var opp scanner.Opportunity
		if err := json.Unmarshal([]byte(v), &opp); err != nil {
			continue
		}
		out = append(out, &opp)
	}
	return out, nil
}
