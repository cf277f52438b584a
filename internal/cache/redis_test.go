package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/models"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/scanner"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // separate DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func testRecord(i int) *models.ExecutionRecord {
	return &models.ExecutionRecord{
		ID:             fmt.Sprintf("exec-%03d", i),
		Fingerprint:    "mintA|mintB|route",
		State:          models.StateConfirmed,
		Path:           []string{"mintA", "mintB", "mintC", "mintA"},
		LoanProvider:   "marginfi-main",
		LoanAmount:     1_000_000,
		ExpectedProfit: int64(i),
		StartedAt:      time.Now().UTC(),
	}
}

func TestStore_RecordAndListRecent(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordExecution(ctx, testRecord(i)))
	}

	recent, err := store.RecentExecutions(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "exec-004", recent[0].ID, "newest first")
	assert.Equal(t, models.StateConfirmed, recent[0].State)
}

func TestStore_WindowIsTrimmed(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < recentExecutionsMax+20; i++ {
		require.NoError(t, store.RecordExecution(ctx, testRecord(i)))
	}

	recent, err := store.RecentExecutions(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, recentExecutionsMax)
}

func TestSubscriber_ReceivesPublishedExecutions(t *testing.T) {
	client := setupTestRedis(t)
	store, err := NewStore(client)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	received := make(chan *models.ExecutionRecord, 1)
	go func() {
		_ = NewSubscriber(client, nil).SubscribeExecutions(ctx, func(rec *models.ExecutionRecord) {
			select {
			case received <- rec:
			default:
			}
		})
	}()

	// Give the subscription a moment to establish before publishing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, store.RecordExecution(ctx, testRecord(42)))

	select {
	case rec := <-received:
		assert.Equal(t, "exec-042", rec.ID)
	case <-ctx.Done():
		t.Fatal("timed out waiting for execution event")
	}
}

func TestStore_OpportunityWindowIsReplaced(t *testing.T) {
	store, err := NewStore(setupTestRedis(t))
	require.NoError(t, err)

	ctx := context.Background()
	batch := func(profits ...int64) []*scanner.Opportunity {
		opps := make([]*scanner.Opportunity, 0, len(profits))
		for _, p := range profits {
			opps = append(opps, &scanner.Opportunity{
				Cycle: &scanner.Cycle{
					Path: []string{"mintA", "mintB", "mintC", "mintA"},
				},
				EstimatedProfit: p,
				RequiredCapital: 1_000_000,
				DiscoveredAt:    time.Now().UTC(),
			})
		}
		return opps
	}

	require.NoError(t, store.RecordOpportunities(ctx, batch(500, 300, 100)))
	require.NoError(t, store.RecordOpportunities(ctx, batch(900, 700)))

	opps, err := store.RecentOpportunities(ctx)
	require.NoError(t, err)
	require.Len(t, opps, 2, "each scan replaces the window, not appends")
	assert.Equal(t, int64(900), opps[0].EstimatedProfit, "best first")
}

func TestNewStore_RequiresClient(t *testing.T) {
	_, err := NewStore(nil)
	assert.Error(t, err)
}
