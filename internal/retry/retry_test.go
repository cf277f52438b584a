package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:       4,
		InitialDelay:      time.Millisecond,
		MaxDelay:          4 * time.Millisecond,
		BackoffMultiplier: 2.0,
		RetryablePatterns: []string{"timeout", "rate limit"},
	}
}

func TestDelay_Sequence(t *testing.T) {
	cfg := Config{
		InitialDelay:      1000 * time.Millisecond,
		MaxDelay:          10000 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	expected := []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		8000 * time.Millisecond,
		10000 * time.Millisecond,
		10000 * time.Millisecond,
	}

	prev := time.Duration(0)
	for i, want := range expected {
		got := Delay(cfg, i+1)
		assert.Equal(t, want, got, "attempt %d", i+1)
		assert.GreaterOrEqual(t, got, prev, "delay sequence must be non-decreasing")
		prev = got
	}
}

func TestJittered_Bounds(t *testing.T) {
	cfg := Config{JitterFactor: 0.5}
	base := 1000 * time.Millisecond

	for i := 0; i < 200; i++ {
		d := jittered(cfg, base)
		assert.GreaterOrEqual(t, d, 750*time.Millisecond)
		assert.LessOrEqual(t, d, 1250*time.Millisecond)
	}
}

func TestDo_SucceedsAfterRetryableFailures(t *testing.T) {
	calls := 0
	out := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("request timeout")
		}
		return nil
	})

	require.NoError(t, out.Err)
	assert.True(t, out.Success())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 3, calls)
}

func TestDo_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	out := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("invalid mint address")
	})

	require.Error(t, out.Err)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	out := Do(context.Background(), fastConfig(), func(ctx context.Context) error {
		calls++
		return errors.New("rate limit hit")
	})

	require.Error(t, out.Err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, 4, out.Attempts)
	assert.Contains(t, out.Err.Error(), "max attempts")
}

func TestRetryable_CaseInsensitiveSubstring(t *testing.T) {
	cfg := Config{RetryablePatterns: []string{"Connection Reset", "429"}}

	assert.True(t, Retryable(cfg, errors.New("read: CONNECTION RESET by peer")))
	assert.True(t, Retryable(cfg, fmt.Errorf("http status 429")))
	assert.False(t, Retryable(cfg, errors.New("signature verification failure")))
	assert.False(t, Retryable(cfg, nil))
}

func TestDoWithTimeout_DeadlineWins(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryablePatterns = []string{"slow"}
	cfg.MaxAttempts = 100

	started := time.Now()
	out := DoWithTimeout(context.Background(), cfg, 20*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return errors.New("slow")
		}
	})

	require.Error(t, out.Err)
	assert.ErrorIs(t, out.Err, ErrDeadlineExceeded)
	assert.Less(t, time.Since(started), 500*time.Millisecond)
}

func TestDoWithTimeout_OperationWins(t *testing.T) {
	out := DoWithTimeout(context.Background(), fastConfig(), time.Second, func(ctx context.Context) error {
		return nil
	})

	require.NoError(t, out.Err)
	assert.Equal(t, 1, out.Attempts)
}
