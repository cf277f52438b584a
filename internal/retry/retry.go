package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Config controls the backoff schedule and which errors are worth retrying.
type Config struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64

	// JitterFactor in [0,1]: each delay is adjusted by a uniform offset of
	// +/- (JitterFactor/2) * delay, floored at zero.
	JitterFactor float64

	// RetryablePatterns are matched case-insensitively as substrings of the
	// error text. An error matching none of them stops the loop immediately.
	RetryablePatterns []string

	Logger *logrus.Logger
}

// DefaultConfig returns the retry policy used for RPC and quote traffic.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterFactor:      0.2,
		RetryablePatterns: []string{
			"timeout",
			"timed out",
			"connection reset",
			"connection refused",
			"rate limit",
			"429",
			"too many requests",
			"blockhash not found",
			"node is behind",
			"temporarily unavailable",
		},
	}
}

// Outcome reports what the retry loop did, whether it succeeded or not.
type Outcome struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Success reports whether the operation eventually completed without error.
func (o Outcome) Success() bool { return o.Err == nil }

// Retryable classifies an error against the configured patterns.
func Retryable(cfg Config, err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range cfg.RetryablePatterns {
		if strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Delay returns the un-jittered backoff delay for a 1-based attempt number:
// min(InitialDelay * BackoffMultiplier^(attempt-1), MaxDelay).
func Delay(cfg Config, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(cfg.InitialDelay) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1))
	if max := float64(cfg.MaxDelay); cfg.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

func jittered(cfg Config, base time.Duration) time.Duration {
	if cfg.JitterFactor <= 0 {
		return base
	}
	// Uniform in [-JitterFactor/2, +JitterFactor/2] of the base delay.
	offset := (rand.Float64() - 0.5) * cfg.JitterFactor * float64(base)
	d := time.Duration(float64(base) + offset)
	if d < 0 {
		d = 0
	}
	return d
}

// Do runs op with bounded exponential backoff. Non-retryable errors stop the
// loop immediately; context cancellation is honored between attempts.
func Do(ctx context.Context, cfg Config, op func(context.Context) error) Outcome {
	start := time.Now()
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := jittered(cfg, Delay(cfg, attempt-1))
			if cfg.Logger != nil {
				cfg.Logger.WithFields(logrus.Fields{
					"attempt": attempt,
					"delay":   delay,
				}).Debug("retrying after backoff")
			}
			select {
			case <-ctx.Done():
				return Outcome{Attempts: attempt - 1, Elapsed: time.Since(start), Err: ctx.Err()}
			case <-time.After(delay):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return Outcome{Attempts: attempt, Elapsed: time.Since(start)}
		}
		if !Retryable(cfg, lastErr) {
			return Outcome{Attempts: attempt, Elapsed: time.Since(start), Err: lastErr}
		}
	}

	return Outcome{
		Attempts: cfg.MaxAttempts,
		Elapsed:  time.Since(start),
		Err:      fmt.Errorf("max attempts (%d) exceeded: %w", cfg.MaxAttempts, lastErr),
	}
}

// ErrDeadlineExceeded is returned by DoWithTimeout when the overall deadline
// elapses before the retry loop finishes.
var ErrDeadlineExceeded = fmt.Errorf("retry deadline exceeded")

// DoWithTimeout races Do against a hard deadline. When the deadline wins, the
// caller observes a timeout outcome immediately; the in-flight attempt is
// abandoned (its context is cancelled, its result discarded). Operations must
// therefore only touch state they own, not shared structures, so a straggler
// cannot mutate anything after abandonment.
func DoWithTimeout(ctx context.Context, cfg Config, timeout time.Duration, op func(context.Context) error) Outcome {
	start := time.Now()
	attemptCtx, cancel := context.WithCancel(ctx)

	done := make(chan Outcome, 1)
	go func() {
		done <- Do(attemptCtx, cfg, op)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		cancel()
		return out
	case <-timer.C:
		cancel()
		return Outcome{Elapsed: time.Since(start), Err: fmt.Errorf("%w after %s", ErrDeadlineExceeded, timeout)}
	case <-ctx.Done():
		cancel()
		return Outcome{Elapsed: time.Since(start), Err: ctx.Err()}
	}
}
