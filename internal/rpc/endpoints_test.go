package rpc

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func testPool(t *testing.T, urls ...string) *Pool {
	t.Helper()

	endpoints := make([]Endpoint, len(urls))
	for i, u := range urls {
		endpoints[i] = Endpoint{URL: u, Name: u, Priority: i}
	}

	pool, err := NewPool(PoolConfig{Endpoints: endpoints, Logger: quietLogger()})
	require.NoError(t, err)
	return pool
}

func TestNewPool_RequiresEndpoints(t *testing.T) {
	_, err := NewPool(PoolConfig{})
	assert.Error(t, err)
}

func TestPool_ErrorScoreThreshold(t *testing.T) {
	pool := testPool(t, "http://a", "http://b")
	ep := pool.Current()

	pool.markFailure(ep)
	pool.markFailure(ep)
	assert.True(t, pool.Snapshot()[0].Healthy, "two failures stay below the threshold")

	pool.markFailure(ep)
	snap := pool.Snapshot()[0]
	assert.False(t, snap.Healthy)
	assert.Equal(t, 3, snap.ErrorScore)
}

func TestPool_DecayDoesNotInstantlyRestoreHealth(t *testing.T) {
	pool := testPool(t, "http://a", "http://b")
	ep := pool.Current()

	for i := 0; i < 3; i++ {
		pool.markFailure(ep)
	}
	require.False(t, pool.Snapshot()[0].Healthy)

	// One success decays the score but health is not restored at the
	// threshold boundary.
	pool.markSuccess(ep, 10*time.Millisecond)
	snap := pool.Snapshot()[0]
	assert.Equal(t, 2, snap.ErrorScore)
	assert.False(t, snap.Healthy)

	// Full decay confirms health again.
	pool.markSuccess(ep, 10*time.Millisecond)
	pool.markSuccess(ep, 10*time.Millisecond)
	snap = pool.Snapshot()[0]
	assert.Equal(t, 0, snap.ErrorScore)
	assert.True(t, snap.Healthy)
	assert.Equal(t, uint64(3), snap.SuccessCount)
}

func TestPool_FailoverAdvancesCyclically(t *testing.T) {
	pool := testPool(t, "http://a", "http://b", "http://c")

	assert.Equal(t, "http://a", pool.Current().URL)

	next := pool.Failover()
	assert.Equal(t, "http://b", next.URL)
	assert.Equal(t, "http://b", pool.Current().URL)
	assert.False(t, pool.Snapshot()[0].Healthy, "failed-over endpoint is marked unhealthy")

	next = pool.Failover()
	assert.Equal(t, "http://c", next.URL)
}

func TestPool_FailoverDegradedModeResetsToPrimary(t *testing.T) {
	pool := testPool(t, "http://a", "http://b")

	pool.Failover() // a -> b, a unhealthy
	next := pool.Failover()

	// No healthy endpoint remains; never blocks, resets to index 0.
	assert.Equal(t, "http://a", next.URL)
	assert.Equal(t, "http://a", pool.Current().URL)
}

func TestPool_CheckHealthProbe(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","result":"ok","id":1}`))
	}))
	defer healthy.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	pool := testPool(t, healthy.URL, broken.URL)
	ctx := context.Background()

	require.NoError(t, pool.CheckHealth(ctx, pool.endpoints[0]))
	assert.Error(t, pool.CheckHealth(ctx, pool.endpoints[1]))

	snap := pool.Snapshot()
	assert.True(t, snap[0].Healthy)
	assert.Greater(t, snap[0].LatencyMs, 0.0)
	assert.Equal(t, 1, snap[1].ErrorScore)
}

func TestPool_CheckAllProbesConcurrently(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"jsonrpc":"2.0","result":"ok","id":1}`))
	}))
	defer slow.Close()

	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"jsonrpc":"2.0","result":"ok","id":1}`))
	}))
	defer fast.Close()

	pool := testPool(t, slow.URL, fast.URL)

	start := time.Now()
	pool.CheckAll(context.Background())
	elapsed := time.Since(start)

	// Fan-out means total time is bounded by the slowest probe, not the sum.
	assert.Less(t, elapsed, 200*time.Millisecond)
	for _, h := range pool.Snapshot() {
		assert.True(t, h.Healthy)
		assert.Equal(t, uint64(1), h.SuccessCount)
	}
}
