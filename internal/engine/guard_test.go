package engine

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_SecondAcquireFails(t *testing.T) {
	g := NewGuard()

	release, ok := g.Acquire("fp-1")
	require.True(t, ok)

	_, ok = g.Acquire("fp-1")
	assert.False(t, ok)

	release()
	_, ok = g.Acquire("fp-1")
	assert.True(t, ok, "released fingerprint can be acquired again")
}

func TestGuard_DistinctFingerprintsAreIndependent(t *testing.T) {
	g := NewGuard()

	_, ok := g.Acquire("fp-1")
	require.True(t, ok)
	_, ok = g.Acquire("fp-2")
	assert.True(t, ok)
	assert.Equal(t, 2, g.InFlight())
}

func TestGuard_ReleaseIsIdempotent(t *testing.T) {
	g := NewGuard()

	release, ok := g.Acquire("fp-1")
	require.True(t, ok)

	release()
	release() // second call must not release someone else's claim

	again, ok := g.Acquire("fp-1")
	require.True(t, ok)
	release() // stale release from the first claim
	assert.Equal(t, 1, g.InFlight(), "second claim still held")
	again()
	assert.Equal(t, 0, g.InFlight())
}

func TestGuard_ConcurrentAcquireAdmitsExactlyOne(t *testing.T) {
	g := NewGuard()

	const goroutines = 32
	var admitted atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok := g.Acquire("same-fp"); ok {
				admitted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(1), admitted.Load())
	assert.Equal(t, 1, g.InFlight())
}
