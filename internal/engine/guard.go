package engine

import "sync"

// Guard prevents two concurrent executions of the same opportunity. Callers
// acquire by fingerprint and release through the returned function, which is
// safe to call more than once.
type Guard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{inFlight: make(map[string]struct{})}
}

// Acquire claims the fingerprint. The second return is false when an
// execution for the same fingerprint is already in flight; in that case the
// release function is a no-op.
func (g *Guard) Acquire(fingerprint string) (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[fingerprint]; busy {
		return func() {}, false
	}
	g.inFlight[fingerprint] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.inFlight, fingerprint)
			g.mu.Unlock()
		})
	}, true
}

// InFlight returns the number of fingerprints currently claimed.
func (g *Guard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
