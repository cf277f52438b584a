package stream

import "sync"

// FeeUpdate is one priority-fee observation, in micro-lamports per compute
// unit.
type FeeUpdate struct {
	Slot          uint64 `json:"slot"`
	MicroLamports uint64 `json:"microLamports"`
}

// Subscription is one consumer's view of the feed. Updates arrive on C; when
// the consumer lags, the oldest buffered update is dropped, never the feed.
type Subscription struct {
	C chan FeeUpdate
}

// Hub fans fee updates out to subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a consumer with the given buffer size.
func (h *Hub) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{C: make(chan FeeUpdate, buffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Unsubscribe removes the consumer and closes its channel. It is synchronous:
// once it returns, no further update will be delivered on sub.C.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.C)
}

// Broadcast delivers an update to every subscriber without blocking: a full
// buffer drops its oldest entry first.
func (h *Hub) Broadcast(u FeeUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs {
		select {
		case sub.C <- u:
		default:
			select {
			case <-sub.C:
			default:
			}
			select {
			case sub.C <- u:
			default:
			}
		}
	}
}

// Subscribers returns the current consumer count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
