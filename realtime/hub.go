package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"questphone/core"
)

// Hub is a pub/sub fan-out for pushing events to connected launchers. A
// subscription may be scoped to one user; the home screen only cares about
// its own passes and streak.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	mu     sync.Mutex
	ch     chan core.Event
	user   core.UserID // empty = firehose
	closed bool
}

// send delivers without blocking. The closed flag is checked under the
// subscription lock so a concurrent Unsubscribe cannot close the channel
// mid-send.
func (s *subscription) send(ev core.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
	default: /* drop if full */
	}
}

func (s *subscription) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func NewHub() *Hub { return &Hub{subs: map[int]*subscription{}} }

// Subscribe registers a firehose subscriber receiving every event.
func (h *Hub) Subscribe(buffer int) (int, <-chan core.Event) {
	return h.subscribe("", buffer)
}

// SubscribeUser registers a subscriber receiving only one user's events.
func (h *Hub) SubscribeUser(user core.UserID, buffer int) (int, <-chan core.Event) {
	return h.subscribe(user, buffer)
}

func (h *Hub) subscribe(user core.UserID, buffer int) (int, <-chan core.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	sub := &subscription{ch: make(chan core.Event, buffer), user: user}
	h.subs[id] = sub
	return id, sub.ch
}

func (h *Hub) Unsubscribe(id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[id]; ok {
		delete(h.subs, id)
		sub.shutdown()
	}
}

func (h *Hub) Broadcast(_ context.Context, ev core.Event) {
	h.mu.RLock()
	// copy to avoid holding lock during send
	receivers := make([]*subscription, 0, len(h.subs))
	for _, sub := range h.subs {
		if sub.user == "" || sub.user == ev.UserID {
			receivers = append(receivers, sub)
		}
	}
	h.mu.RUnlock()
	for _, sub := range receivers {
		sub.send(ev)
	}
}

// MarshalJSON is a helper to convert events to JSON bytes for WebSocket/SSE.
func MarshalJSON(ev core.Event) []byte {
	b, _ := json.Marshal(ev)
	return b
}
