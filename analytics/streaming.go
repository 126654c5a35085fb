package analytics

import (
	"sync"

	"questphone/core"
)

// StreamSubscriber receives live events, e.g. a dashboard websocket.
type StreamSubscriber interface {
	OnStreamEvent(e core.Event)
	Close() error
}

// StreamPublisher fans live events out to subscribers and keeps a short
// ring of recent events for dashboard bootstrapping.
type StreamPublisher struct {
	mu          sync.RWMutex
	subscribers map[string]StreamSubscriber
	recent      []core.Event
	maxRecent   int
}

func NewStreamPublisher(maxRecent int) *StreamPublisher {
	if maxRecent <= 0 {
		maxRecent = 100
	}
	return &StreamPublisher{
		subscribers: map[string]StreamSubscriber{},
		maxRecent:   maxRecent,
	}
}

func (sp *StreamPublisher) Subscribe(id string, sub StreamSubscriber) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.subscribers[id] = sub
}

func (sp *StreamPublisher) Unsubscribe(id string) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sub, ok := sp.subscribers[id]; ok {
		_ = sub.Close()
		delete(sp.subscribers, id)
	}
}

// OnEvent implements Hook.
func (sp *StreamPublisher) OnEvent(e core.Event) {
	sp.mu.Lock()
	sp.recent = append(sp.recent, e)
	if len(sp.recent) > sp.maxRecent {
		sp.recent = sp.recent[len(sp.recent)-sp.maxRecent:]
	}
	subs := make([]StreamSubscriber, 0, len(sp.subscribers))
	for _, sub := range sp.subscribers {
		subs = append(subs, sub)
	}
	sp.mu.Unlock()

	for _, sub := range subs {
		func(s StreamSubscriber) {
			defer func() {
				// a panicking subscriber must not take the publisher down
				_ = recover()
			}()
			s.OnStreamEvent(e)
		}(sub)
	}
}

// Recent returns a copy of the buffered event tail, oldest first.
func (sp *StreamPublisher) Recent() []core.Event {
	sp.mu.RLock()
	defer sp.mu.RUnlock()
	out := make([]core.Event, len(sp.recent))
	copy(out, sp.recent)
	return out
}
