package realtime

import (
	"context"
	"encoding/json"
	"testing"

	"questphone/core"
)

func TestHubSubscribeBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	id, ch := h.Subscribe(1)

	ev := core.NewStreakContinued("bob", 4, 48)
	h.Broadcast(context.Background(), ev)

	received := <-ch
	if received.UserID != "bob" || received.Type != core.EventStreakContinued {
		t.Fatalf("unexpected event: %+v", received)
	}

	h.Unsubscribe(id)
	_, ok := <-ch
	if ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
}

func TestHubUserScopedSubscription(t *testing.T) {
	h := NewHub()
	id, ch := h.SubscribeUser("alice", 2)
	defer h.Unsubscribe(id)

	h.Broadcast(context.Background(), core.NewPointsAdded("bob", core.MetricXP, 10, 10))
	h.Broadcast(context.Background(), core.NewPointsAdded("alice", core.MetricXP, 5, 5))

	received := <-ch
	if received.UserID != "alice" {
		t.Fatalf("expected alice's event, got %+v", received)
	}
	select {
	case ev := <-ch:
		t.Fatalf("unexpected extra event: %+v", ev)
	default:
	}
}

func TestHubConcurrentBroadcastUnsubscribe(t *testing.T) {
	h := NewHub()
	ids := make([]int, 64)
	for i := range ids {
		ids[i], _ = h.Subscribe(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		ev := core.NewPointsAdded("alice", core.MetricXP, 1, 1)
		for i := 0; i < 1000; i++ {
			h.Broadcast(context.Background(), ev)
		}
	}()
	for _, id := range ids {
		h.Unsubscribe(id)
	}
	<-done
}

func TestMarshalJSON(t *testing.T) {
	ev := core.NewFreePassUsed("alice", "com.example.feed", 2)
	b := MarshalJSON(ev)
	var out core.Event
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.App != "com.example.feed" {
		t.Fatalf("unexpected app: %s", out.App)
	}
}
