package engine

import (
	"context"
	"testing"
	"time"

	"questphone/core"
)

func TestEventBusSync(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	bus.Subscribe(core.EventPointsAdded, func(ctx context.Context, e core.Event) { count++ })
	bus.Publish(context.Background(), core.NewPointsAdded(core.UserID("u"), core.MetricXP, 1, 1))
	if count != 1 {
		t.Fatalf("want 1 got %d", count)
	}
}

func TestEventBusAsync(t *testing.T) {
	bus := NewEventBus(DispatchAsync)
	defer bus.Close()
	ch := make(chan struct{})
	bus.Subscribe(core.EventFreePassUsed, func(ctx context.Context, e core.Event) { close(ch) })
	bus.Publish(context.Background(), core.NewFreePassUsed(core.UserID("u"), core.AppID("com.example.feed"), 2))
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("timeout")
	}
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(DispatchSync)
	count := 0
	off := bus.Subscribe(core.EventStreakBroken, func(ctx context.Context, e core.Event) { count++ })
	off()
	bus.Publish(context.Background(), core.NewStreakBroken(core.UserID("u"), 3))
	if count != 0 {
		t.Fatalf("handler fired after unsubscribe: %d", count)
	}
}
