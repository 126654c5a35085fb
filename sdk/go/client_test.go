package sdk

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	mem "questphone/adapters/memory"
	"questphone/analytics"
	"questphone/api/httpapi"
	"questphone/core"
	"questphone/engine"
	"questphone/realtime"
)

func TestClient_GateFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(srv.URL+"/api", WithAPIKey("k1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()

	if err := client.SetDistraction(ctx, "alice", "com.timesink", true); err != nil {
		t.Fatalf("set distraction: %v", err)
	}

	decision, err := client.Tap(ctx, "alice", "com.timesink")
	if err != nil || decision != DecisionPaywall {
		t.Fatalf("tap got %q err=%v", decision, err)
	}

	grant, err := client.Passes(ctx, "alice")
	if err != nil {
		t.Fatalf("passes: %v", err)
	}
	if grant.Remaining < 1 {
		t.Fatalf("expected at least one pass, got %d", grant.Remaining)
	}

	deadline, err := client.UseFreePass(ctx, "alice", "com.timesink")
	if err != nil {
		t.Fatalf("use pass: %v", err)
	}
	if !deadline.After(time.Now()) {
		t.Fatalf("expected future deadline, got %v", deadline)
	}

	decision, err = client.Tap(ctx, "alice", "com.timesink")
	if err != nil || decision != DecisionLaunch {
		t.Fatalf("tap after pass got %q err=%v", decision, err)
	}
}

func TestClient_StreakAndState(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()

	progress, err := client.CompleteStreak(ctx, "bob")
	if err != nil {
		t.Fatalf("complete streak: %v", err)
	}
	if !progress.Counted || progress.Streak != 1 {
		t.Fatalf("unexpected progress: %+v", progress)
	}

	outcome, err := client.EvaluateStreak(ctx, "bob")
	if err != nil {
		t.Fatalf("evaluate streak: %v", err)
	}
	if outcome.Kind != core.StreakContinued {
		t.Fatalf("expected continued outcome, got %+v", outcome)
	}

	state, err := client.GetUser(ctx, "bob")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if state.UserID != "bob" || state.Streak.Current != 1 {
		t.Fatalf("unexpected state: %+v", state)
	}
	if state.Points["xp"] != core.XPFromStreak(1) {
		t.Fatalf("expected streak xp, got %d", state.Points["xp"])
	}

	health, err := client.Health(ctx)
	if err != nil || health.Status != "healthy" {
		t.Fatalf("health: %+v err=%v", health, err)
	}
}

func TestClient_APIErrors(t *testing.T) {
	srv, _ := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx := context.Background()

	// Unlock on an app never marked as a distraction.
	_, err = client.UnlockWithCoins(ctx, "carol", "com.other", 10)
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != "invalid_input" {
		t.Fatalf("unexpected code: %+v", apiErr)
	}
}

func TestClient_SubscribeEvents(t *testing.T) {
	srv, hub := newTestServer(t)
	defer srv.Close()

	client, err := NewClient(srv.URL + "/api")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	events, err := client.SubscribeEvents(ctx, "alice")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// ensure subscriber goroutine is ready
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(context.Background(), core.NewStreakContinued("alice", 3, 31))

	select {
	case evt := <-events:
		if evt.Type != core.EventStreakContinued {
			t.Fatalf("unexpected event type: %s", evt.Type)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}

// serves the real API on top of in-memory storage.
func newTestServer(t *testing.T) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	storage := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	svc := engine.NewWellbeingService(storage, bus, engine.DefaultRuleEngine())
	an := analytics.NewService(analytics.Options{})
	hub := realtime.NewHub()
	handler := httpapi.NewMux(svc, hub, an, nil, httpapi.Options{PathPrefix: "/api"})
	return httptest.NewServer(handler), hub
}
