package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	mem "questphone/adapters/memory"
	"questphone/analytics"
	"questphone/core"
	"questphone/engine"
	"questphone/leaderboard"
)

func TestTapUnlockFlow(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{PathPrefix: "/api"})

	do := func(method, path string, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body != "" {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		} else {
			req = httptest.NewRequest(method, path, nil)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do(http.MethodPost, "/api/users/alice/distractions/com.timesink?blocked=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("set distraction: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodGet, "/api/users/alice/apps/com.timesink/tap", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tap: expected 200, got %d", rec.Code)
	}
	var tap map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &tap)
	if tap["decision"] != core.Paywall.String() {
		t.Fatalf("expected paywall decision, got %v", tap["decision"])
	}

	rec = do(http.MethodGet, "/api/users/alice/passes", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("passes: expected 200, got %d", rec.Code)
	}

	rec = do(http.MethodPost, "/api/users/alice/passes/use?app=com.timesink", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("use pass: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	rec = do(http.MethodGet, "/api/users/alice/apps/com.timesink/tap", "")
	_ = json.Unmarshal(rec.Body.Bytes(), &tap)
	if tap["decision"] != core.Launch.String() {
		t.Fatalf("expected launch after free pass, got %v", tap["decision"])
	}
}

func TestCoinUnlock(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{PathPrefix: "/api"})

	ctx := context.Background()
	if err := svc.SetDistraction(ctx, "bob", "com.scroll", true); err != nil {
		t.Fatalf("set distraction: %v", err)
	}
	if _, err := svc.AddCoins(ctx, "bob", 100); err != nil {
		t.Fatalf("add coins: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/users/bob/apps/com.scroll/unlock?coins=10", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodPost, "/api/users/bob/apps/com.scroll/unlock?coins=500", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402 for insufficient coins, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/api/users/bob/apps/com.scroll/unlock?coins=7", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-multiple of 5, got %d", rec.Code)
	}
}

func TestUsageAndPasses(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{PathPrefix: "/api"})

	body := `{"app":"com.video","millis":3600000}`
	req := httptest.NewRequest(http.MethodPost, "/api/users/alice/usage", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("record usage: expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users/alice/passes", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("passes: expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	// One day of history is too little for the weighted average, so the
	// account falls back to the grace allowance.
	if resp["remaining"] != float64(core.FallbackPasses) {
		t.Fatalf("expected %d passes, got %v", core.FallbackPasses, resp["remaining"])
	}
}

func TestPassesForBrandNewAccount(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodGet, "/api/users/newcomer/passes", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("passes: expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["remaining"] != float64(core.FallbackPasses) {
		t.Fatalf("an account with no usage history gets %d passes, got %v", core.FallbackPasses, resp["remaining"])
	}
	if resp["trend"] != string(analytics.TrendSteady) {
		t.Fatalf("expected steady trend, got %v", resp["trend"])
	}
}

func TestStreakEndpoints(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodPost, "/api/users/alice/streak/complete", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("complete: expected 200, got %d", rec.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["counted"] != true || resp["streak"] != float64(1) {
		t.Fatalf("expected counted streak 1, got %v", resp)
	}

	// Same day again is a no-op.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/alice/streak/complete", nil))
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp["counted"] != false {
		t.Fatalf("expected repeat completion not counted, got %v", resp)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/users/alice/streak/evaluate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate: expected 200, got %d", rec.Code)
	}
}

func TestLeaderboardRoute(t *testing.T) {
	svc, an := newTestService(t)
	board := leaderboard.NewSkipList()
	board.Update("alice", 9, 9)
	board.Update("bob", 4, 12)
	handler := NewMux(svc, nil, an, board, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?n=1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var entries []leaderboard.Entry
	_ = json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) != 1 || entries[0].User != "alice" {
		t.Fatalf("expected alice on top, got %v", entries)
	}
}

func TestBadUserID(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{PathPrefix: "/api"})

	req := httptest.NewRequest(http.MethodGet, "/api/users/%20", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAPIKeyAuth(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{
		PathPrefix:      "/api",
		APIKeys:         []string{"secret"},
		AllowCORSOrigin: "*",
	})

	req := httptest.NewRequest(http.MethodGet, "/api/users/alice", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/users/alice", nil)
	req2.Header.Set("Authorization", "Bearer secret")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec2.Code)
	}
}

func TestRateLimit(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{
		PathPrefix:       "/api",
		APIKeys:          []string{"k"},
		RateLimitEnabled: true,
		RateLimitRPM:     1,
		RateLimitBurst:   1,
	})

	req1 := httptest.NewRequest(http.MethodGet, "/api/users/alice", nil)
	req1.Header.Set("X-API-Key", "k")
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusOK {
		t.Fatalf("expected 200 first request, got %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/users/alice", nil)
	req2.Header.Set("X-API-Key", "k")
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec2.Code)
	}
}

func TestHealthz(t *testing.T) {
	svc, an := newTestService(t)
	handler := NewMux(svc, nil, an, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func newTestService(t *testing.T) (*engine.WellbeingService, *analytics.Service) {
	t.Helper()
	storage := mem.New()
	bus := engine.NewEventBus(engine.DispatchSync)
	svc := engine.NewWellbeingService(storage, bus, engine.DefaultRuleEngine())
	an := analytics.NewService(analytics.Options{})
	return svc, an
}
