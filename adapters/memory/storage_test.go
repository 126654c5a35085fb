package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"questphone/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := New()
	total, err := s.AddPoints(ctx, core.UserID("u"), core.MetricXP, 5)
	if err != nil || total != 5 {
		t.Fatalf("got %v %v", total, err)
	}
	if err := s.SetDistraction(ctx, core.UserID("u"), core.AppID("com.example.feed"), true); err != nil {
		t.Fatal(err)
	}
	st, _ := s.GetState(ctx, core.UserID("u"))
	if _, ok := st.Distractions[core.AppID("com.example.feed")]; !ok {
		t.Fatal("distraction missing")
	}
	if st.Inventory[core.ItemStreakFreezer] != core.StartingFreezers {
		t.Fatalf("new user freezers = %d", st.Inventory[core.ItemStreakFreezer])
	}
}

func TestMemoryStoreRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, err := s.AddPoints(ctx, core.UserID("u"), core.MetricCoins, 30); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddPoints(ctx, core.UserID("u"), core.MetricCoins, -50); !errors.Is(err, core.ErrNegativeBalance) {
		t.Fatalf("err = %v, want ErrNegativeBalance", err)
	}
	st, _ := s.GetState(ctx, core.UserID("u"))
	if st.Points[core.MetricCoins] != 30 {
		t.Fatalf("balance changed by a rejected debit: %d", st.Points[core.MetricCoins])
	}
}

func TestMemoryStoreInventoryFloor(t *testing.T) {
	ctx := context.Background()
	s := New()
	n, err := s.AdjustInventory(ctx, core.UserID("u"), core.ItemQuestSkipper, -4)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("inventory went negative: %d", n)
	}
}

func TestMemoryStorePassState(t *testing.T) {
	ctx := context.Background()
	s := New()
	if _, ok, _ := s.PassState(ctx, core.UserID("u")); ok {
		t.Fatal("expected no pass state for fresh user")
	}
	want := core.FreePassState{Date: core.Day("2026-08-31"), Remaining: 4}
	if err := s.SetPassState(ctx, core.UserID("u"), want); err != nil {
		t.Fatal(err)
	}
	got, ok, _ := s.PassState(ctx, core.UserID("u"))
	if !ok || got != want {
		t.Fatalf("got %+v ok=%v", got, ok)
	}
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	s := New()
	st, _ := s.GetState(ctx, core.UserID("u"))
	st.Points[core.MetricCoins] = 999
	again, _ := s.GetState(ctx, core.UserID("u"))
	if again.Points[core.MetricCoins] != 0 {
		t.Fatal("GetState leaked internal map")
	}
}

func TestMemoryStoreBoost(t *testing.T) {
	ctx := context.Background()
	s := New()
	until := time.Now().Add(time.Hour)
	if err := s.SetBoost(ctx, core.UserID("u"), core.ItemXPBooster, until); err != nil {
		t.Fatal(err)
	}
	st, _ := s.GetState(ctx, core.UserID("u"))
	if !st.BoosterActive(core.ItemXPBooster, time.Now()) {
		t.Fatal("booster should be active")
	}
}
