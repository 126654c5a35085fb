package core

import (
	"math"
	"testing"
	"time"
)

func TestAddSafe(t *testing.T) {
	if v, err := AddSafe(10, 5); err != nil || v != 15 {
		t.Fatalf("got %v %v", v, err)
	}
	if _, err := AddSafe(math.MaxInt64, 1); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestNormalizeUserID(t *testing.T) {
	id, err := NormalizeUserID(" Alice ")
	if err != nil || id != "alice" {
		t.Fatalf("got %v %v", id, err)
	}
	if _, err := NormalizeUserID("   "); err == nil {
		t.Fatalf("expected empty error")
	}
}

func TestValidateAppID(t *testing.T) {
	if err := ValidateAppID("com.example.feed"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := ValidateAppID("bad app"); err == nil {
		t.Fatalf("expected invalid app err")
	}
}

func TestLevelForXP(t *testing.T) {
	if LevelForXP(0) != 1 {
		t.Fatal("min level should be 1")
	}
	// level 2 requires 400 xp, level 3 requires 900
	if lvl := LevelForXP(399); lvl != 1 {
		t.Fatalf("399 xp -> level %d", lvl)
	}
	if lvl := LevelForXP(400); lvl != 2 {
		t.Fatalf("400 xp -> level %d", lvl)
	}
	if lvl := LevelForXP(900); lvl != 3 {
		t.Fatalf("900 xp -> level %d", lvl)
	}
}

func TestLevelUpRewards(t *testing.T) {
	if LevelUpCoinReward(3) != 50 {
		t.Fatal("small levels floor at 50 coins")
	}
	if LevelUpCoinReward(10) != 100 {
		t.Fatal("level 10 should award 100 coins")
	}
	r := LevelUpItemRewards(10)
	if r[ItemQuestSkipper] != 1 || r[ItemXPBooster] != 1 || r[ItemStreakFreezer] != 1 {
		t.Fatalf("level 10 rewards: %v", r)
	}
	if _, ok := LevelUpItemRewards(3)[ItemXPBooster]; ok {
		t.Fatal("odd levels grant no booster")
	}
}

func TestNewUserState(t *testing.T) {
	st := NewUserState("alice", time.Now())
	if st.Level != 1 {
		t.Fatal("new accounts start at level 1")
	}
	if st.Inventory[ItemStreakFreezer] != StartingFreezers {
		t.Fatalf("expected %d starting freezers", StartingFreezers)
	}
}

func TestCloneIsDeep(t *testing.T) {
	st := NewUserState("alice", time.Now())
	st.Points[MetricXP] = 100
	st.Distractions["com.example.feed"] = struct{}{}
	cp := st.Clone()
	cp.Points[MetricXP] = 999
	delete(cp.Distractions, "com.example.feed")
	if st.Points[MetricXP] != 100 {
		t.Fatal("clone shares points map")
	}
	if _, ok := st.Distractions["com.example.feed"]; !ok {
		t.Fatal("clone shares distractions map")
	}
}

func TestBoosterActive(t *testing.T) {
	now := time.Now()
	st := NewUserState("alice", now)
	st.ActiveBoosts[ItemXPBooster] = now.Add(time.Hour)
	if !st.BoosterActive(ItemXPBooster, now) {
		t.Fatal("booster should be active")
	}
	if st.BoosterActive(ItemXPBooster, now.Add(2*time.Hour)) {
		t.Fatal("booster should have expired")
	}
}
