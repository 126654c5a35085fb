package core

import "testing"

func TestDaysMissedGraceWindow(t *testing.T) {
	today := Day("2026-08-31")
	if _, failed := DaysMissed("2026-08-31", today); failed {
		t.Fatal("completing today is never a failure")
	}
	if _, failed := DaysMissed("2026-08-30", today); failed {
		t.Fatal("yesterday is within the grace window")
	}
}

func TestDaysMissedGap(t *testing.T) {
	today := Day("2026-08-31")
	gap, failed := DaysMissed("2026-08-28", today)
	if !failed || gap != 3 {
		t.Fatalf("three-day-old completion: got gap=%d failed=%v", gap, failed)
	}
}

func TestDaysMissedNeverCompleted(t *testing.T) {
	if _, failed := DaysMissed(ZeroDay, "2026-08-31"); failed {
		t.Fatal("an unstarted streak cannot fail")
	}
	if _, failed := DaysMissed("", "2026-08-31"); failed {
		t.Fatal("empty last-completed cannot fail")
	}
}

func TestSpendFreezersRescue(t *testing.T) {
	out := SpendFreezers(3, 5, 12)
	if out.Kind != StreakRescued {
		t.Fatalf("expected rescue, got %v", out.Kind)
	}
	if out.FreezersUsed != 3 {
		t.Fatalf("expected 3 freezers used, got %d", out.FreezersUsed)
	}
	if out.NewStreak != 12 {
		t.Fatalf("streak must survive unchanged, got %d", out.NewStreak)
	}
	if out.XPEarned != XPFromStreak(12) {
		t.Fatalf("xp: got %d want %d", out.XPEarned, XPFromStreak(12))
	}
}

func TestSpendFreezersBreak(t *testing.T) {
	out := SpendFreezers(5, 2, 12)
	if out.Kind != StreakBroken {
		t.Fatalf("expected break, got %v", out.Kind)
	}
	if out.FreezersUsed != 2 {
		t.Fatalf("all available freezers are consumed, got %d", out.FreezersUsed)
	}
	if out.DaysLost != 12 {
		t.Fatalf("days lost should be the previous streak, got %d", out.DaysLost)
	}
}

func TestSpendFreezersNoFailure(t *testing.T) {
	out := SpendFreezers(0, 5, 7)
	if out.Kind != StreakContinued || out.FreezersUsed != 0 || out.NewStreak != 7 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestXPFromStreak(t *testing.T) {
	if XPFromStreak(0) != 0 {
		t.Fatal("zero streak yields zero xp")
	}
	if got := XPFromStreak(4); got != 48 {
		t.Fatalf("streak 4: got %d want 48", got)
	}
	if got := XPFromStreak(10); got != 150 {
		t.Fatalf("streak 10: got %d want 150", got)
	}
}
