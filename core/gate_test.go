package core

import (
	"testing"
	"time"
)

func TestDecideLaunch(t *testing.T) {
	now := int64(1_000_000)
	cases := []struct {
		name    string
		blocked bool
		until   int64
		want    Decision
	}{
		{"not blocked", false, 0, Launch},
		{"blocked never unlocked", true, 0, Paywall},
		{"window still open", true, now + 60_000, Launch},
		{"window expired", true, now - 1, Paywall},
		{"permanent unlock", true, PermanentUnlock, Launch},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := DecideLaunch(tc.blocked, tc.until, now); got != tc.want {
				t.Fatalf("got %v want %v", got, tc.want)
			}
		})
	}
}

func TestUnlockWindow(t *testing.T) {
	d, err := UnlockWindow(5, 10)
	if err != nil || d != 10*time.Minute {
		t.Fatalf("5 coins: got %v %v", d, err)
	}
	d, err = UnlockWindow(15, 10)
	if err != nil || d != 30*time.Minute {
		t.Fatalf("15 coins: got %v %v", d, err)
	}
	// ratio is user-editable and scales linearly
	d, err = UnlockWindow(10, 25)
	if err != nil || d != 50*time.Minute {
		t.Fatalf("custom ratio: got %v %v", d, err)
	}
	// zero ratio falls back to default
	d, err = UnlockWindow(5, 0)
	if err != nil || d != time.Duration(DefaultMinutesPerFiveCoins)*time.Minute {
		t.Fatalf("default ratio: got %v %v", d, err)
	}
}

func TestUnlockWindowRejectsBadAmounts(t *testing.T) {
	for _, coins := range []int{0, -5, 3, 7} {
		if _, err := UnlockWindow(coins, 10); err == nil {
			t.Fatalf("coins=%d should be rejected", coins)
		}
	}
}
