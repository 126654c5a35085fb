package core

import (
	"math"
	"testing"
)

func TestCalculatePassesFallback(t *testing.T) {
	got := CalculatePasses(PassInputs{ScreenTimeHours: []float64{1, 2, 3}})
	if got != FallbackPasses {
		t.Fatalf("partial history: got %d want %d", got, FallbackPasses)
	}
	if CalculatePasses(PassInputs{}) != FallbackPasses {
		t.Fatal("empty history should fall back")
	}
}

// Pinned golden value; any change to the formula must be deliberate.
func TestCalculatePassesGolden(t *testing.T) {
	got := CalculatePasses(PassInputs{
		ScreenTimeHours: []float64{2.0, 3.0, 2.5, 4.0, 1.0, 2.0, 3.0},
		Streak:          5,
		AccountAgeDays:  40,
		Level:           3,
	})
	if got != 2 {
		t.Fatalf("golden vector: got %d want 2", got)
	}
}

func TestCalculatePassesTable(t *testing.T) {
	flat := func(h float64) []float64 { return []float64{h, h, h, h, h, h, h} }
	cases := []struct {
		name string
		in   PassInputs
		want int
	}{
		{
			name: "new user moderate usage",
			in:   PassInputs{ScreenTimeHours: flat(2.0), Streak: 0, AccountAgeDays: 3, Level: 1},
			want: 2,
		},
		{
			name: "zero usage floors at one",
			in:   PassInputs{ScreenTimeHours: flat(0), Streak: 20, AccountAgeDays: 100, Level: 5},
			want: 1,
		},
		{
			name: "heavy usage long streak",
			in:   PassInputs{ScreenTimeHours: flat(10), Streak: 10, AccountAgeDays: 10, Level: 1},
			want: 7,
		},
		{
			name: "malformed samples count as zero",
			in:   PassInputs{ScreenTimeHours: []float64{math.NaN(), -1, 0, 0, 0, 0, 0}, Streak: 0, AccountAgeDays: 0, Level: 1},
			want: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculatePasses(tc.in); got != tc.want {
				t.Fatalf("got %d want %d", got, tc.want)
			}
		})
	}
}

func TestCalculatePassesRange(t *testing.T) {
	series := [][]float64{
		{0, 0, 0, 0, 0, 0, 0},
		{1, 1, 1, 1, 1, 1, 1},
		{12, 12, 12, 12, 12, 12, 12},
		{0.5, 8, 3, 2, 6, 1, 4},
		{24, 0, 24, 0, 24, 0, 24},
	}
	for _, s := range series {
		for _, level := range []int{1, 3, 8, 20} {
			for _, age := range []int{0, 6, 30, 365} {
				got := CalculatePasses(PassInputs{ScreenTimeHours: s, Streak: 5, AccountAgeDays: age, Level: level})
				if got < 1 || got > 10 {
					t.Fatalf("out of range result %d for series=%v level=%d age=%d", got, s, level, age)
				}
			}
		}
	}
}

func TestFreePassStateValidOn(t *testing.T) {
	st := FreePassState{Date: "2026-08-31", Remaining: 4}
	if !st.ValidOn("2026-08-31") {
		t.Fatal("same day should be valid")
	}
	if st.ValidOn("2026-09-01") {
		t.Fatal("next day should invalidate the cache")
	}
}
