package core

import "math"

// passWeights favor recent days; index 0 is today, 6 is six days ago.
var passWeights = [7]float64{0.25, 0.20, 0.15, 0.15, 0.10, 0.10, 0.05}

// FallbackPasses is granted when fewer than seven days of usage history
// exist. A grace policy for new accounts, not an error path.
const FallbackPasses = 3

// PassInputs carries everything the free-pass heuristic reads.
type PassInputs struct {
	// ScreenTimeHours is the trailing usage series in hours,
	// index 0 = today, index 6 = six days ago.
	ScreenTimeHours []float64
	Streak          int
	AccountAgeDays  int
	Level           int
}

// FreePassState is the once-per-day cached result of the calculator.
type FreePassState struct {
	Date      Day `json:"date"`
	Remaining int `json:"remaining"`
}

// ValidOn reports whether the cached state still covers the given day.
func (s FreePassState) ValidOn(day Day) bool {
	return s.Date == day
}

// CalculatePasses computes how many free unlocks of blocked apps a user
// earns for the day. Rewards improvement and consistency, caps generosity
// by recent behavior, and decays the boost as the account ages.
//
// Policy: the real-valued base is rounded first, integer bonuses are added
// after, and the sum is clamped into [1, dynamicMax].
func CalculatePasses(in PassInputs) int {
	if len(in.ScreenTimeHours) < 7 {
		return FallbackPasses
	}

	times := make([]float64, 7)
	for i := 0; i < 7; i++ {
		t := in.ScreenTimeHours[i]
		// malformed samples count as zero usage
		if math.IsNaN(t) || t < 0 {
			t = 0
		}
		times[i] = t
	}

	var weightedAvg float64
	for i, t := range times {
		weightedAvg += t * passWeights[i]
	}

	today := times[0]
	yesterday := times[1]
	var priorSum float64
	for _, t := range times[1:] {
		priorSum += t
	}
	priorAvg := priorSum / 6

	weeksSinceFirstUse := float64(in.AccountAgeDays) / 7.0
	isNewUser := in.AccountAgeDays < 7
	isImproving := today < priorAvg-1
	isConsistent := in.Streak >= 2+in.Level/2

	generosity := 2.0
	if !isNewUser {
		generosity = math.Max(1.5-0.1*weeksSinceFirstUse, 0.5)
	}
	difficulty := 2.0 + float64(in.Level)*0.25
	base := (weightedAvg / difficulty) * generosity

	bonuses := 0
	if isImproving {
		bonuses++
	}
	if isConsistent {
		bonuses++
	}

	// dynamic cap: one unlock per 10 minutes of yesterday's usage,
	// tightened when improving and as the account ages
	baseCap := math.Round(yesterday * 60 / 10)
	trendFactor := 1.0
	if isImproving {
		trendFactor = 0.75
	}
	decay := math.Max(1.2-0.1*weeksSinceFirstUse, 0.5)
	dynamicMax := clampInt(int(math.Round(baseCap*trendFactor*decay)), 2, 10)

	return clampInt(int(math.Round(base))+bonuses, 1, dynamicMax)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
