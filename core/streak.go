package core

// StreakData tracks consecutive days on which all assigned quests were
// completed.
type StreakData struct {
	Current       int `json:"current"`
	Longest       int `json:"longest"`
	LastCompleted Day `json:"last_completed"`
}

// OutcomeKind tags a StreakOutcome variant.
type OutcomeKind int

const (
	// StreakContinued means no day boundary was missed; nothing to do.
	StreakContinued OutcomeKind = iota
	// StreakRescued means missed days were covered by streak freezers.
	StreakRescued
	// StreakBroken means the streak reset to zero.
	StreakBroken
)

// StreakOutcome is the result of one streak evaluation. Only the fields
// relevant to Kind are populated.
type StreakOutcome struct {
	Kind         OutcomeKind `json:"kind"`
	FreezersUsed int         `json:"freezers_used,omitempty"`
	NewStreak    int         `json:"new_streak,omitempty"`
	XPEarned     int64       `json:"xp_earned,omitempty"`
	DaysLost     int         `json:"days_lost,omitempty"`
}

// XPFromStreak is the reward for keeping a streak of the given length.
func XPFromStreak(dayStreak int) int64 {
	d := int64(dayStreak)
	return 10*d + d*d/2
}

// DaysMissed reports how many calendar days of completion a user skipped.
// A lastCompleted of today or yesterday is within the one-day grace window
// and returns (0, false). A zero lastCompleted means the streak has not
// started yet and cannot fail.
func DaysMissed(lastCompleted, today Day) (int, bool) {
	if lastCompleted.IsZero() {
		return 0, false
	}
	gap := today.Sub(lastCompleted)
	if gap <= 1 {
		return 0, false
	}
	return gap, true
}

// SpendFreezers resolves a missed-day failure against the freezer
// inventory. With enough freezers the streak survives unchanged; otherwise
// every remaining freezer is consumed anyway and the streak breaks.
// Returned FreezersUsed never exceeds the available count.
func SpendFreezers(daysMissed, freezers, currentStreak int) StreakOutcome {
	if daysMissed <= 0 {
		return StreakOutcome{Kind: StreakContinued, NewStreak: currentStreak}
	}
	if freezers >= daysMissed {
		return StreakOutcome{
			Kind:         StreakRescued,
			FreezersUsed: daysMissed,
			NewStreak:    currentStreak,
			XPEarned:     XPFromStreak(currentStreak),
		}
	}
	return StreakOutcome{
		Kind:         StreakBroken,
		FreezersUsed: freezers,
		DaysLost:     currentStreak,
	}
}
