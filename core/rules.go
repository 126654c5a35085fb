package core

import "context"

// Rule determines whether given state and trigger event should emit derived events.
type Rule interface {
	Evaluate(ctx context.Context, state UserState, trigger Event) []Event
}

// LevelUpRule emits a level up when accumulated XP crosses the next
// level threshold.
type LevelUpRule struct{}

func (r LevelUpRule) Evaluate(_ context.Context, state UserState, trigger Event) []Event {
	if trigger.Type != EventPointsAdded || trigger.Metric != MetricXP {
		return nil
	}
	newLevel := LevelForXP(state.Points[MetricXP])
	if newLevel > state.Level {
		return []Event{NewLevelUp(state.UserID, newLevel)}
	}
	return nil
}

// StreakMilestoneRule emits a streak_milestone event when a continued
// streak hits one of the configured lengths, so downstream sinks can
// celebrate it.
type StreakMilestoneRule struct{ Milestones []int }

func (r StreakMilestoneRule) Evaluate(_ context.Context, state UserState, trigger Event) []Event {
	if trigger.Type != EventStreakContinued {
		return nil
	}
	for _, m := range r.Milestones {
		if trigger.Streak == m {
			ev := newEvent(EventStreakMilestone, state.UserID)
			ev.Streak = trigger.Streak
			ev.Metadata = map[string]any{"milestone": m}
			return []Event{ev}
		}
	}
	return nil
}
