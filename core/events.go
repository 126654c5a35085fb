package core

import (
	"time"

	"github.com/google/uuid"
)

// EventType enumerates domain events.
type EventType string

const (
	EventPointsAdded     EventType = "points_added"
	EventLevelUp         EventType = "level_up"
	EventPassesGranted   EventType = "passes_granted"
	EventFreePassUsed    EventType = "free_pass_used"
	EventAppUnlocked     EventType = "app_unlocked"
	EventStreakContinued EventType = "streak_continued"
	EventStreakRescued   EventType = "streak_rescued"
	EventStreakBroken    EventType = "streak_broken"
	EventStreakMilestone EventType = "streak_milestone"
)

// Event represents an immutable domain event.
type Event struct {
	ID       string         `json:"id"`
	Type     EventType      `json:"type"`
	Time     time.Time      `json:"time"`
	UserID   UserID         `json:"user_id"`
	App      AppID          `json:"app,omitempty"`
	Metric   Metric         `json:"metric,omitempty"`
	Delta    int64          `json:"delta,omitempty"`
	Total    int64          `json:"total,omitempty"`
	Level    int            `json:"level,omitempty"`
	Streak   int            `json:"streak,omitempty"`
	Passes   int            `json:"passes,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func newEvent(typ EventType, user UserID) Event {
	return Event{ID: uuid.NewString(), Type: typ, Time: time.Now().UTC(), UserID: user}
}

func NewPointsAdded(user UserID, metric Metric, delta int64, total int64) Event {
	ev := newEvent(EventPointsAdded, user)
	ev.Metric = metric
	ev.Delta = delta
	ev.Total = total
	return ev
}

func NewLevelUp(user UserID, level int) Event {
	ev := newEvent(EventLevelUp, user)
	ev.Level = level
	return ev
}

func NewPassesGranted(user UserID, passes int, day Day) Event {
	ev := newEvent(EventPassesGranted, user)
	ev.Passes = passes
	ev.Metadata = map[string]any{"day": string(day)}
	return ev
}

func NewFreePassUsed(user UserID, app AppID, remaining int) Event {
	ev := newEvent(EventFreePassUsed, user)
	ev.App = app
	ev.Passes = remaining
	return ev
}

func NewAppUnlocked(user UserID, app AppID, coinsSpent int64, until int64) Event {
	ev := newEvent(EventAppUnlocked, user)
	ev.App = app
	ev.Delta = -coinsSpent
	ev.Metric = MetricCoins
	ev.Metadata = map[string]any{"unlocked_until_ms": until}
	return ev
}

func NewStreakContinued(user UserID, streak int, xp int64) Event {
	ev := newEvent(EventStreakContinued, user)
	ev.Streak = streak
	ev.Delta = xp
	ev.Metric = MetricXP
	return ev
}

func NewStreakRescued(user UserID, streak int, freezersUsed int) Event {
	ev := newEvent(EventStreakRescued, user)
	ev.Streak = streak
	ev.Metadata = map[string]any{"freezers_used": freezersUsed}
	return ev
}

func NewStreakBroken(user UserID, daysLost int) Event {
	ev := newEvent(EventStreakBroken, user)
	ev.Streak = 0
	ev.Metadata = map[string]any{"days_lost": daysLost}
	return ev
}
