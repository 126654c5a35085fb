package engine

import (
	"context"
	"time"

	"questphone/core"
)

// Storage abstracts persistence for wellbeing state. Implementations must
// floor inventory counts at zero, return deep copies from GetState, and
// reject an AddPoints delta that would leave the balance negative with
// core.ErrNegativeBalance, atomically with the update.
type Storage interface {
	GetState(ctx context.Context, user core.UserID) (core.UserState, error)
	AddPoints(ctx context.Context, user core.UserID, metric core.Metric, delta int64) (newTotal int64, err error)
	SetLevel(ctx context.Context, user core.UserID, level int) error
	SetStreak(ctx context.Context, user core.UserID, streak core.StreakData) error
	AdjustInventory(ctx context.Context, user core.UserID, item core.Item, delta int) (newCount int, err error)
	SetBoost(ctx context.Context, user core.UserID, item core.Item, until time.Time) error
	PassState(ctx context.Context, user core.UserID) (core.FreePassState, bool, error)
	SetPassState(ctx context.Context, user core.UserID, state core.FreePassState) error
	UnlockedUntil(ctx context.Context, user core.UserID, app core.AppID) (int64, error)
	SetUnlockedUntil(ctx context.Context, user core.UserID, app core.AppID, untilMillis int64) error
	Setting(ctx context.Context, user core.UserID, key string) (int, bool, error)
	SetSetting(ctx context.Context, user core.UserID, key string, value int) error
	SetDistraction(ctx context.Context, user core.UserID, app core.AppID, blocked bool) error
}

// RuleEngine evaluates rules and emits derived events.
type RuleEngine interface {
	Evaluate(ctx context.Context, state core.UserState, trigger core.Event) []core.Event
}
