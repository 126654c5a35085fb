package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"questphone/core"
)

func TestWellbeingMetrics_OnEvent(t *testing.T) {
	metrics := NewWellbeingMetrics()

	userID := core.UserID("user123")
	now := time.Now().UTC()
	dayKey := now.Format("2006-01-02")

	metrics.OnEvent(core.Event{
		Type:   core.EventPassesGranted,
		UserID: userID,
		Time:   now,
		Passes: 4,
	})
	metrics.OnEvent(core.Event{
		Type:   core.EventFreePassUsed,
		UserID: userID,
		Time:   now,
		App:    core.AppID("com.example.feed"),
		Passes: 3,
	})
	metrics.OnEvent(core.Event{
		Type:   core.EventAppUnlocked,
		UserID: userID,
		Time:   now,
		App:    core.AppID("com.example.feed"),
		Metric: core.MetricCoins,
		Delta:  -10,
	})
	metrics.OnEvent(core.Event{
		Type:   core.EventPointsAdded,
		UserID: userID,
		Time:   now,
		Metric: core.MetricXP,
		Delta:  62,
		Total:  62,
	})
	metrics.OnEvent(core.Event{
		Type:   core.EventLevelUp,
		UserID: userID,
		Time:   now,
		Level:  3,
	})

	assert.Equal(t, int64(4), metrics.PassesGranted(dayKey))
	assert.Equal(t, int64(1), metrics.PassesUsed(dayKey))
	assert.Equal(t, int64(1), metrics.CoinUnlocks(dayKey))
	assert.Equal(t, int64(10), metrics.CoinsSpent(dayKey))
	assert.Equal(t, int64(10), metrics.CoinsSpentOn(core.AppID("com.example.feed")))
	assert.Equal(t, int64(62), metrics.XPAwarded(dayKey))
	assert.Equal(t, int64(1), metrics.LevelUps(dayKey))
	assert.Equal(t, 1, metrics.ActiveUsers(dayKey))
	assert.Equal(t, map[int]int{3: 1}, metrics.LevelDistribution())
}

func TestWellbeingMetrics_StreakCounts(t *testing.T) {
	metrics := NewWellbeingMetrics()
	now := time.Now().UTC()
	dayKey := now.Format("2006-01-02")

	metrics.OnEvent(core.Event{Type: core.EventStreakContinued, UserID: "a", Time: now, Streak: 3})
	metrics.OnEvent(core.Event{
		Type: core.EventStreakRescued, UserID: "b", Time: now, Streak: 5,
		Metadata: map[string]any{"freezers_used": 2},
	})
	metrics.OnEvent(core.Event{Type: core.EventStreakBroken, UserID: "c", Time: now})

	continued, rescued, broken := metrics.StreakCounts(dayKey)
	assert.Equal(t, int64(1), continued)
	assert.Equal(t, int64(1), rescued)
	assert.Equal(t, int64(1), broken)
	assert.Equal(t, int64(2), metrics.FreezersSpent(dayKey))
	assert.Equal(t, 3, metrics.ActiveUsers(dayKey))
}

func TestDAU(t *testing.T) {
	dau := NewDAU()
	now := time.Now().UTC()
	dayKey := now.Format("2006-01-02")

	dau.OnEvent(core.Event{Type: core.EventPointsAdded, UserID: "a", Time: now})
	dau.OnEvent(core.Event{Type: core.EventPointsAdded, UserID: "a", Time: now})
	dau.OnEvent(core.Event{Type: core.EventFreePassUsed, UserID: "b", Time: now})

	assert.Equal(t, 2, dau.Count(dayKey))
}

func TestAggregationEngine_Daily(t *testing.T) {
	metrics := NewWellbeingMetrics()
	now := time.Now().UTC()

	metrics.OnEvent(core.Event{Type: core.EventPassesGranted, UserID: "a", Time: now, Passes: 3})
	metrics.OnEvent(core.Event{Type: core.EventFreePassUsed, UserID: "a", Time: now})
	metrics.OnEvent(core.Event{Type: core.EventAppUnlocked, UserID: "b", Time: now, Delta: -15})

	engine := NewAggregationEngine(metrics, time.Hour)
	require.NoError(t, engine.AggregateNow())

	dayKey := now.Format("2006-01-02")
	data, ok := engine.GetAggregatedData(PeriodDaily, dayKey)
	require.True(t, ok)
	assert.Equal(t, int64(3), data.PassesGranted)
	assert.Equal(t, int64(1), data.PassesUsed)
	assert.Equal(t, int64(1), data.CoinUnlocks)
	assert.Equal(t, int64(15), data.CoinsSpent)
	assert.Equal(t, 2, data.ActiveUsers)

	weekly, ok := engine.GetAggregatedData(PeriodWeekly, getWeekKey(now))
	require.True(t, ok)
	assert.Equal(t, int64(3), weekly.PassesGranted)
	assert.Equal(t, 2, weekly.ActiveUsers)
}

func TestStreamPublisher(t *testing.T) {
	pub := NewStreamPublisher(3)

	var got []core.Event
	pub.Subscribe("dash", subscriberFunc(func(e core.Event) { got = append(got, e) }))

	for i := 0; i < 5; i++ {
		pub.OnEvent(core.Event{Type: core.EventPointsAdded, UserID: "a", Delta: int64(i)})
	}
	assert.Len(t, got, 5)
	assert.Len(t, pub.Recent(), 3)

	pub.Unsubscribe("dash")
	pub.OnEvent(core.Event{Type: core.EventPointsAdded, UserID: "a"})
	assert.Len(t, got, 5)
}

type subscriberFunc func(core.Event)

func (f subscriberFunc) OnStreamEvent(e core.Event) { f(e) }
func (f subscriberFunc) Close() error               { return nil }
