package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"questphone/core"
)

func TestUsageLogHoursSeries(t *testing.T) {
	log := NewUsageLog()
	user := core.UserID("u")
	today := core.Day("2026-08-31")

	// two hours today across two apps, one hour yesterday
	log.Record(user, "com.example.feed", today, 90*60_000)
	log.Record(user, "com.example.video", today, 30*60_000)
	log.Record(user, "com.example.feed", today.AddDays(-1), 60*60_000)
	log.Record(user, "com.example.feed", today, -5) // ignored

	series := log.HoursSeries(user, today, 7)
	assert.Len(t, series, 2, "series spans only the observed history")
	assert.InDelta(t, 2.0, series[0], 1e-9)
	assert.InDelta(t, 1.0, series[1], 1e-9)

	// a gap inside the window stays zero, the window still ends at the
	// oldest recorded day
	log.Record(user, "com.example.feed", today.AddDays(-3), 60*60_000)
	series = log.HoursSeries(user, today, 7)
	assert.Len(t, series, 4)
	assert.Zero(t, series[2])
	assert.InDelta(t, 1.0, series[3], 1e-9)

	assert.Empty(t, log.HoursSeries(core.UserID("nobody"), today, 7))
}

func TestUsageLogTopApps(t *testing.T) {
	log := NewUsageLog()
	user := core.UserID("u")
	today := core.Day("2026-08-31")

	log.Record(user, "com.example.feed", today, 500)
	log.Record(user, "com.example.video", today, 900)
	log.Record(user, "com.example.chat", today, 100)

	top := log.TopApps(user, today, 2)
	assert.Equal(t, []AppUsage{
		{App: "com.example.video", Millis: 900},
		{App: "com.example.feed", Millis: 500},
	}, top)
}

func TestUsageLogTrend(t *testing.T) {
	log := NewUsageLog()
	user := core.UserID("u")
	today := core.Day("2026-08-31")

	// three hours every prior day, one hour today
	for i := 1; i <= 6; i++ {
		log.Record(user, "com.example.feed", today.AddDays(-i), 3*3600_000)
	}
	log.Record(user, "com.example.feed", today, 1*3600_000)
	assert.Equal(t, TrendImproving, log.UsageTrend(user, today))

	// another five hours today flips the trend
	log.Record(user, "com.example.video", today, 5*3600_000)
	assert.Equal(t, TrendWorsening, log.UsageTrend(user, today))

	assert.Equal(t, TrendSteady, NewUsageLog().UsageTrend(user, today))
}

func TestUsageLogPrune(t *testing.T) {
	log := NewUsageLog()
	user := core.UserID("u")
	today := core.Day("2026-08-31")

	log.Record(user, "com.example.feed", today.AddDays(-10), 1000)
	log.Record(user, "com.example.feed", today, 1000)

	log.Prune(today.AddDays(-6))
	assert.Zero(t, log.TotalMillis(user, today.AddDays(-10)))
	assert.Equal(t, int64(1000), log.TotalMillis(user, today))
}
