package analytics

import (
	"sort"
	"sync"

	"questphone/core"
)

// UsageLog accumulates per-app screen time, bucketed by calendar day. It is
// the data source behind the free-pass heuristic: the launcher reports
// foreground sessions here and the engine reads back the trailing
// seven-day series.
type UsageLog struct {
	mu sync.RWMutex
	// user -> day -> app -> millis
	usage map[core.UserID]map[core.Day]map[core.AppID]int64
}

func NewUsageLog() *UsageLog {
	return &UsageLog{usage: map[core.UserID]map[core.Day]map[core.AppID]int64{}}
}

// Record adds a foreground session of the given length to the day's bucket.
// Non-positive durations are ignored.
func (l *UsageLog) Record(user core.UserID, app core.AppID, day core.Day, millis int64) {
	if millis <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	days := l.usage[user]
	if days == nil {
		days = map[core.Day]map[core.AppID]int64{}
		l.usage[user] = days
	}
	apps := days[day]
	if apps == nil {
		apps = map[core.AppID]int64{}
		days[day] = apps
	}
	apps[app] += millis
}

// TotalMillis returns the user's total screen time on a day.
func (l *UsageLog) TotalMillis(user core.UserID, day core.Day) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total int64
	for _, ms := range l.usage[user][day] {
		total += ms
	}
	return total
}

// HoursSeries returns up to n days of usage in hours, index 0 = today,
// going backwards. The series only spans days the log has actually seen:
// it stops at the oldest recorded day inside the window, so an account
// with two days of history yields a two-entry series, and a brand-new
// account yields an empty one. Interior days with no data are zero.
func (l *UsageLog) HoursSeries(user core.UserID, today core.Day, n int) []float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	span := 0
	for i := 0; i < n; i++ {
		if len(l.usage[user][today.AddDays(-i)]) > 0 {
			span = i + 1
		}
	}
	series := make([]float64, span)
	for i := 0; i < span; i++ {
		day := today.AddDays(-i)
		var total int64
		for _, ms := range l.usage[user][day] {
			total += ms
		}
		series[i] = float64(total) / float64(3600_000)
	}
	return series
}

// AppUsage pairs an app with its usage for ranking.
type AppUsage struct {
	App    core.AppID `json:"app"`
	Millis int64      `json:"millis"`
}

// TopApps returns the user's most-used apps on a day, heaviest first.
func (l *UsageLog) TopApps(user core.UserID, day core.Day, limit int) []AppUsage {
	l.mu.RLock()
	apps := make([]AppUsage, 0, len(l.usage[user][day]))
	for app, ms := range l.usage[user][day] {
		apps = append(apps, AppUsage{App: app, Millis: ms})
	}
	l.mu.RUnlock()

	sort.Slice(apps, func(i, j int) bool {
		if apps[i].Millis != apps[j].Millis {
			return apps[i].Millis > apps[j].Millis
		}
		return apps[i].App < apps[j].App
	})
	if limit > 0 && len(apps) > limit {
		apps = apps[:limit]
	}
	return apps
}

// Trend classifies which way a user's screen time is moving.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendSteady    Trend = "steady"
	TrendWorsening Trend = "worsening"
)

// UsageTrend compares today's hours against the trailing six-day average.
// The one-hour band matches the pass calculator's improvement threshold.
func (l *UsageLog) UsageTrend(user core.UserID, today core.Day) Trend {
	series := l.HoursSeries(user, today, 7)
	if len(series) < 7 {
		return TrendSteady
	}
	var priorSum float64
	for _, h := range series[1:] {
		priorSum += h
	}
	priorAvg := priorSum / 6
	switch {
	case series[0] < priorAvg-1:
		return TrendImproving
	case series[0] > priorAvg+1:
		return TrendWorsening
	default:
		return TrendSteady
	}
}

// Prune drops all buckets older than the given day. Called on day rollover
// to keep the log bounded.
func (l *UsageLog) Prune(oldest core.Day) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for user, days := range l.usage {
		for day := range days {
			if day.Sub(oldest) < 0 {
				delete(days, day)
			}
		}
		if len(days) == 0 {
			delete(l.usage, user)
		}
	}
}
