package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// AggregationPeriod represents different time periods for aggregation
type AggregationPeriod string

const (
	PeriodDaily  AggregationPeriod = "daily"
	PeriodWeekly AggregationPeriod = "weekly"
)

// AggregatedData is a rolled-up snapshot of one period.
type AggregatedData struct {
	Period    AggregationPeriod `json:"period"`
	Key       string            `json:"key"` // "2026-08-31" daily, "2026-W36" weekly
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`

	ActiveUsers int `json:"active_users"`

	PassesGranted int64 `json:"passes_granted"`
	PassesUsed    int64 `json:"passes_used"`

	CoinUnlocks int64 `json:"coin_unlocks"`
	CoinsSpent  int64 `json:"coins_spent"`

	StreaksContinued int64 `json:"streaks_continued"`
	StreaksRescued   int64 `json:"streaks_rescued"`
	StreaksBroken    int64 `json:"streaks_broken"`
	FreezersSpent    int64 `json:"freezers_spent"`

	XPAwarded int64 `json:"xp_awarded"`
	LevelUps  int64 `json:"level_ups"`

	CreatedAt time.Time `json:"created_at"`
}

// AggregationEngine rolls the live counters up into per-period snapshots.
type AggregationEngine struct {
	mu sync.RWMutex

	metrics *WellbeingMetrics

	daily  map[string]*AggregatedData
	weekly map[string]*AggregatedData

	interval time.Duration
}

func NewAggregationEngine(metrics *WellbeingMetrics, interval time.Duration) *AggregationEngine {
	return &AggregationEngine{
		metrics:  metrics,
		daily:    map[string]*AggregatedData{},
		weekly:   map[string]*AggregatedData{},
		interval: interval,
	}
}

// AggregateNow forces an immediate aggregation of both periods.
func (ae *AggregationEngine) AggregateNow() error {
	ae.mu.Lock()
	defer ae.mu.Unlock()

	now := time.Now().UTC()
	ae.aggregateDaily(now)
	ae.aggregateWeekly(now)
	return nil
}

func (ae *AggregationEngine) dayData(key string, start time.Time) *AggregatedData {
	continued, rescued, broken := ae.metrics.StreakCounts(key)
	return &AggregatedData{
		Period:           PeriodDaily,
		Key:              key,
		StartTime:        start,
		EndTime:          start.Add(24 * time.Hour),
		ActiveUsers:      ae.metrics.ActiveUsers(key),
		PassesGranted:    ae.metrics.PassesGranted(key),
		PassesUsed:       ae.metrics.PassesUsed(key),
		CoinUnlocks:      ae.metrics.CoinUnlocks(key),
		CoinsSpent:       ae.metrics.CoinsSpent(key),
		StreaksContinued: continued,
		StreaksRescued:   rescued,
		StreaksBroken:    broken,
		FreezersSpent:    ae.metrics.FreezersSpent(key),
		XPAwarded:        ae.metrics.XPAwarded(key),
		LevelUps:         ae.metrics.LevelUps(key),
	}
}

func (ae *AggregationEngine) aggregateDaily(now time.Time) {
	today := now.Format("2006-01-02")
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	data := ae.dayData(today, start)
	data.CreatedAt = now
	ae.daily[today] = data
}

func (ae *AggregationEngine) aggregateWeekly(now time.Time) {
	weekKey := getWeekKey(now)

	daysSinceMonday := int(now.Weekday()-time.Monday) % 7
	if daysSinceMonday < 0 {
		daysSinceMonday += 7
	}
	start := time.Date(now.Year(), now.Month(), now.Day()-daysSinceMonday, 0, 0, 0, 0, time.UTC)

	data := &AggregatedData{
		Period:      PeriodWeekly,
		Key:         weekKey,
		StartTime:   start,
		EndTime:     start.Add(7 * 24 * time.Hour),
		ActiveUsers: ae.metrics.WeeklyActiveUsers(weekKey),
		CreatedAt:   now,
	}
	for i := 0; i < 7; i++ {
		dayKey := start.AddDate(0, 0, i).Format("2006-01-02")
		day := ae.dayData(dayKey, start.AddDate(0, 0, i))
		data.PassesGranted += day.PassesGranted
		data.PassesUsed += day.PassesUsed
		data.CoinUnlocks += day.CoinUnlocks
		data.CoinsSpent += day.CoinsSpent
		data.StreaksContinued += day.StreaksContinued
		data.StreaksRescued += day.StreaksRescued
		data.StreaksBroken += day.StreaksBroken
		data.FreezersSpent += day.FreezersSpent
		data.XPAwarded += day.XPAwarded
		data.LevelUps += day.LevelUps
	}

	ae.weekly[weekKey] = data
}

// GetAggregatedData returns aggregated data for a specific period and key.
func (ae *AggregationEngine) GetAggregatedData(period AggregationPeriod, key string) (*AggregatedData, bool) {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	switch period {
	case PeriodDaily:
		d, ok := ae.daily[key]
		return d, ok
	case PeriodWeekly:
		d, ok := ae.weekly[key]
		return d, ok
	}
	return nil, false
}

// GetAllAggregatedData returns all snapshots for a period.
func (ae *AggregationEngine) GetAllAggregatedData(period AggregationPeriod) []*AggregatedData {
	ae.mu.RLock()
	defer ae.mu.RUnlock()
	var src map[string]*AggregatedData
	switch period {
	case PeriodDaily:
		src = ae.daily
	case PeriodWeekly:
		src = ae.weekly
	default:
		return nil
	}
	result := make([]*AggregatedData, 0, len(src))
	for _, data := range src {
		result = append(result, data)
	}
	return result
}

// Start begins periodic aggregation; blocks until ctx is cancelled.
func (ae *AggregationEngine) Start(ctx context.Context) {
	ticker := time.NewTicker(ae.interval)
	defer ticker.Stop()

	_ = ae.AggregateNow()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = ae.AggregateNow()
		}
	}
}

// ExportData exports aggregated data to JSON.
func (ae *AggregationEngine) ExportData(period AggregationPeriod) ([]byte, error) {
	data := ae.GetAllAggregatedData(period)
	return json.MarshalIndent(data, "", "  ")
}
