package analytics

import (
	"fmt"
	"sync"
	"time"

	"questphone/core"
)

// Hook receives domain events for KPI aggregation.
type Hook interface {
	OnEvent(e core.Event)
}

// DAU tracks daily active users.
type DAU struct {
	mu   sync.Mutex
	days map[string]map[core.UserID]struct{}
}

func NewDAU() *DAU { return &DAU{days: map[string]map[core.UserID]struct{}{}} }

func (d *DAU) OnEvent(e core.Event) {
	day := e.Time.UTC().Format("2006-01-02")
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.days[day]
	if m == nil {
		m = map[core.UserID]struct{}{}
		d.days[day] = m
	}
	m[e.UserID] = struct{}{}
}

func (d *DAU) Count(day string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.days[day])
}

// WellbeingMetrics tracks the economy and streak KPIs the dashboard and
// exports read from.
type WellbeingMetrics struct {
	mu sync.RWMutex

	// user engagement
	dailyActiveUsers  map[string]map[core.UserID]struct{}
	weeklyActiveUsers map[string]map[core.UserID]struct{}

	// pass economy
	passesGrantedByDay map[string]int64
	passesUsedByDay    map[string]int64

	// coin economy
	coinUnlocksByDay map[string]int64
	coinsSpentByDay  map[string]int64
	coinsSpentByApp  map[core.AppID]int64

	// streaks
	streaksContinuedByDay map[string]int64
	streaksRescuedByDay   map[string]int64
	streaksBrokenByDay    map[string]int64
	freezersSpentByDay    map[string]int64

	// progression
	xpAwardedByDay    map[string]int64
	levelUpsByDay     map[string]int64
	levelDistribution map[int]int
}

func NewWellbeingMetrics() *WellbeingMetrics {
	return &WellbeingMetrics{
		dailyActiveUsers:      map[string]map[core.UserID]struct{}{},
		weeklyActiveUsers:     map[string]map[core.UserID]struct{}{},
		passesGrantedByDay:    map[string]int64{},
		passesUsedByDay:       map[string]int64{},
		coinUnlocksByDay:      map[string]int64{},
		coinsSpentByDay:       map[string]int64{},
		coinsSpentByApp:       map[core.AppID]int64{},
		streaksContinuedByDay: map[string]int64{},
		streaksRescuedByDay:   map[string]int64{},
		streaksBrokenByDay:    map[string]int64{},
		freezersSpentByDay:    map[string]int64{},
		xpAwardedByDay:        map[string]int64{},
		levelUpsByDay:         map[string]int64{},
		levelDistribution:     map[int]int{},
	}
}

func (m *WellbeingMetrics) OnEvent(e core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	day := e.Time.UTC().Format("2006-01-02")
	week := getWeekKey(e.Time)
	m.trackEngagement(e.UserID, day, week)

	switch e.Type {
	case core.EventPassesGranted:
		m.passesGrantedByDay[day] += int64(e.Passes)
	case core.EventFreePassUsed:
		m.passesUsedByDay[day]++
	case core.EventAppUnlocked:
		m.coinUnlocksByDay[day]++
		spent := -e.Delta
		m.coinsSpentByDay[day] += spent
		m.coinsSpentByApp[e.App] += spent
	case core.EventPointsAdded:
		if e.Metric == core.MetricXP && e.Delta > 0 {
			m.xpAwardedByDay[day] += e.Delta
		}
	case core.EventLevelUp:
		m.levelUpsByDay[day]++
		m.levelDistribution[e.Level]++
	case core.EventStreakContinued:
		m.streaksContinuedByDay[day]++
	case core.EventStreakRescued:
		m.streaksRescuedByDay[day]++
		if used, ok := e.Metadata["freezers_used"].(int); ok {
			m.freezersSpentByDay[day] += int64(used)
		}
	case core.EventStreakBroken:
		m.streaksBrokenByDay[day]++
	}
}

func (m *WellbeingMetrics) trackEngagement(user core.UserID, day, week string) {
	if m.dailyActiveUsers[day] == nil {
		m.dailyActiveUsers[day] = map[core.UserID]struct{}{}
	}
	m.dailyActiveUsers[day][user] = struct{}{}
	if m.weeklyActiveUsers[week] == nil {
		m.weeklyActiveUsers[week] = map[core.UserID]struct{}{}
	}
	m.weeklyActiveUsers[week][user] = struct{}{}
}

func (m *WellbeingMetrics) ActiveUsers(day string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.dailyActiveUsers[day])
}

func (m *WellbeingMetrics) WeeklyActiveUsers(week string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.weeklyActiveUsers[week])
}

func (m *WellbeingMetrics) PassesGranted(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.passesGrantedByDay[day]
}

func (m *WellbeingMetrics) PassesUsed(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.passesUsedByDay[day]
}

func (m *WellbeingMetrics) CoinUnlocks(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coinUnlocksByDay[day]
}

func (m *WellbeingMetrics) CoinsSpent(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coinsSpentByDay[day]
}

func (m *WellbeingMetrics) CoinsSpentOn(app core.AppID) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.coinsSpentByApp[app]
}

func (m *WellbeingMetrics) StreakCounts(day string) (continued, rescued, broken int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streaksContinuedByDay[day], m.streaksRescuedByDay[day], m.streaksBrokenByDay[day]
}

func (m *WellbeingMetrics) FreezersSpent(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.freezersSpentByDay[day]
}

func (m *WellbeingMetrics) XPAwarded(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.xpAwardedByDay[day]
}

func (m *WellbeingMetrics) LevelUps(day string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.levelUpsByDay[day]
}

// LevelDistribution returns a copy of the reached-level histogram.
func (m *WellbeingMetrics) LevelDistribution() map[int]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]int, len(m.levelDistribution))
	for k, v := range m.levelDistribution {
		out[k] = v
	}
	return out
}

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

func getWeekKey(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
