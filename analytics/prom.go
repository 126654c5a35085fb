package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"questphone/core"
)

// PromHook exposes the event stream as Prometheus counters.
type PromHook struct {
	passesGranted prometheus.Counter
	passesUsed    prometheus.Counter
	coinUnlocks   prometheus.Counter
	coinsSpent    prometheus.Counter
	xpAwarded     prometheus.Counter
	levelUps      prometheus.Counter
	streakEvents  *prometheus.CounterVec
}

// NewPromHook registers the collectors on reg and returns the hook.
func NewPromHook(reg prometheus.Registerer) *PromHook {
	factory := promauto.With(reg)
	return &PromHook{
		passesGranted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "questphone",
			Name:      "passes_granted_total",
			Help:      "Free passes granted across all users.",
		}),
		passesUsed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "questphone",
			Name:      "passes_used_total",
			Help:      "Free passes spent on app unlocks.",
		}),
		coinUnlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "questphone",
			Name:      "coin_unlocks_total",
			Help:      "App unlocks purchased with coins.",
		}),
		coinsSpent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "questphone",
			Name:      "coins_spent_total",
			Help:      "Coins spent on app unlocks.",
		}),
		xpAwarded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "questphone",
			Name:      "xp_awarded_total",
			Help:      "XP credited across all users.",
		}),
		levelUps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "questphone",
			Name:      "level_ups_total",
			Help:      "Level-up events.",
		}),
		streakEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "questphone",
			Name:      "streak_events_total",
			Help:      "Streak outcomes by kind.",
		}, []string{"kind"}),
	}
}

func (p *PromHook) OnEvent(e core.Event) {
	switch e.Type {
	case core.EventPassesGranted:
		p.passesGranted.Add(float64(e.Passes))
	case core.EventFreePassUsed:
		p.passesUsed.Inc()
	case core.EventAppUnlocked:
		p.coinUnlocks.Inc()
		p.coinsSpent.Add(float64(-e.Delta))
	case core.EventPointsAdded:
		if e.Metric == core.MetricXP && e.Delta > 0 {
			p.xpAwarded.Add(float64(e.Delta))
		}
	case core.EventLevelUp:
		p.levelUps.Inc()
	case core.EventStreakContinued:
		p.streakEvents.WithLabelValues("continued").Inc()
	case core.EventStreakRescued:
		p.streakEvents.WithLabelValues("rescued").Inc()
	case core.EventStreakBroken:
		p.streakEvents.WithLabelValues("broken").Inc()
	}
}
