package analytics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"questphone/core"
	"questphone/engine"
)

// all event types the analytics hooks care about
var trackedEvents = []core.EventType{
	core.EventPointsAdded,
	core.EventLevelUp,
	core.EventPassesGranted,
	core.EventFreePassUsed,
	core.EventAppUnlocked,
	core.EventStreakContinued,
	core.EventStreakRescued,
	core.EventStreakBroken,
	core.EventStreakMilestone,
}

// Service ties the usage log, KPI counters, aggregation, live streaming,
// and exports together behind a single object the server wires up once.
type Service struct {
	Usage      *UsageLog
	Metrics    *WellbeingMetrics
	Aggregator *AggregationEngine
	Publisher  *StreamPublisher
	Exporter   *ExportManager
	Prom       *PromHook

	unsubscribe []func()
}

// Options configures the analytics service.
type Options struct {
	AggregationInterval time.Duration
	ExportInterval      time.Duration
	MaxRecentEvents     int
	Exporters           []Exporter
	// Registry receives the Prometheus collectors when non-nil.
	Registry prometheus.Registerer
}

func NewService(opts Options) *Service {
	if opts.AggregationInterval <= 0 {
		opts.AggregationInterval = time.Hour
	}
	metrics := NewWellbeingMetrics()
	svc := &Service{
		Usage:      NewUsageLog(),
		Metrics:    metrics,
		Aggregator: NewAggregationEngine(metrics, opts.AggregationInterval),
		Publisher:  NewStreamPublisher(opts.MaxRecentEvents),
		Exporter:   NewExportManager(opts.Exporters...),
	}
	if opts.Registry != nil {
		svc.Prom = NewPromHook(opts.Registry)
	}
	return svc
}

// Hook returns the fan-out hook feeding every analytics sink.
func (s *Service) Hook(extra ...Hook) Hook {
	hooks := []Hook{s.Metrics, s.Publisher}
	if s.Prom != nil {
		hooks = append(hooks, s.Prom)
	}
	hooks = append(hooks, extra...)
	return NewBridge(hooks...)
}

// BindTo subscribes the analytics hooks to the wellbeing service's bus.
// Returns a function detaching all subscriptions.
func (s *Service) BindTo(svc *engine.WellbeingService, extra ...Hook) func() {
	hook := s.Hook(extra...)
	for _, typ := range trackedEvents {
		off := svc.Subscribe(typ, func(_ context.Context, e core.Event) {
			hook.OnEvent(e)
		})
		s.unsubscribe = append(s.unsubscribe, off)
	}
	return s.Detach
}

// Detach removes all bus subscriptions made by BindTo.
func (s *Service) Detach() {
	for _, off := range s.unsubscribe {
		off()
	}
	s.unsubscribe = nil
}

// Start runs aggregation and periodic export until ctx is cancelled.
func (s *Service) Start(ctx context.Context, exportInterval time.Duration) {
	go s.Aggregator.Start(ctx)
	if exportInterval > 0 {
		go s.exportLoop(ctx, exportInterval)
	}
}

func (s *Service) exportLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			daily := s.Aggregator.GetAllAggregatedData(PeriodDaily)
			_ = s.Exporter.ExportData(ctx, daily)
		}
	}
}

// Rollover prunes usage buckets outside the pass calculator's window.
func (s *Service) Rollover(day core.Day) {
	s.Usage.Prune(day.AddDays(-6))
}
