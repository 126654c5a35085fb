// Package wellbeing assembles the engine and its companions behind one
// builder, for embedders that do not want to wire storage, event bus and
// hooks by hand.
package wellbeing

import (
	"context"

	mem "questphone/adapters/memory"
	"questphone/core"
	"questphone/engine"
	"questphone/leaderboard"
	"questphone/realtime"
)

// Option configures the service builder.
type Option func(*config)

type config struct {
	storage engine.Storage
	mode    engine.DispatchMode
	rules   engine.RuleEngine
	hub     *realtime.Hub
	board   leaderboard.Board
}

// WithStorage sets the persistence adapter.
func WithStorage(s engine.Storage) Option { return func(c *config) { c.storage = s } }

// WithRuleEngine sets the rule engine.
func WithRuleEngine(r engine.RuleEngine) Option { return func(c *config) { c.rules = r } }

// WithDispatchMode selects sync or async event dispatch.
func WithDispatchMode(m engine.DispatchMode) Option { return func(c *config) { c.mode = m } }

// WithRealtime wires a realtime hub to receive all engine events.
func WithRealtime(h *realtime.Hub) Option { return func(c *config) { c.hub = h } }

// WithLeaderboard keeps a streak leaderboard updated from engine events.
func WithLeaderboard(b leaderboard.Board) Option { return func(c *config) { c.board = b } }

// eventTypes is every event the engine publishes.
var eventTypes = []core.EventType{
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

// New builds a configured WellbeingService. Defaults when not provided:
//   - storage: in-memory
//   - rules: DefaultRuleEngine
//   - dispatch: async
func New(opts ...Option) *engine.WellbeingService {
	cfg := &config{mode: engine.DispatchAsync, rules: engine.DefaultRuleEngine()}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.storage == nil {
		cfg.storage = mem.New()
	}
	bus := engine.NewEventBus(cfg.mode)
	svc := engine.NewWellbeingService(cfg.storage, bus, cfg.rules)
	if cfg.hub != nil {
		for _, typ := range eventTypes {
			bus.Subscribe(typ, func(ctx context.Context, e core.Event) { cfg.hub.Broadcast(ctx, e) })
		}
	}
	if cfg.board != nil {
		hook := leaderboard.NewHook(cfg.board)
		for _, typ := range []core.EventType{core.EventStreakContinued, core.EventStreakBroken} {
			bus.Subscribe(typ, func(_ context.Context, e core.Event) { hook.OnEvent(e) })
		}
	}
	return svc
}
