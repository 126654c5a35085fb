package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questphone/core"
)

// SettingMinutesPerFive is the storage key for the coin-to-minutes ratio.
const SettingMinutesPerFive = "minutes_per_5"

var (
	// ErrNoFreePasses is returned when the day's pass budget is exhausted
	// or was never computed for today.
	ErrNoFreePasses = errors.New("no free passes left today")
	// ErrInsufficientCoins rejects a coin unlock the balance cannot cover.
	ErrInsufficientCoins = errors.New("insufficient coin balance")
	// ErrNotDistraction is returned when a coin or pass unlock targets an
	// app the user never gated.
	ErrNotDistraction = errors.New("app is not marked as a distraction")
)

// WellbeingService wires storage, event bus, and rules into a cohesive API
// for the pass economy, the streak engine, and the app unlock gate.
type WellbeingService struct {
	storage Storage
	bus     *EventBus
	rules   RuleEngine
	passes  *DayCache
	now     func() time.Time
	loc     *time.Location
}

func NewWellbeingService(storage Storage, bus *EventBus, rules RuleEngine) *WellbeingService {
	if storage == nil || bus == nil || rules == nil {
		panic("NewWellbeingService requires non-nil storage, bus, and rules")
	}
	return &WellbeingService{
		storage: storage,
		bus:     bus,
		rules:   rules,
		passes:  NewDayCache(0),
		now:     time.Now,
		loc:     time.Local,
	}
}

func DefaultRuleEngine() RuleEngine {
	return &simpleRuleEngine{rules: []core.Rule{
		core.LevelUpRule{},
		core.StreakMilestoneRule{Milestones: []int{7, 30, 100, 365}},
	}}
}

// SetClock overrides the time source; tests use this to cross day
// boundaries deterministically.
func (w *WellbeingService) SetClock(now func() time.Time) {
	if now != nil {
		w.now = now
	}
}

// SetLocation sets the timezone used for calendar-day boundaries.
func (w *WellbeingService) SetLocation(loc *time.Location) {
	if loc != nil {
		w.loc = loc
	}
}

func (w *WellbeingService) today() core.Day {
	return core.DayOf(w.now(), w.loc)
}

// Today is the current calendar day in the service's timezone.
func (w *WellbeingService) Today() core.Day { return w.today() }

// Subscribe convenience method.
func (w *WellbeingService) Subscribe(typ core.EventType, handler func(context.Context, core.Event)) func() {
	return w.bus.Subscribe(typ, handler)
}

func (w *WellbeingService) Publish(ctx context.Context, ev core.Event) {
	w.bus.Publish(ctx, ev)
}

func (w *WellbeingService) GetState(ctx context.Context, user core.UserID) (core.UserState, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.UserState{}, err
	}
	return w.storage.GetState(ctx, normalized)
}

// AvailablePasses returns today's free-pass budget, computing and caching
// it on the first call of the day. Same-day calls return the cached value
// unchanged even when fresh usage data is supplied.
func (w *WellbeingService) AvailablePasses(ctx context.Context, user core.UserID, screenTimeHours []float64) (int, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return 0, err
	}
	today := w.today()

	if st, ok := w.passes.Get(normalized, today); ok {
		return st.Remaining, nil
	}
	if st, ok, err := w.storage.PassState(ctx, normalized); err != nil {
		return 0, err
	} else if ok && st.ValidOn(today) {
		w.passes.Put(normalized, st)
		return st.Remaining, nil
	}

	state, err := w.storage.GetState(ctx, normalized)
	if err != nil {
		return 0, err
	}
	granted := core.CalculatePasses(core.PassInputs{
		ScreenTimeHours: screenTimeHours,
		Streak:          state.Streak.Current,
		AccountAgeDays:  state.AccountAgeDays(w.now()),
		Level:           state.Level,
	})
	st := core.FreePassState{Date: today, Remaining: granted}
	if err := w.storage.SetPassState(ctx, normalized, st); err != nil {
		return 0, err
	}
	w.passes.Put(normalized, st)
	w.bus.Publish(ctx, core.NewPassesGranted(normalized, granted, today))
	return granted, nil
}

// UseFreePass spends one of today's passes on a gated app and grants the
// fixed ten-minute unlock window. Returns the window deadline.
func (w *WellbeingService) UseFreePass(ctx context.Context, user core.UserID, app core.AppID) (time.Time, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return time.Time{}, err
	}
	if err := core.ValidateAppID(app); err != nil {
		return time.Time{}, err
	}
	today := w.today()

	state, err := w.storage.GetState(ctx, normalized)
	if err != nil {
		return time.Time{}, err
	}
	if _, blocked := state.Distractions[app]; !blocked {
		return time.Time{}, ErrNotDistraction
	}

	st, ok, err := w.storage.PassState(ctx, normalized)
	if err != nil {
		return time.Time{}, err
	}
	if !ok || !st.ValidOn(today) || st.Remaining <= 0 {
		return time.Time{}, ErrNoFreePasses
	}

	st.Remaining--
	if err := w.storage.SetPassState(ctx, normalized, st); err != nil {
		return time.Time{}, err
	}
	w.passes.Put(normalized, st)

	deadline := w.now().Add(core.FreePassWindow)
	if err := w.storage.SetUnlockedUntil(ctx, normalized, app, deadline.UnixMilli()); err != nil {
		return time.Time{}, err
	}
	w.bus.Publish(ctx, core.NewFreePassUsed(normalized, app, st.Remaining))
	return deadline, nil
}

// TapApp resolves what happens when the user taps an app: launch it, or
// show the paywall.
func (w *WellbeingService) TapApp(ctx context.Context, user core.UserID, app core.AppID) (core.Decision, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.Paywall, err
	}
	if err := core.ValidateAppID(app); err != nil {
		return core.Paywall, err
	}
	state, err := w.storage.GetState(ctx, normalized)
	if err != nil {
		return core.Paywall, err
	}
	_, blocked := state.Distractions[app]
	until, err := w.storage.UnlockedUntil(ctx, normalized, app)
	if err != nil {
		return core.Paywall, err
	}
	return core.DecideLaunch(blocked, until, w.now().UnixMilli()), nil
}

// UnlockWithCoins deducts coins and opens an unlock window scaled by the
// user's coin-to-minutes ratio. Returns the window deadline in unix millis.
func (w *WellbeingService) UnlockWithCoins(ctx context.Context, user core.UserID, app core.AppID, coins int) (int64, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return 0, err
	}
	if err := core.ValidateAppID(app); err != nil {
		return 0, err
	}
	state, err := w.storage.GetState(ctx, normalized)
	if err != nil {
		return 0, err
	}
	if _, blocked := state.Distractions[app]; !blocked {
		return 0, ErrNotDistraction
	}
	ratio, err := w.UnlockRatio(ctx, normalized)
	if err != nil {
		return 0, err
	}
	window, err := core.UnlockWindow(coins, ratio)
	if err != nil {
		return 0, err
	}
	if state.Points[core.MetricCoins] < int64(coins) {
		return 0, ErrInsufficientCoins
	}
	// The balance re-check lives inside the storage write, so a concurrent
	// unlock that drained the balance after the read above still fails.
	total, err := w.storage.AddPoints(ctx, normalized, core.MetricCoins, -int64(coins))
	if errors.Is(err, core.ErrNegativeBalance) {
		return 0, ErrInsufficientCoins
	}
	if err != nil {
		return 0, err
	}
	until := w.now().Add(window).UnixMilli()
	if err := w.storage.SetUnlockedUntil(ctx, normalized, app, until); err != nil {
		return 0, err
	}
	w.bus.Publish(ctx, core.NewPointsAdded(normalized, core.MetricCoins, -int64(coins), total))
	w.bus.Publish(ctx, core.NewAppUnlocked(normalized, app, int64(coins), until))
	return until, nil
}

// UnlockRatio returns the user's minutes-per-five-coins setting.
func (w *WellbeingService) UnlockRatio(ctx context.Context, user core.UserID) (int, error) {
	v, ok, err := w.storage.Setting(ctx, user, SettingMinutesPerFive)
	if err != nil {
		return 0, err
	}
	if !ok || v <= 0 {
		return core.DefaultMinutesPerFiveCoins, nil
	}
	return v, nil
}

// SetUnlockRatio persists a new minutes-per-five-coins ratio.
func (w *WellbeingService) SetUnlockRatio(ctx context.Context, user core.UserID, minutes int) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	if minutes <= 0 {
		return fmt.Errorf("unlock ratio must be positive, got %d", minutes)
	}
	return w.storage.SetSetting(ctx, normalized, SettingMinutesPerFive, minutes)
}

// SetDistraction adds or removes an app from the user's gated set.
func (w *WellbeingService) SetDistraction(ctx context.Context, user core.UserID, app core.AppID, blocked bool) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	if err := core.ValidateAppID(app); err != nil {
		return err
	}
	return w.storage.SetDistraction(ctx, normalized, app, blocked)
}

// EvaluateStreak checks whether the streak survived the last day boundary,
// rescuing it with freezers when possible. Run once per home-screen load.
func (w *WellbeingService) EvaluateStreak(ctx context.Context, user core.UserID) (core.StreakOutcome, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return core.StreakOutcome{}, err
	}
	state, err := w.storage.GetState(ctx, normalized)
	if err != nil {
		return core.StreakOutcome{}, err
	}
	today := w.today()

	missed, failed := core.DaysMissed(state.Streak.LastCompleted, today)
	if !failed {
		return core.StreakOutcome{Kind: core.StreakContinued, NewStreak: state.Streak.Current}, nil
	}

	out := core.SpendFreezers(missed, state.Inventory[core.ItemStreakFreezer], state.Streak.Current)
	if out.FreezersUsed > 0 {
		if _, err := w.storage.AdjustInventory(ctx, normalized, core.ItemStreakFreezer, -out.FreezersUsed); err != nil {
			return core.StreakOutcome{}, err
		}
	}

	streak := state.Streak
	switch out.Kind {
	case core.StreakRescued:
		// freezers cover the gap; pretend yesterday was completed so a
		// completion today continues the run
		streak.LastCompleted = today.AddDays(-1)
		if err := w.storage.SetStreak(ctx, normalized, streak); err != nil {
			return core.StreakOutcome{}, err
		}
		if out.XPEarned > 0 {
			if err := w.AddXP(ctx, normalized, out.XPEarned); err != nil {
				return core.StreakOutcome{}, err
			}
		}
		w.bus.Publish(ctx, core.NewStreakRescued(normalized, out.NewStreak, out.FreezersUsed))
	case core.StreakBroken:
		if streak.Current > streak.Longest {
			streak.Longest = streak.Current
		}
		streak.Current = 0
		if err := w.storage.SetStreak(ctx, normalized, streak); err != nil {
			return core.StreakOutcome{}, err
		}
		w.bus.Publish(ctx, core.NewStreakBroken(normalized, out.DaysLost))
	}
	return out, nil
}

// ContinueStreak records that all of today's quests are complete. Only the
// first call of a day increments the streak and awards XP; repeats return
// false.
func (w *WellbeingService) ContinueStreak(ctx context.Context, user core.UserID) (bool, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return false, err
	}
	state, err := w.storage.GetState(ctx, normalized)
	if err != nil {
		return false, err
	}
	today := w.today()
	if state.Streak.LastCompleted == today {
		return false, nil
	}

	streak := state.Streak
	streak.Current++
	if streak.Current > streak.Longest {
		streak.Longest = streak.Current
	}
	streak.LastCompleted = today
	if err := w.storage.SetStreak(ctx, normalized, streak); err != nil {
		return false, err
	}
	xp := core.XPFromStreak(streak.Current)
	if err := w.AddXP(ctx, normalized, xp); err != nil {
		return false, err
	}
	ev := core.NewStreakContinued(normalized, streak.Current, xp)
	w.bus.Publish(ctx, ev)
	state.Streak = streak
	for _, derived := range w.rules.Evaluate(ctx, state, ev) {
		w.bus.Publish(ctx, derived)
	}
	return true, nil
}

// AddXP credits experience, doubling it while an XP booster is active, and
// applies any level-ups the new total unlocks (coins plus item rewards).
func (w *WellbeingService) AddXP(ctx context.Context, user core.UserID, xp int64) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	if xp <= 0 {
		return errors.New("xp must be positive")
	}
	state, err := w.storage.GetState(ctx, normalized)
	if err != nil {
		return err
	}
	if state.BoosterActive(core.ItemXPBooster, w.now()) {
		xp *= 2
	}
	total, err := w.storage.AddPoints(ctx, normalized, core.MetricXP, xp)
	if err != nil {
		return err
	}
	ev := core.NewPointsAdded(normalized, core.MetricXP, xp, total)
	w.bus.Publish(ctx, ev)

	state, err = w.storage.GetState(ctx, normalized)
	if err != nil {
		return err
	}
	for _, derived := range w.rules.Evaluate(ctx, state, ev) {
		if derived.Type == core.EventLevelUp {
			if err := w.applyLevelUp(ctx, normalized, derived.Level); err != nil {
				return err
			}
		}
		w.bus.Publish(ctx, derived)
	}
	return nil
}

func (w *WellbeingService) applyLevelUp(ctx context.Context, user core.UserID, level int) error {
	if err := w.storage.SetLevel(ctx, user, level); err != nil {
		return err
	}
	coins := core.LevelUpCoinReward(level)
	total, err := w.storage.AddPoints(ctx, user, core.MetricCoins, coins)
	if err != nil {
		return err
	}
	w.bus.Publish(ctx, core.NewPointsAdded(user, core.MetricCoins, coins, total))
	for item, n := range core.LevelUpItemRewards(level) {
		if _, err := w.storage.AdjustInventory(ctx, user, item, n); err != nil {
			return err
		}
	}
	return nil
}

// AddCoins credits (or debits) the coin balance directly; quest rewards and
// store purchases route through here.
func (w *WellbeingService) AddCoins(ctx context.Context, user core.UserID, delta int64) (int64, error) {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return 0, err
	}
	if delta == 0 {
		return 0, errors.New("delta cannot be zero")
	}
	total, err := w.storage.AddPoints(ctx, normalized, core.MetricCoins, delta)
	if err != nil {
		return 0, err
	}
	w.bus.Publish(ctx, core.NewPointsAdded(normalized, core.MetricCoins, delta, total))
	return total, nil
}

// ActivateBooster starts a time-bound boost, consuming one inventory item.
func (w *WellbeingService) ActivateBooster(ctx context.Context, user core.UserID, item core.Item, duration time.Duration) error {
	normalized, err := core.NormalizeUserID(user)
	if err != nil {
		return err
	}
	state, err := w.storage.GetState(ctx, normalized)
	if err != nil {
		return err
	}
	if state.Inventory[item] <= 0 {
		return fmt.Errorf("no %s in inventory", item)
	}
	if _, err := w.storage.AdjustInventory(ctx, normalized, item, -1); err != nil {
		return err
	}
	return w.storage.SetBoost(ctx, normalized, item, w.now().Add(duration))
}

// Rollover clears per-day caches at the day boundary.
func (w *WellbeingService) Rollover(core.Day) {
	w.passes.Purge()
}

func (w *WellbeingService) Close() { w.bus.Close() }

type simpleRuleEngine struct{ rules []core.Rule }

func (s *simpleRuleEngine) Evaluate(ctx context.Context, state core.UserState, trigger core.Event) []core.Event {
	var out []core.Event
	for _, r := range s.rules {
		out = append(out, r.Evaluate(ctx, state, trigger)...)
	}
	return out
}
