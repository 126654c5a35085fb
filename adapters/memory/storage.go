package memory

import (
	"context"
	"sync"
	"time"

	"questphone/core"
)

// Store is a concurrent in-memory Storage implementation. It is the
// default backend and the reference for adapter semantics: inventory
// floors at zero, GetState returns deep copies.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu       sync.Mutex
	state    core.UserState
	passes   core.FreePassState
	hasPass  bool
	unlocks  map[core.AppID]int64
	settings map[string]int
}

func New() *Store { return &Store{} }

func (s *Store) getOrCreate(user core.UserID) *userRecord {
	if v, ok := s.users.Load(user); ok {
		return v.(*userRecord)
	}
	rec := &userRecord{
		state:    core.NewUserState(user, time.Now().UTC()),
		unlocks:  map[core.AppID]int64{},
		settings: map[string]int{},
	}
	actual, _ := s.users.LoadOrStore(user, rec)
	return actual.(*userRecord)
}

func (s *Store) GetState(_ context.Context, user core.UserID) (core.UserState, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state.Clone(), nil
}

func (s *Store) AddPoints(_ context.Context, user core.UserID, metric core.Metric, delta int64) (int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next, err := core.AddSafe(rec.state.Points[metric], delta)
	if err != nil {
		return 0, err
	}
	if next < 0 {
		return 0, core.ErrNegativeBalance
	}
	rec.state.Points[metric] = next
	rec.state.Updated = time.Now().UTC()
	return next, nil
}

func (s *Store) SetLevel(_ context.Context, user core.UserID, level int) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.state.Level = level
	rec.state.Updated = time.Now().UTC()
	return nil
}

func (s *Store) SetStreak(_ context.Context, user core.UserID, streak core.StreakData) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.state.Streak = streak
	rec.state.Updated = time.Now().UTC()
	return nil
}

func (s *Store) AdjustInventory(_ context.Context, user core.UserID, item core.Item, delta int) (int, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	next := rec.state.Inventory[item] + delta
	if next < 0 {
		next = 0
	}
	rec.state.Inventory[item] = next
	rec.state.Updated = time.Now().UTC()
	return next, nil
}

func (s *Store) SetBoost(_ context.Context, user core.UserID, item core.Item, until time.Time) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.state.ActiveBoosts[item] = until
	rec.state.Updated = time.Now().UTC()
	return nil
}

func (s *Store) PassState(_ context.Context, user core.UserID) (core.FreePassState, bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.passes, rec.hasPass, nil
}

func (s *Store) SetPassState(_ context.Context, user core.UserID, st core.FreePassState) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.passes = st
	rec.hasPass = true
	return nil
}

func (s *Store) UnlockedUntil(_ context.Context, user core.UserID, app core.AppID) (int64, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.unlocks[app], nil
}

func (s *Store) SetUnlockedUntil(_ context.Context, user core.UserID, app core.AppID, untilMillis int64) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.unlocks[app] = untilMillis
	return nil
}

func (s *Store) Setting(_ context.Context, user core.UserID, key string) (int, bool, error) {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	v, ok := rec.settings[key]
	return v, ok, nil
}

func (s *Store) SetSetting(_ context.Context, user core.UserID, key string, value int) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.settings[key] = value
	return nil
}

func (s *Store) SetDistraction(_ context.Context, user core.UserID, app core.AppID, blocked bool) error {
	rec := s.getOrCreate(user)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if blocked {
		rec.state.Distractions[app] = struct{}{}
	} else {
		delete(rec.state.Distractions, app)
	}
	rec.state.Updated = time.Now().UTC()
	return nil
}
