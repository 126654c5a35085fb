package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"questphone/core"
)

// Store persists entire state to a single JSON file.
// Suitable for single-device deployments and demos.
type Store struct {
	path string
	mu   sync.Mutex
	// in-memory cache for speed
	data map[core.UserID]*userDoc
}

type userDoc struct {
	State    core.UserState       `json:"state"`
	Passes   *core.FreePassState  `json:"passes,omitempty"`
	Unlocks  map[core.AppID]int64 `json:"unlocks,omitempty"`
	Settings map[string]int       `json:"settings,omitempty"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]*userDoc{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]*userDoc
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if v.Unlocks == nil {
			v.Unlocks = map[core.AppID]int64{}
		}
		if v.Settings == nil {
			v.Settings = map[string]int{}
		}
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]*userDoc, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) get(user core.UserID) *userDoc {
	if doc, ok := s.data[user]; ok {
		return doc
	}
	doc := &userDoc{
		State:    core.NewUserState(user, time.Now().UTC()),
		Unlocks:  map[core.AppID]int64{},
		Settings: map[string]int{},
	}
	s.data[user] = doc
	return doc
}

func (s *Store) GetState(_ context.Context, user core.UserID) (core.UserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).State.Clone(), nil
}

func (s *Store) AddPoints(_ context.Context, user core.UserID, metric core.Metric, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.get(user)
	next, err := core.AddSafe(doc.State.Points[metric], delta)
	if err != nil {
		return 0, err
	}
	if next < 0 {
		return 0, core.ErrNegativeBalance
	}
	doc.State.Points[metric] = next
	doc.State.Updated = time.Now().UTC()
	if err := s.persist(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) SetLevel(_ context.Context, user core.UserID, level int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.get(user)
	doc.State.Level = level
	doc.State.Updated = time.Now().UTC()
	return s.persist()
}

func (s *Store) SetStreak(_ context.Context, user core.UserID, streak core.StreakData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.get(user)
	doc.State.Streak = streak
	doc.State.Updated = time.Now().UTC()
	return s.persist()
}

func (s *Store) AdjustInventory(_ context.Context, user core.UserID, item core.Item, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.get(user)
	next := doc.State.Inventory[item] + delta
	if next < 0 {
		next = 0
	}
	doc.State.Inventory[item] = next
	doc.State.Updated = time.Now().UTC()
	if err := s.persist(); err != nil {
		return 0, err
	}
	return next, nil
}

func (s *Store) SetBoost(_ context.Context, user core.UserID, item core.Item, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.get(user)
	doc.State.ActiveBoosts[item] = until
	doc.State.Updated = time.Now().UTC()
	return s.persist()
}

func (s *Store) PassState(_ context.Context, user core.UserID) (core.FreePassState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.get(user)
	if doc.Passes == nil {
		return core.FreePassState{}, false, nil
	}
	return *doc.Passes, true, nil
}

func (s *Store) SetPassState(_ context.Context, user core.UserID, st core.FreePassState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.get(user)
	doc.Passes = &st
	return s.persist()
}

func (s *Store) UnlockedUntil(_ context.Context, user core.UserID, app core.AppID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(user).Unlocks[app], nil
}

func (s *Store) SetUnlockedUntil(_ context.Context, user core.UserID, app core.AppID, untilMillis int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(user).Unlocks[app] = untilMillis
	return s.persist()
}

func (s *Store) Setting(_ context.Context, user core.UserID, key string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.get(user).Settings[key]
	return v, ok, nil
}

func (s *Store) SetSetting(_ context.Context, user core.UserID, key string, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.get(user).Settings[key] = value
	return s.persist()
}

func (s *Store) SetDistraction(_ context.Context, user core.UserID, app core.AppID, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.get(user)
	if blocked {
		doc.State.Distractions[app] = struct{}{}
	} else {
		delete(doc.State.Distractions, app)
	}
	doc.State.Updated = time.Now().UTC()
	return s.persist()
}
