package core

import (
	"errors"
	"math"
	"strings"
	"time"
)

// UserID uniquely identifies a user in the wellbeing domain.
type UserID string

// AppID is the package name of an installed application (e.g. "com.example.feed").
type AppID string

// Metric represents a points counter namespace.
type Metric string

const (
	MetricXP    Metric = "xp"
	MetricCoins Metric = "coins"
)

// Item is a consumable inventory item identifier.
type Item string

const (
	ItemStreakFreezer Item = "streak_freezer"
	ItemXPBooster     Item = "xp_booster"
	ItemQuestSkipper  Item = "quest_skipper"
)

// StartingFreezers is granted to every new account.
const StartingFreezers = 2

// UserState is an immutable snapshot of a user's wellbeing state.
// Implementations should return deep copies to maintain immutability guarantees.
type UserState struct {
	UserID       UserID             `json:"user_id"`
	Points       map[Metric]int64   `json:"points"`
	Inventory    map[Item]int       `json:"inventory"`
	Level        int                `json:"level"`
	Streak       StreakData         `json:"streak"`
	Distractions map[AppID]struct{} `json:"distractions"`
	ActiveBoosts map[Item]time.Time `json:"active_boosts"`
	CreatedOn    time.Time          `json:"created_on"`
	Updated      time.Time          `json:"updated"`
}

// NewUserState returns the default state for a fresh account.
func NewUserState(user UserID, now time.Time) UserState {
	return UserState{
		UserID:       user,
		Points:       map[Metric]int64{},
		Inventory:    map[Item]int{ItemStreakFreezer: StartingFreezers},
		Level:        1,
		Streak:       StreakData{},
		Distractions: map[AppID]struct{}{},
		ActiveBoosts: map[Item]time.Time{},
		CreatedOn:    now.UTC(),
		Updated:      now.UTC(),
	}
}

// Clone returns a deep copy of the state to uphold immutability.
func (s UserState) Clone() UserState {
	cp := UserState{
		UserID:       s.UserID,
		Points:       make(map[Metric]int64, len(s.Points)),
		Inventory:    make(map[Item]int, len(s.Inventory)),
		Level:        s.Level,
		Streak:       s.Streak,
		Distractions: make(map[AppID]struct{}, len(s.Distractions)),
		ActiveBoosts: make(map[Item]time.Time, len(s.ActiveBoosts)),
		CreatedOn:    s.CreatedOn,
		Updated:      s.Updated,
	}
	for k, v := range s.Points {
		cp.Points[k] = v
	}
	for k, v := range s.Inventory {
		cp.Inventory[k] = v
	}
	for k := range s.Distractions {
		cp.Distractions[k] = struct{}{}
	}
	for k, v := range s.ActiveBoosts {
		cp.ActiveBoosts[k] = v
	}
	return cp
}

// BoosterActive reports whether a time-bound boost is still running at now.
func (s UserState) BoosterActive(item Item, now time.Time) bool {
	until, ok := s.ActiveBoosts[item]
	return ok && now.Before(until)
}

// AccountAgeDays is the number of whole days since the account was created.
func (s UserState) AccountAgeDays(now time.Time) int {
	d := int(now.UTC().Sub(s.CreatedOn.UTC()).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// ErrNegativeBalance rejects a debit that would drive a point balance
// below zero. Storage adapters enforce it inside their atomic update so
// concurrent spends cannot overdraw.
var ErrNegativeBalance = errors.New("balance cannot go negative")

// AddSafe adds delta to base ensuring no signed overflow occurs.
func AddSafe(base int64, delta int64) (int64, error) {
	if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
		return 0, errors.New("integer overflow in AddSafe")
	}
	return base + delta, nil
}

// NormalizeUserID trims and lowercases user identifiers.
func NormalizeUserID(id UserID) (UserID, error) {
	s := strings.TrimSpace(string(id))
	if s == "" {
		return "", errors.New("empty user id")
	}
	return UserID(strings.ToLower(s)), nil
}

// ValidateAppID ensures a non-empty package-name-shaped identifier.
func ValidateAppID(a AppID) error {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return errors.New("empty app id")
	}
	// simple check: alnum, dot, dash, underscore
	for _, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '-' || r == '_' {
			continue
		}
		return errors.New("invalid app id")
	}
	return nil
}

// XPToLevelUp is the total XP required to reach the given level.
func XPToLevelUp(level int) int64 {
	return int64(100 * level * level)
}

// LevelForXP computes the level a total XP amount corresponds to, at least 1.
func LevelForXP(totalXP int64) int {
	lvl := 1
	for totalXP >= XPToLevelUp(lvl+1) {
		lvl++
	}
	return lvl
}

// LevelUpCoinReward is the coin grant for reaching a level.
func LevelUpCoinReward(level int) int64 {
	r := int64(level) * int64(level)
	if r < 50 {
		return 50
	}
	return r
}

// LevelUpItemRewards returns the inventory grants for reaching a level:
// a quest skipper every level, an XP booster on even levels and a streak
// freezer every fifth level.
func LevelUpItemRewards(level int) map[Item]int {
	rewards := map[Item]int{ItemQuestSkipper: 1}
	if level%2 == 0 {
		rewards[ItemXPBooster] = 1
	}
	if level%5 == 0 {
		rewards[ItemStreakFreezer] = 1
	}
	return rewards
}
