package engine

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"questphone/core"
)

// DayCache fronts the persisted per-day pass state with a bounded
// in-process LRU. Storage remains the source of truth; entries here only
// save a round trip when many taps land on the same calendar day.
type DayCache struct {
	entries *lru.Cache[core.UserID, core.FreePassState]
}

const defaultDayCacheSize = 4096

func NewDayCache(size int) *DayCache {
	if size <= 0 {
		size = defaultDayCacheSize
	}
	c, err := lru.New[core.UserID, core.FreePassState](size)
	if err != nil {
		// lru.New only fails on non-positive size
		panic(err)
	}
	return &DayCache{entries: c}
}

// Get returns the cached pass state if it covers the given day.
func (c *DayCache) Get(user core.UserID, day core.Day) (core.FreePassState, bool) {
	st, ok := c.entries.Get(user)
	if !ok || !st.ValidOn(day) {
		return core.FreePassState{}, false
	}
	return st, true
}

func (c *DayCache) Put(user core.UserID, st core.FreePassState) {
	c.entries.Add(user, st)
}

func (c *DayCache) Forget(user core.UserID) {
	c.entries.Remove(user)
}

// Purge drops everything; called on day rollover.
func (c *DayCache) Purge() {
	c.entries.Purge()
}
