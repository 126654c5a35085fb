package engine

import (
	"testing"

	"questphone/core"
)

func TestDayCacheRespectsDate(t *testing.T) {
	c := NewDayCache(8)
	c.Put(core.UserID("u"), core.FreePassState{Date: core.Day("2026-08-31"), Remaining: 4})

	if st, ok := c.Get(core.UserID("u"), core.Day("2026-08-31")); !ok || st.Remaining != 4 {
		t.Fatalf("same-day lookup failed: %+v ok=%v", st, ok)
	}
	if _, ok := c.Get(core.UserID("u"), core.Day("2026-09-01")); ok {
		t.Fatal("stale entry served across the day boundary")
	}
}

func TestDayCachePurge(t *testing.T) {
	c := NewDayCache(8)
	c.Put(core.UserID("a"), core.FreePassState{Date: core.Day("2026-08-31"), Remaining: 1})
	c.Put(core.UserID("b"), core.FreePassState{Date: core.Day("2026-08-31"), Remaining: 2})
	c.Purge()
	if _, ok := c.Get(core.UserID("a"), core.Day("2026-08-31")); ok {
		t.Fatal("entry survived purge")
	}
}
