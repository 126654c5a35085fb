package engine

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"questphone/core"
)

// Rollover fires registered callbacks at local midnight. Pass budgets and
// other per-day state key off the calendar date, so the boundary only needs
// cache invalidation, but downstream consumers (aggregation, leaderboards)
// hook in here too.
type Rollover struct {
	cron *cron.Cron
	loc  *time.Location

	mu        sync.RWMutex
	callbacks []func(core.Day)
}

func NewRollover(loc *time.Location) *Rollover {
	if loc == nil {
		loc = time.Local
	}
	return &Rollover{
		cron: cron.New(cron.WithLocation(loc)),
		loc:  loc,
	}
}

// OnMidnight registers a callback invoked with the new day's date.
func (r *Rollover) OnMidnight(fn func(core.Day)) {
	r.mu.Lock()
	r.callbacks = append(r.callbacks, fn)
	r.mu.Unlock()
}

func (r *Rollover) Start() error {
	_, err := r.cron.AddFunc("0 0 * * *", r.fire)
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

func (r *Rollover) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Fire triggers the callbacks immediately; exposed so a device wake or a
// timezone change can force the boundary without waiting for the schedule.
func (r *Rollover) Fire() { r.fire() }

func (r *Rollover) fire() {
	day := core.DayOf(time.Now(), r.loc)
	r.mu.RLock()
	cbs := make([]func(core.Day), len(r.callbacks))
	copy(cbs, r.callbacks)
	r.mu.RUnlock()
	for _, fn := range cbs {
		fn(day)
	}
}
