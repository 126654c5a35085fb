package engine

import (
	"testing"
	"time"

	"questphone/core"
)

func TestRolloverFire(t *testing.T) {
	r := NewRollover(time.UTC)
	defer r.Stop()

	var got []core.Day
	r.OnMidnight(func(d core.Day) { got = append(got, d) })
	r.OnMidnight(func(d core.Day) { got = append(got, d) })

	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	r.Fire()
	if len(got) != 2 {
		t.Fatalf("expected both callbacks to run, got %d", len(got))
	}
	want := core.DayOf(time.Now(), time.UTC)
	if got[0] != want || got[1] != want {
		t.Fatalf("expected day %s, got %v", want, got)
	}
}
