package core

import (
	"fmt"
	"time"
)

// Day is a calendar day in ISO "2006-01-02" form. The zero value is
// treated as "never" (sorts before every real day).
type Day string

const dayLayout = "2006-01-02"

// ZeroDay is the sentinel for accounts that have never completed a day.
const ZeroDay Day = "0001-01-01"

// DayOf truncates a timestamp to its calendar day in the given location.
func DayOf(t time.Time, loc *time.Location) Day {
	if loc == nil {
		loc = time.UTC
	}
	return Day(t.In(loc).Format(dayLayout))
}

// ParseDay parses an ISO date string.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(dayLayout, s); err != nil {
		return "", fmt.Errorf("invalid day %q: %w", s, err)
	}
	return Day(s), nil
}

// Time returns midnight of the day in the given location.
func (d Day) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(dayLayout, string(d), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the day shifted by n calendar days.
func (d Day) AddDays(n int) Day {
	return Day(d.Time(time.UTC).AddDate(0, 0, n).Format(dayLayout))
}

// Sub returns the number of calendar days from other to d.
func (d Day) Sub(other Day) int {
	a := d.Time(time.UTC)
	b := other.Time(time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

// IsZero reports whether the day is unset or the never sentinel.
func (d Day) IsZero() bool {
	return d == "" || d == ZeroDay
}
