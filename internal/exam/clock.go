package exam

import (
	"fmt"
	"strings"
	"time"
)

// SessionDuration is the fixed time budget of every test.
const SessionDuration = 30 * time.Minute

const naiveLayout = "2006-01-02 15:04:05"

// Clock derives remaining time from a session's start. The zero value uses
// the system clock.
type Clock struct {
	now func() time.Time
}

func NewClock(now func() time.Time) Clock {
	return Clock{now: now}
}

// Now is always UTC; session timestamps are stored as naive UTC values.
func (c Clock) Now() time.Time {
	if c.now == nil {
		return time.Now().UTC()
	}
	return c.now().UTC()
}

// ElapsedSeconds is floor(now - start) in whole seconds.
func (c Clock) ElapsedSeconds(start time.Time) int64 {
	d := c.Now().Sub(start)
	secs := int64(d / time.Second)
	if d < 0 && d%time.Second != 0 {
		secs--
	}
	return secs
}

// Remaining returns the seconds left on a session started at start, never
// negative. At exactly SessionDuration elapsed it is 0.
func (c Clock) Remaining(start time.Time) int64 {
	left := int64(SessionDuration/time.Second) - c.ElapsedSeconds(start)
	if left < 0 {
		return 0
	}
	return left
}

// Overdue reports whether more than SessionDuration plus grace has elapsed.
func (c Clock) Overdue(start time.Time, grace time.Duration) bool {
	return c.Now().Sub(start) > SessionDuration+grace
}

// AsUTC re-stamps the wall-clock reading of t as UTC without shifting it.
// Use it for timestamps that were stored without a zone.
func AsUTC(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// ParseStartTime reads a start timestamp. Values without an offset are UTC,
// never local time.
func ParseStartTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range []string{naiveLayout, "2006-01-02T15:04:05", "2006-01-02 15:04:05.999999999"} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse start time %q", v)
}
