package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a time of day with second precision.
type Clock struct {
	Hour, Minute, Second int
}

func (c Clock) seconds() int { return c.Hour*3600 + c.Minute*60 + c.Second }

// Before reports whether c is earlier in the day than o.
func (c Clock) Before(o Clock) bool { return c.seconds() < o.seconds() }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", c.Hour, c.Minute, c.Second)
}

// ClockOf returns the time-of-day part of t in its own location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()}
}

// ParseClock reads "HH", "HH:MM" or "HH:MM:SS". Missing parts are zero and
// anything malformed yields 00:00:00.
func ParseClock(s string) Clock {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) == 0 || len(parts) > 3 {
		return Clock{}
	}
	vals := [3]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Clock{}
		}
		vals[i] = n
	}
	c := Clock{Hour: vals[0], Minute: vals[1], Second: vals[2]}
	if c.Hour < 0 || c.Hour > 23 || c.Minute < 0 || c.Minute > 59 || c.Second < 0 || c.Second > 59 {
		return Clock{}
	}
	return c
}

// IsOpen reports whether now falls inside [start, end], wrapping past
// midnight when start is after end.
func IsOpen(now, start, end Clock) bool {
	n, s, e := now.seconds(), start.seconds(), end.seconds()
	if s <= e {
		return s <= n && n <= e
	}
	return n >= s || n <= e
}

// Gate evaluates the configured trading window in a fixed timezone.
type Gate struct {
	start, end Clock
	loc        *time.Location
	now        func() time.Time
}

func NewGate(start, end string, loc *time.Location) *Gate {
	if loc == nil {
		loc = time.Local
	}
	return &Gate{
		start: ParseClock(start),
		end:   ParseClock(end),
		loc:   loc,
		now:   time.Now,
	}
}

// WithClock overrides the wall clock, for tests and replays.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

func (g *Gate) Now() time.Time { return g.now().In(g.loc) }

func (g *Gate) IsOpen() bool { return g.IsOpenAt(g.now()) }

func (g *Gate) IsOpenAt(t time.Time) bool {
	return IsOpen(ClockOf(t.In(g.loc)), g.start, g.end)
}

// Today is the current trading date in the gate's timezone.
func (g *Gate) Today() string { return g.Now().Format("2006-01-02") }

func (g *Gate) Window() (start, end Clock) { return g.start, g.end }
