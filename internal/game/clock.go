package game

import "time"

const day = 24 * time.Hour

// DayClock converts between a backend's native clock and a wall-clock time on the current day.
// Native values count Units of in-game time since Offset; the result wraps around midnight. The
// conversion is meant for display and does not round trip exactly.
type DayClock struct {
	// Unit is the in-game time represented by one native unit.
	Unit time.Duration
	// Offset is the in-game time of day at native zero.
	Offset time.Duration
	// Now returns the current time. time.Now is used if nil.
	Now func() time.Time
}

// Canonical converts a native clock value to a time on today's date.
func (c DayClock) Canonical(native float64) time.Time {
	d := c.Offset + time.Duration(native*float64(c.Unit))
	return midnight(c.now()).Add(wrapDay(d))
}

// Native converts the time of day of t to a native clock value.
func (c DayClock) Native(t time.Time) float64 {
	d := wrapDay(t.Sub(midnight(t)) - c.Offset)
	return float64(d) / float64(c.Unit)
}

func (c DayClock) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func wrapDay(d time.Duration) time.Duration {
	d %= day
	if d < 0 {
		d += day
	}
	return d
}

// Clamp limits n to [lo, hi]. Adapters use it to narrow writes to the range a backend can hold.
func Clamp(n, lo, hi int) int {
	switch {
	case n < lo:
		return lo
	case n > hi:
		return hi
	}
	return n
}
