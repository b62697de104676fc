// Package slot implements the fixed-granularity time bucket arithmetic used
// for ground-resource planning. Slots are aligned to multiples of the
// granularity since the Unix epoch, always in UTC.
package slot

import "time"

// Round rounds t to the nearest slot boundary, ties rounding up: a timestamp
// exactly halfway between two slots lands on the later one. A zero time
// propagates unchanged. Rounding is idempotent.
func Round(t time.Time, granularity time.Duration) time.Time {
	if t.IsZero() {
		return t
	}
	g := int64(granularity / time.Second)
	sec := t.Unix()
	rem := sec % g
	if rem < 0 {
		rem += g
	}
	base := sec - rem
	if 2*rem >= g {
		base += g
	}
	return time.Unix(base, 0).UTC()
}

// Range returns the inclusive sequence of slot timestamps from start to end
// stepped by the granularity. Both endpoints are assumed slot-aligned by the
// caller. Empty when end precedes start or either endpoint is zero.
func Range(start, end time.Time, granularity time.Duration) []time.Time {
	if start.IsZero() || end.IsZero() || end.Before(start) {
		return nil
	}
	var out []time.Time
	for t := start; !t.After(end); t = t.Add(granularity) {
		out = append(out, t)
	}
	return out
}

// Expand rounds center-before and center+after to slots and returns the
// inclusive range between them.
func Expand(center time.Time, before, after, granularity time.Duration) []time.Time {
	if center.IsZero() {
		return nil
	}
	start := Round(center.Add(-before), granularity)
	end := Round(center.Add(after), granularity)
	return Range(start, end, granularity)
}
