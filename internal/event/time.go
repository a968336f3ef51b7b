package event

import "time"

// Day-granularity helpers shared by the windowing, bucketing and
// formatting code. The zero time.Time stands for an unparseable instant;
// every comparison involving one is defined to be false, so malformed
// records sort last and fail date-based filters instead of panicking.

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// SameDay reports whether a and b fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Before reports whether a is before b, false if either is invalid.
func Before(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.Before(b)
}

// After reports whether a is after b, false if either is invalid.
func After(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	return a.After(b)
}

// DayBefore reports whether a's calendar day is before b's.
func DayBefore(a, b time.Time) bool {
	return Before(StartOfDay(a), StartOfDay(b))
}

// DayAfter reports whether a's calendar day is after b's.
func DayAfter(a, b time.Time) bool {
	return After(StartOfDay(a), StartOfDay(b))
}

// between reports whether x lies strictly between a and b.
func between(x, a, b time.Time) bool {
	return After(x, a) && Before(x, b)
}
