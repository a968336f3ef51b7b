// Package window computes the date ranges the pipeline queries and
// displays: a rolling day horizon in Event mode, a fixed 42-day grid in
// Calendar mode.
package window

import (
	"fmt"
	"time"

	"agendacal/internal/event"
)

// Mode selects which window algorithm applies.
type Mode int

const (
	ModeEvent Mode = iota
	ModeCalendar
)

func (m Mode) String() string {
	if m == ModeCalendar {
		return "Calendar"
	}
	return "Event"
}

// ParseMode parses the configured mode name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "Event", "":
		return ModeEvent, nil
	case "Calendar":
		return ModeCalendar, nil
	default:
		return ModeEvent, fmt.Errorf("window: unknown mode %q", s)
	}
}

// Toggle returns the other mode.
func (m Mode) Toggle() Mode {
	if m == ModeEvent {
		return ModeCalendar
	}
	return ModeEvent
}

// Range is a display window: Start is the first instant of the first day,
// End the last instant of the last day (both in the display timezone).
type Range struct {
	Start time.Time
	End   time.Time
}

// Days enumerates every calendar day of the range in order.
func (r Range) Days() []time.Time {
	var days []time.Time
	for d := event.StartOfDay(r.Start); !d.After(r.End); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// UTC shifts both boundaries by the local UTC offset, producing the
// absolute instants the fetch boundary expects. This conversion applies
// only at the fetch boundary, never to the display window.
func (r Range) UTC() Range {
	_, offset := r.Start.Zone()
	shift := -time.Duration(offset) * time.Second
	return Range{
		Start: r.Start.Add(shift),
		End:   r.End.Add(shift),
	}
}

// Resolver derives display and fetch windows from the global settings.
type Resolver struct {
	// FirstDayOfWeek is the grid start weekday, 0 = Sunday .. 6 = Saturday.
	FirstDayOfWeek int
	// MaxDaysToShow is the Event-mode day horizon; zero or one yields a
	// single-day window.
	MaxDaysToShow int
	// StartDaysAhead shifts the Event-mode window into the future.
	StartDaysAhead int
}

// EventRange is the Event-mode window anchored on now. maxDays overrides
// the global horizon when positive (per-source fetch windows).
func (r Resolver) EventRange(now time.Time, maxDays int) Range {
	if maxDays <= 0 {
		maxDays = r.MaxDaysToShow
	}
	daysToAdd := maxDays - 1
	if daysToAdd < 0 {
		daysToAdd = 0
	}
	return Range{
		Start: event.StartOfDay(now).AddDate(0, 0, r.StartDaysAhead),
		End:   event.EndOfDay(now).AddDate(0, 0, r.StartDaysAhead+daysToAdd),
	}
}

// CalendarRange is the Calendar-mode window for the month containing
// month: the 42-day grid starting on the most recent FirstDayOfWeek on or
// before the first of that month.
func (r Resolver) CalendarRange(month time.Time) Range {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	dow := int(first.Weekday())

	prefix := dow - r.FirstDayOfWeek
	if dow < r.FirstDayOfWeek {
		prefix = 7 + dow - r.FirstDayOfWeek
	}

	start := first.AddDate(0, 0, -prefix)
	return Range{
		Start: start,
		End:   event.EndOfDay(start.AddDate(0, 0, 41)),
	}
}

// Window returns the display window for the given mode. month is only
// consulted in Calendar mode.
func (r Resolver) Window(mode Mode, now, month time.Time) Range {
	if mode == ModeCalendar {
		return r.CalendarRange(month)
	}
	return r.EventRange(now, 0)
}

// FetchRange returns the per-source fetch window. A source day-count
// override widens or narrows the Event-mode window for that source only;
// Calendar mode always fetches the full grid.
func (r Resolver) FetchRange(mode Mode, now, month time.Time, sourceMaxDays int) Range {
	if mode == ModeEvent && sourceMaxDays > 0 {
		return r.EventRange(now, sourceMaxDays)
	}
	return r.Window(mode, now, month)
}
