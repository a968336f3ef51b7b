// Package format renders the per-event display strings: the hours line
// describing how an event relates to the day it is shown under, and the
// relative-time hint. The branching here mirrors the interval
// classification in package event and must stay consistent with it.
package format

import (
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"agendacal/internal/event"
)

// Options carries the presentation settings the formatters need.
type Options struct {
	// FullDayText and UntilText are the localized labels ("All day", "Until").
	FullDayText string
	UntilText   string
	// EuropeanDate renders day-and-month as "2 Jan" instead of "Jan 2".
	EuropeanDate bool
	// Simple enables the compact variant: no full-day lines, ":00"
	// stripped, repeated AM/PM collapsed.
	Simple bool
	// TimeLayout formats clock times; defaults to 24-hour "15:04".
	TimeLayout string
}

func (o Options) timeLayout() string {
	if o.TimeLayout == "" {
		return "15:04"
	}
	return o.TimeLayout
}

// Hours returns the hours line for an event shown under forDay.
//
// Cases, in order:
//  1. full-day span still open beyond forDay: "All day, until 5 Mar"
//  2. full-day span ending on forDay: "All day"
//  3. timed event started earlier, ends on forDay: "Until 17:00"
//  4. timed event starting on forDay, ends later: "17:00, until 5 Mar"
//  5. single-day timed event: "9:00 – 17:00"
//
// A timed multi-day event shown on an interior day carries no dedicated
// case and falls through to the start–end form.
func Hours(e *event.Event, forDay time.Time, o Options) string {
	hours := ""

	if !o.Simple {
		if event.DayAfter(e.End, forDay) {
			hours = o.FullDayText + ", " + strings.ToLower(o.UntilText) + " " + DayAndMonth(e.End, o.EuropeanDate)
		} else if e.IsFullDay() {
			hours = o.FullDayText
		}
	}

	if !e.IsFullDay() {
		switch {
		case event.DayBefore(e.Start, forDay) && event.SameDay(e.End, forDay):
			hours = o.UntilText + " " + o.simplify(e.End.Format(o.timeLayout()))
		case event.SameDay(e.Start, forDay) && event.DayAfter(e.End, forDay):
			hours = o.simplify(e.Start.Format(o.timeLayout()))
			hours += ", " + strings.ToLower(o.UntilText) + " " + DayAndMonth(e.End, o.EuropeanDate)
		default:
			hours = o.simplify(e.Start.Format(o.timeLayout()) + " – " + e.End.Format(o.timeLayout()))
		}
	}

	return hours
}

// Relative returns the parenthesized relative-time hint for events
// starting today or later, empty otherwise and for placeholders. now is
// shifted by its UTC offset to match the offset-normalized start.
func Relative(e *event.Event, now time.Time) string {
	if e.IsEmpty || e.Start.IsZero() {
		return ""
	}

	_, offset := now.Zone()
	shift := time.Duration(offset) * time.Second
	today := now.Add(shift)

	if event.DayBefore(e.Start, today) {
		return ""
	}
	return "(" + humanize.RelTime(e.Start.Add(shift), today, "ago", "from now") + ")"
}

// DayAndMonth formats the day-and-month part of a date directly, without
// the year.
func DayAndMonth(t time.Time, european bool) string {
	if european {
		return t.Format("2 Jan")
	}
	return t.Format("Jan 2")
}

var meridiemRe = regexp.MustCompile(`(?i) ?(AM|PM)`)

// simplify applies the compact display variant: minute markers of full
// hours are dropped and a duplicated AM/PM suffix is collapsed to one.
func (o Options) simplify(s string) string {
	if !o.Simple {
		return s
	}
	s = strings.ReplaceAll(s, ":00", "")

	marks := meridiemRe.FindAllString(s, -1)
	if len(marks) == 2 && strings.EqualFold(marks[0], marks[1]) {
		loc := meridiemRe.FindStringIndex(s)
		s = s[:loc[0]] + s[loc[1]:]
	}
	return s
}
