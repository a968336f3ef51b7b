// Package event turns raw calendar records into typed events with
// resolved start/end instants, classification flags and a validity
// predicate. Raw records arrive in three shapes for each boundary: a
// precise dateTime, a date-only value (all-day feeds, exclusive end
// convention) or a bare string; construction resolves all three into
// concrete instants in the display timezone.
package event

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"agendacal/internal/config"
)

// Stamp is one boundary of a raw record: either an object carrying a
// dateTime or a date, or a bare string.
type Stamp struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`

	// Text holds the bare-string form when the upstream payload is not
	// an object at all.
	Text string `json:"-"`
}

// UnmarshalJSON accepts both the object form and the bare-string form.
func (s *Stamp) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		s.Text = str
		return nil
	}

	type stamp Stamp
	var obj stamp
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*s = Stamp(obj)
	return nil
}

// Attendee is an attendee entry on a raw record; only the self/declined
// combination is consulted.
type Attendee struct {
	Self           bool   `json:"self"`
	ResponseStatus string `json:"responseStatus"`
}

// Raw is one raw calendar event record as returned by a source.
type Raw struct {
	Summary     string     `json:"summary,omitempty"`
	Description string     `json:"description,omitempty"`
	Location    string     `json:"location,omitempty"`
	Visibility  string     `json:"visibility,omitempty"`
	Start       Stamp      `json:"start"`
	End         Stamp      `json:"end"`
	Attendees   []Attendee `json:"attendees,omitempty"`
}

// Event is a normalized calendar event. It is constructed once per raw
// record per pipeline run and not mutated afterwards, except for the
// IsEmpty flag set on synthetic placeholders.
type Event struct {
	Raw Raw

	// Source is the owning source configuration; SourcePos is its
	// position in the configured source list (earlier sources win sort
	// ties).
	Source    *config.SourceConfig
	SourcePos int

	// Start and End are the resolved instants in the display timezone.
	// The zero time marks an unparseable boundary.
	Start time.Time
	End   time.Time

	// IsEmpty marks a synthetic "no events" placeholder.
	IsEmpty bool

	global *config.Config
}

// dateTimeLayouts are the accepted precise-timestamp forms, tried in order.
var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

const dateLayout = "2006-01-02"

// New builds an Event from a raw record. loc is the display timezone used
// for zone-less values.
func New(raw Raw, global *config.Config, src *config.SourceConfig, pos int, loc *time.Location) *Event {
	e := &Event{
		Raw:       raw,
		Source:    src,
		SourcePos: pos,
		global:    global,
	}
	e.Start = resolveStart(raw.Start, loc)
	e.End = resolveEnd(raw.End, loc)
	return e
}

// NewPlaceholder builds the synthetic "no events" entry for a day,
// anchored at that day's end.
func NewPlaceholder(day time.Time, text string, global *config.Config) *Event {
	eod := EndOfDay(day)
	return &Event{
		Raw:     Raw{Summary: text},
		Start:   eod,
		End:     eod,
		IsEmpty: true,
		global:  global,
	}
}

// resolveStart picks the start instant: dateTime verbatim, else the
// start of the date-only day, else whatever the bare string parses to.
func resolveStart(s Stamp, loc *time.Location) time.Time {
	switch {
	case s.DateTime != "":
		return parseDateTime(s.DateTime, loc)
	case s.Date != "":
		return StartOfDay(parseDate(s.Date, loc))
	default:
		return parseAny(s.Text, loc)
	}
}

// resolveEnd mirrors resolveStart with one asymmetry: a date-only end is
// exclusive upstream, so one day is subtracted and the end of that day
// taken, yielding an inclusive end-of-day instant.
func resolveEnd(s Stamp, loc *time.Location) time.Time {
	switch {
	case s.DateTime != "":
		return parseDateTime(s.DateTime, loc)
	case s.Date != "":
		d := parseDate(s.Date, loc)
		if d.IsZero() {
			return d
		}
		return EndOfDay(d.AddDate(0, 0, -1))
	default:
		return parseAny(s.Text, loc)
	}
}

func parseDateTime(v string, loc *time.Location) time.Time {
	v = strings.TrimSpace(v)
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t.In(loc)
		}
	}
	return time.Time{}
}

func parseDate(v string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(v), loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseAny(v string, loc *time.Location) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t := parseDateTime(v, loc); !t.IsZero() {
		return t
	}
	return parseDate(v, loc)
}

func (e *Event) Title() string       { return e.Raw.Summary }
func (e *Event) Description() string { return e.Raw.Description }
func (e *Event) Location() string    { return e.Raw.Location }
func (e *Event) Visibility() string  { return e.Raw.Visibility }

// Address returns the location up to the first comma.
func (e *Event) Address() string {
	if e.Raw.Location == "" {
		return ""
	}
	return strings.SplitN(e.Raw.Location, ",", 2)[0]
}

// Declined reports whether the record was declined by the calendar owner.
func (e *Event) Declined() bool {
	for _, a := range e.Raw.Attendees {
		if a.Self && a.ResponseStatus == "declined" {
			return true
		}
	}
	return false
}

// IsFullDay reports whether the event has no meaningful time-of-day
// component. Two upstream conventions are covered: exact start-of-day to
// end-of-day bounds, and midnight-to-midnight spanning exactly one day.
func (e *Event) IsFullDay() bool {
	if e.Start.IsZero() || e.End.IsZero() {
		return false
	}
	if e.Start.Equal(StartOfDay(e.Start)) && e.End.Equal(EndOfDay(e.End)) {
		return true
	}
	if e.Start.Hour() == 0 && e.End.Hour() == 0 && SameDay(e.Start, e.End.AddDate(0, 0, -1)) {
		return true
	}
	return false
}

// IsFullMoreDays reports whether the event is a full-day event spanning
// more than one calendar day.
func (e *Event) IsFullMoreDays() bool {
	return e.IsFullDay() && After(e.End.AddDate(0, 0, -1), StartOfDay(e.Start))
}

// IsRunning reports whether now falls strictly inside the event interval.
func (e *Event) IsRunning(now time.Time) bool {
	return between(now, e.Start, e.End)
}

// IsFinished reports whether the event ended before now.
func (e *Event) IsFinished(now time.Time) bool {
	return Before(e.End, now)
}

// TakesPlaceOn reports whether the event occurs on the given calendar
// day: it starts on it, ends on it, or spans it entirely.
func (e *Event) TakesPlaceOn(day time.Time) bool {
	return SameDay(e.Start, day) ||
		SameDay(e.End, day) ||
		between(StartOfDay(day), e.Start, e.End)
}

// DedupKey derives the identity used for per-day deduplication.
func (e *Event) DedupKey() string {
	const minute = "2006-01-02T15:04"
	return e.Title() + "|" + e.Start.Format(minute) + "|" + e.End.Format(minute)
}

// Valid reports whether the event is eligible for display under its
// source filters and the global flags.
func (e *Event) Valid(now time.Time) bool {
	g := e.global
	src := e.Source
	if src == nil {
		src = &config.SourceConfig{}
	}
	return matchesFilter(e.Title(), src.Whitelist, true) &&
		matchesFilter(e.Title(), src.Blacklist, false) &&
		matchesFilter(e.Location(), src.LocationWhitelist, true) &&
		e.validForTimeFilter() &&
		(g.ShowPrivate || e.Visibility() != "private") &&
		(g.ShowDeclined || !e.Declined()) &&
		(g.MaxDaysToShow > 0 || e.IsRunning(now)) &&
		(!g.HideFinishedEvents || !e.IsFinished(now))
}

// matchesFilter applies a comma-separated term list to subject. A term
// matches when the subject contains it starting at a word boundary,
// case-insensitively; terms are literal text, not patterns. In whitelist
// mode any matching term passes; in blacklist mode any matching term
// fails. An empty filter always passes; an empty subject passes only
// blacklists.
func matchesFilter(subject, filter string, whitelist bool) bool {
	if filter == "" {
		return true
	}
	if subject == "" {
		return !whitelist
	}

	matched := false
	for _, term := range strings.Split(filter, ",") {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)(^|[\W_]+)` + regexp.QuoteMeta(term))
		if re.MatchString(subject) {
			matched = true
			break
		}
	}

	if whitelist {
		return matched
	}
	return !matched
}

// validForTimeFilter checks the source's daily recurring time window.
// The configured clock times are re-anchored onto the event's own start
// date, so the filter applies every day rather than as an absolute range.
func (e *Event) validForTimeFilter() bool {
	src := e.Source
	if src == nil || (src.StartTimeFilter == "" && src.EndTimeFilter == "") {
		return true
	}
	if e.Start.IsZero() {
		// No usable start time, cannot filter.
		return false
	}

	endFilter := src.EndTimeFilter
	switch endFilter {
	case "00:00", "0:00", "24:00":
		// Midnight end means inclusive end of day.
		endFilter = "23:59"
	}

	lower := anchorClock(src.StartTimeFilter, e.Start, StartOfDay(e.Start))
	upper := anchorClock(endFilter, e.Start, EndOfDay(e.Start))

	startMin := e.Start.Truncate(time.Minute)
	return !startMin.Before(lower.Truncate(time.Minute)) &&
		!startMin.After(upper.Truncate(time.Minute))
}

// anchorClock parses an "HH:mm" clock value and places it on ref's
// calendar date. fallback is used when the value is empty or malformed.
func anchorClock(v string, ref, fallback time.Time) time.Time {
	if v == "" {
		return fallback
	}
	clock, err := time.Parse("15:04", v)
	if err != nil {
		if clock, err = time.Parse("3:04", v); err != nil {
			return fallback
		}
	}
	return time.Date(ref.Year(), ref.Month(), ref.Day(),
		clock.Hour(), clock.Minute(), 0, 0, ref.Location())
}
