package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agendacal/internal/config"
)

var utc = time.UTC

func newTestEvent(t *testing.T, raw Raw, global *config.Config, src *config.SourceConfig) *Event {
	t.Helper()
	if global == nil {
		global = config.DefaultConfig()
	}
	return New(raw, global, src, 0, utc)
}

func TestStampUnmarshalJSON(t *testing.T) {
	var obj Stamp
	require.NoError(t, json.Unmarshal([]byte(`{"dateTime":"2024-03-01T09:00:00Z"}`), &obj))
	assert.Equal(t, "2024-03-01T09:00:00Z", obj.DateTime)
	assert.Empty(t, obj.Text)

	var dateOnly Stamp
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2024-03-01"}`), &dateOnly))
	assert.Equal(t, "2024-03-01", dateOnly.Date)

	var bare Stamp
	require.NoError(t, json.Unmarshal([]byte(`"2024-03-01 09:00:00"`), &bare))
	assert.Equal(t, "2024-03-01 09:00:00", bare.Text)
}

func TestConstructionDateOnlyExclusiveEnd(t *testing.T) {
	e := newTestEvent(t, Raw{
		Summary: "Conference",
		Start:   Stamp{Date: "2024-03-01"},
		End:     Stamp{Date: "2024-03-03"},
	}, nil, nil)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, utc), e.Start)
	assert.Equal(t, time.Date(2024, 3, 2, 23, 59, 59, 999999999, utc), e.End)
	assert.True(t, e.IsFullDay())
	assert.True(t, e.IsFullMoreDays())
}

func TestConstructionSingleAllDay(t *testing.T) {
	e := newTestEvent(t, Raw{
		Start: Stamp{Date: "2024-03-01"},
		End:   Stamp{Date: "2024-03-02"},
	}, nil, nil)

	assert.True(t, SameDay(e.Start, e.End))
	assert.True(t, e.IsFullDay())
	assert.False(t, e.IsFullMoreDays())
}

func TestConstructionTimed(t *testing.T) {
	e := newTestEvent(t, Raw{
		Start: Stamp{DateTime: "2024-03-01T09:00:00Z"},
		End:   Stamp{DateTime: "2024-03-01T10:30:00Z"},
	}, nil, nil)

	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, utc), e.Start)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 30, 0, 0, utc), e.End)
	assert.False(t, e.IsFullDay())
}

func TestConstructionBareStringFallback(t *testing.T) {
	e := newTestEvent(t, Raw{
		Start: Stamp{Text: "2024-03-01 09:00:00"},
		End:   Stamp{Text: "2024-03-01"},
	}, nil, nil)

	assert.Equal(t, time.Date(2024, 3, 1, 9, 0, 0, 0, utc), e.Start)
	// Bare date strings resolve to midnight, without the exclusive-end
	// adjustment reserved for the explicit date form.
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, utc), e.End)
}

func TestConstructionMalformed(t *testing.T) {
	e := newTestEvent(t, Raw{
		Start: Stamp{DateTime: "not a date"},
		End:   Stamp{Date: "also wrong"},
	}, nil, nil)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, utc)
	assert.True(t, e.Start.IsZero())
	assert.True(t, e.End.IsZero())
	assert.False(t, e.IsFullDay())
	assert.False(t, e.IsRunning(now))
	assert.False(t, e.IsFinished(now))
	assert.False(t, e.TakesPlaceOn(now))
}

func TestMidnightToMidnightIsFullDay(t *testing.T) {
	e := newTestEvent(t, Raw{
		Start: Stamp{DateTime: "2024-03-01T00:00:00Z"},
		End:   Stamp{DateTime: "2024-03-02T00:00:00Z"},
	}, nil, nil)

	assert.True(t, e.IsFullDay())
	assert.False(t, e.IsFullMoreDays())
}

func TestTakesPlaceOn(t *testing.T) {
	e := newTestEvent(t, Raw{
		Start: Stamp{DateTime: "2024-03-01T22:00:00Z"},
		End:   Stamp{DateTime: "2024-03-04T02:00:00Z"},
	}, nil, nil)

	day := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, utc) }

	assert.False(t, e.TakesPlaceOn(time.Date(2024, 2, 29, 0, 0, 0, 0, utc)))
	assert.True(t, e.TakesPlaceOn(day(1))) // start day
	assert.True(t, e.TakesPlaceOn(day(2))) // spanned
	assert.True(t, e.TakesPlaceOn(day(3))) // spanned
	assert.True(t, e.TakesPlaceOn(day(4))) // end day
	assert.False(t, e.TakesPlaceOn(day(5)))
}

func TestRunningAndFinished(t *testing.T) {
	e := newTestEvent(t, Raw{
		Start: Stamp{DateTime: "2024-03-01T09:00:00Z"},
		End:   Stamp{DateTime: "2024-03-01T10:00:00Z"},
	}, nil, nil)

	assert.False(t, e.IsRunning(time.Date(2024, 3, 1, 9, 0, 0, 0, utc))) // boundary excluded
	assert.True(t, e.IsRunning(time.Date(2024, 3, 1, 9, 30, 0, 0, utc)))
	assert.False(t, e.IsRunning(time.Date(2024, 3, 1, 10, 0, 0, 0, utc)))

	assert.False(t, e.IsFinished(time.Date(2024, 3, 1, 10, 0, 0, 0, utc)))
	assert.True(t, e.IsFinished(time.Date(2024, 3, 1, 10, 0, 1, 0, utc)))
}

func TestAddressAndDeclined(t *testing.T) {
	e := newTestEvent(t, Raw{
		Location: "Main St 1, 12345 Springfield",
		Attendees: []Attendee{
			{Self: false, ResponseStatus: "declined"},
			{Self: true, ResponseStatus: "accepted"},
		},
	}, nil, nil)
	assert.Equal(t, "Main St 1", e.Address())
	assert.False(t, e.Declined())

	e.Raw.Attendees = append(e.Raw.Attendees, Attendee{Self: true, ResponseStatus: "declined"})
	assert.True(t, e.Declined())
}

func TestValidTitleWhitelist(t *testing.T) {
	src := &config.SourceConfig{Whitelist: "meeting,sync"}
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, utc)

	cases := []struct {
		title string
		want  bool
	}{
		{"Weekly Sync", true},
		{"team_sync planning", true},
		{"Morning Meeting", true},
		{"resyncing backlog", false}, // no word boundary before the term
		{"standup", false},
		{"", false}, // empty subject fails whitelists
	}
	for _, tc := range cases {
		e := newTestEvent(t, Raw{
			Summary: tc.title,
			Start:   Stamp{DateTime: "2024-03-01T09:00:00Z"},
			End:     Stamp{DateTime: "2024-03-01T10:00:00Z"},
		}, nil, src)
		assert.Equal(t, tc.want, e.Valid(now), "title %q", tc.title)
	}
}

func TestValidTitleBlacklist(t *testing.T) {
	src := &config.SourceConfig{Blacklist: "private, tentative"}
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, utc)

	valid := func(title string) bool {
		e := newTestEvent(t, Raw{
			Summary: title,
			Start:   Stamp{DateTime: "2024-03-01T09:00:00Z"},
			End:     Stamp{DateTime: "2024-03-01T10:00:00Z"},
		}, nil, src)
		return e.Valid(now)
	}

	assert.False(t, valid("Private appointment"))
	assert.False(t, valid("lunch (tentative)"))
	assert.True(t, valid("Weekly Sync"))
	assert.True(t, valid("")) // empty subject passes blacklists
}

func TestValidLocationWhitelist(t *testing.T) {
	src := &config.SourceConfig{LocationWhitelist: "office"}
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, utc)

	mk := func(location string) *Event {
		return newTestEvent(t, Raw{
			Summary:  "Sync",
			Location: location,
			Start:    Stamp{DateTime: "2024-03-01T09:00:00Z"},
			End:      Stamp{DateTime: "2024-03-01T10:00:00Z"},
		}, nil, src)
	}

	assert.True(t, mk("Berlin Office, Floor 3").Valid(now))
	assert.False(t, mk("Home").Valid(now))
	assert.False(t, mk("").Valid(now))
}

func TestValidTimeFilter(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, utc)
	src := &config.SourceConfig{StartTimeFilter: "09:00", EndTimeFilter: "17:00"}

	cases := []struct {
		start string
		want  bool
	}{
		{"2024-03-01T09:00:00Z", true},
		{"2024-03-01T08:59:00Z", false},
		{"2024-03-01T17:00:59Z", true}, // minute-truncated, inclusive
		{"2024-03-01T17:01:00Z", false},
		{"2024-03-02T12:00:00Z", true}, // recurs daily, not an absolute range
	}
	for _, tc := range cases {
		e := newTestEvent(t, Raw{
			Summary: "Sync",
			Start:   Stamp{DateTime: tc.start},
			End:     Stamp{DateTime: "2024-03-02T18:00:00Z"},
		}, nil, src)
		assert.Equal(t, tc.want, e.Valid(now), "start %s", tc.start)
	}
}

func TestValidTimeFilterMidnightEnd(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, utc)
	src := &config.SourceConfig{StartTimeFilter: "18:00", EndTimeFilter: "24:00"}

	e := newTestEvent(t, Raw{
		Summary: "Sync",
		Start:   Stamp{DateTime: "2024-03-01T23:59:00Z"},
		End:     Stamp{DateTime: "2024-03-02T01:00:00Z"},
	}, nil, src)
	assert.True(t, e.Valid(now))
}

func TestValidTimeFilterUnparsableStart(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, utc)
	src := &config.SourceConfig{StartTimeFilter: "09:00"}

	e := newTestEvent(t, Raw{Summary: "Sync"}, nil, src)
	assert.False(t, e.Valid(now))
}

func TestValidPrivateAndDeclined(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, utc)
	raw := Raw{
		Summary:    "Sync",
		Visibility: "private",
		Start:      Stamp{DateTime: "2024-03-01T09:00:00Z"},
		End:        Stamp{DateTime: "2024-03-01T10:00:00Z"},
		Attendees:  []Attendee{{Self: true, ResponseStatus: "declined"}},
	}

	global := config.DefaultConfig()
	assert.False(t, newTestEvent(t, raw, global, nil).Valid(now)) // declined hidden by default

	global.ShowDeclined = true
	assert.True(t, newTestEvent(t, raw, global, nil).Valid(now))

	global.ShowPrivate = false
	assert.False(t, newTestEvent(t, raw, global, nil).Valid(now))
}

func TestValidZeroHorizonKeepsOnlyRunning(t *testing.T) {
	global := config.DefaultConfig()
	global.MaxDaysToShow = 0
	now := time.Date(2024, 3, 1, 9, 30, 0, 0, utc)

	running := newTestEvent(t, Raw{
		Summary: "Sync",
		Start:   Stamp{DateTime: "2024-03-01T09:00:00Z"},
		End:     Stamp{DateTime: "2024-03-01T10:00:00Z"},
	}, global, nil)
	upcoming := newTestEvent(t, Raw{
		Summary: "Sync",
		Start:   Stamp{DateTime: "2024-03-01T11:00:00Z"},
		End:     Stamp{DateTime: "2024-03-01T12:00:00Z"},
	}, global, nil)

	assert.True(t, running.Valid(now))
	assert.False(t, upcoming.Valid(now))
}

func TestValidHideFinished(t *testing.T) {
	global := config.DefaultConfig()
	global.HideFinishedEvents = true
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, utc)

	finished := newTestEvent(t, Raw{
		Summary: "Sync",
		Start:   Stamp{DateTime: "2024-03-01T09:00:00Z"},
		End:     Stamp{DateTime: "2024-03-01T10:00:00Z"},
	}, global, nil)
	assert.False(t, finished.Valid(now))

	global.HideFinishedEvents = false
	assert.True(t, finished.Valid(now))
}

func TestDedupKey(t *testing.T) {
	a := newTestEvent(t, Raw{
		Summary: "Sync",
		Start:   Stamp{DateTime: "2024-03-01T09:00:00Z"},
		End:     Stamp{DateTime: "2024-03-01T10:00:00Z"},
	}, nil, nil)
	b := newTestEvent(t, Raw{
		Summary: "Sync",
		Start:   Stamp{DateTime: "2024-03-01T09:00:30Z"}, // same minute
		End:     Stamp{DateTime: "2024-03-01T10:00:00Z"},
	}, nil, nil)
	c := newTestEvent(t, Raw{
		Summary: "Sync",
		Start:   Stamp{DateTime: "2024-03-01T09:01:00Z"},
		End:     Stamp{DateTime: "2024-03-01T10:00:00Z"},
	}, nil, nil)

	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, a.DedupKey(), c.DedupKey())
}

func TestNewPlaceholder(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, utc)
	p := NewPlaceholder(day, "No events", config.DefaultConfig())

	assert.True(t, p.IsEmpty)
	assert.Equal(t, "No events", p.Title())
	assert.Equal(t, EndOfDay(day), p.Start)
	assert.Equal(t, p.Start, p.End)
	assert.True(t, p.TakesPlaceOn(day))
}
