package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveEmptyUsesStandardDefaults(t *testing.T) {
	cfg, err := Resolve(nil)
	require.NoError(t, err)

	assert.Equal(t, StyleStandard, cfg.DisplayStyle)
	assert.Equal(t, ModeEvent, cfg.DefaultMode)
	assert.Equal(t, 7, cfg.MaxDaysToShow)
	assert.Equal(t, 1, cfg.FirstDayOfWeek)
	assert.True(t, cfg.SortByStartTime)
	assert.True(t, cfg.ShowPrivate)
	assert.True(t, cfg.ShowRelativeTime)
	assert.False(t, cfg.HideDuplicates)
	assert.False(t, cfg.ShowNoEventsDay)
}

func TestResolveSimpleStyleBase(t *testing.T) {
	cfg, err := Resolve([]byte("display_style: simple\n"))
	require.NoError(t, err)

	assert.Equal(t, StyleSimple, cfg.DisplayStyle)
	assert.Equal(t, 0, cfg.FirstDayOfWeek)
	assert.True(t, cfg.HideDuplicates)
	assert.False(t, cfg.ShowRelativeTime)
	assert.True(t, cfg.ShowNoEventsDay)
}

func TestResolveUserValuesWinOverStyleBase(t *testing.T) {
	data := []byte(`
display_style: simple
first_day_of_week: 1
show_relative_time: true
max_days_to_show: 14
`)
	cfg, err := Resolve(data)
	require.NoError(t, err)

	assert.Equal(t, StyleSimple, cfg.DisplayStyle)
	assert.Equal(t, 1, cfg.FirstDayOfWeek)
	assert.True(t, cfg.ShowRelativeTime)
	assert.Equal(t, 14, cfg.MaxDaysToShow)
	// Untouched simple-base flags survive the merge.
	assert.True(t, cfg.HideDuplicates)
}

func TestResolveIsPure(t *testing.T) {
	data := []byte("display_style: simple\n")

	a, err := Resolve(data)
	require.NoError(t, err)
	b, err := Resolve(data)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Resolving another style in between must not leak state.
	_, err = Resolve([]byte("display_style: standard\nfirst_day_of_week: 3\n"))
	require.NoError(t, err)
	c, err := Resolve(data)
	require.NoError(t, err)
	assert.Equal(t, a, c)
}

func TestResolveValidation(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown style", "display_style: fancy\n"},
		{"unknown mode", "default_mode: Agenda\n"},
		{"first day of week out of range", "first_day_of_week: 7\n"},
		{"source without address", "sources:\n  - name: personal\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve([]byte(tc.yaml))
			assert.Error(t, err)
		})
	}
}

func TestResolveSourceIDDefaults(t *testing.T) {
	data := []byte(`
sources:
  - name: work
    calendar: calendar.work
  - name: feed
    ics_url: https://example.com/feed.ics
  - id: custom
    calendar: calendar.family
`)
	cfg, err := Resolve(data)
	require.NoError(t, err)
	require.Len(t, cfg.Sources, 3)

	assert.Equal(t, "calendar.work", cfg.Sources[0].ID)
	assert.Equal(t, "https://example.com/feed.ics", cfg.Sources[1].ID)
	assert.Equal(t, "custom", cfg.Sources[2].ID)
}

func TestResolveNegativeCountsClamp(t *testing.T) {
	data := []byte("max_days_to_show: -3\nmax_event_count: -1\nsoft_limit: -2\n")
	cfg, err := Resolve(data)
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.MaxDaysToShow)
	assert.Equal(t, 0, cfg.MaxEventCount)
	assert.Equal(t, 0, cfg.SoftLimit)
}

func TestResolveTextBackfill(t *testing.T) {
	cfg, err := Resolve([]byte("until_text: Till\n"))
	require.NoError(t, err)

	assert.Equal(t, "Till", cfg.UntilText)
	assert.Equal(t, "All day", cfg.FullDayEventText)
	assert.Equal(t, "No events", cfg.NoEventText)
}

func TestLoadCreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, StyleStandard, cfg.DisplayStyle)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second load reads the file it just wrote.
	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Listen, again.Listen)
	assert.Equal(t, cfg.MaxDaysToShow, again.MaxDaysToShow)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.MaxEventCount = 9
	cfg.Sources = []SourceConfig{{ID: "work", Name: "Work", Calendar: "calendar.work"}}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9, loaded.MaxEventCount)
	require.Len(t, loaded.Sources, 1)
	assert.Equal(t, "work", loaded.Sources[0].ID)
}
