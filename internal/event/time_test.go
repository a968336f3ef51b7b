package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndEndOfDay(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	at := time.Date(2024, 3, 15, 13, 37, 42, 123, loc)

	start := StartOfDay(at)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, loc), start)

	end := EndOfDay(at)
	assert.Equal(t, time.Date(2024, 3, 15, 23, 59, 59, 999999999, loc), end)
	assert.True(t, end.Before(start.AddDate(0, 0, 1)))
}

func TestZeroTimeComparisonsAreFalse(t *testing.T) {
	var zero time.Time
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	assert.True(t, zero.Equal(StartOfDay(zero)))
	assert.True(t, zero.Equal(EndOfDay(zero)))

	assert.False(t, SameDay(zero, now))
	assert.False(t, SameDay(now, zero))
	assert.False(t, Before(zero, now))
	assert.False(t, Before(now, zero))
	assert.False(t, After(zero, now))
	assert.False(t, After(now, zero))
	assert.False(t, DayBefore(zero, now))
	assert.False(t, DayAfter(now, zero))
}

func TestDayComparisons(t *testing.T) {
	d1 := time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 3, 16, 1, 0, 0, 0, time.UTC)
	d2b := time.Date(2024, 3, 16, 22, 0, 0, 0, time.UTC)

	assert.True(t, DayBefore(d1, d2))
	assert.True(t, DayAfter(d2, d1))
	assert.False(t, DayBefore(d2, d2b))
	assert.False(t, DayAfter(d2, d2b))
	assert.True(t, SameDay(d2, d2b))
}
