// Package day holds the per-day grouping of pipeline output.
package day

import (
	"time"

	"agendacal/internal/event"
)

// Bucket is one calendar date together with the events occurring on it,
// in pipeline order (sorted, deduplicated). Buckets are rebuilt wholesale
// on every pipeline run.
type Bucket struct {
	// Date is the day at day granularity in the display timezone.
	Date time.Time
	// YMD is the ISO day key, YYYY-MM-DD.
	YMD string
	// Events occurring on Date; every entry satisfies TakesPlaceOn(Date).
	Events []*event.Event
}

// New builds a bucket for the given day.
func New(date time.Time, events []*event.Event) Bucket {
	return Bucket{
		Date:   event.StartOfDay(date),
		YMD:    date.Format("2006-01-02"),
		Events: events,
	}
}
