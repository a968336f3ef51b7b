// Package pipeline orchestrates one refresh pass: fetch raw records for
// every configured source, normalize them into events, filter, sort, cap
// and bucket them into the display window's days. Stage order matters;
// reordering changes the output.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"agendacal/internal/config"
	"agendacal/internal/day"
	"agendacal/internal/event"
	"agendacal/internal/fetch"
	appLog "agendacal/internal/log"
	"agendacal/internal/metrics"
	"agendacal/internal/window"
)

// Result is the output of one successful pipeline run: the ordered day
// buckets of the display window plus the hidden-event count.
type Result struct {
	Mode    window.Mode
	Window  window.Range
	Buckets []day.Bucket

	// Hidden is the number of events removed by the count cap.
	Hidden int

	GeneratedAt time.Time
}

// Pipeline runs the fetch/normalize/filter/sort/cap/bucket sequence.
type Pipeline struct {
	cfg      *config.Config
	fetcher  fetch.Fetcher
	resolver window.Resolver
	loc      *time.Location
}

// New builds a pipeline over the resolved configuration.
func New(cfg *config.Config, fetcher fetch.Fetcher, loc *time.Location) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		fetcher: fetcher,
		resolver: window.Resolver{
			FirstDayOfWeek: cfg.FirstDayOfWeek,
			MaxDaysToShow:  cfg.MaxDaysToShow,
			StartDaysAhead: cfg.StartDaysAhead,
		},
		loc: loc,
	}
}

// Run executes one pass for the given mode and (in Calendar mode)
// selected month. now is threaded explicitly so classification is
// deterministic under test. Any source fetch failure fails the whole
// run; unexpected panics are contained at this boundary.
func (p *Pipeline) Run(ctx context.Context, mode window.Mode, month, now time.Time) (res Result, err error) {
	started := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: unexpected failure: %v", r)
			appLog.Error("pipeline run panicked", err)
		}
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.ObserveRun(outcome, time.Since(started))
	}()

	display := p.resolver.Window(mode, now, month)

	perSource, err := p.fetchAll(ctx, mode, month, now)
	if err != nil {
		return Result{}, err
	}

	events := p.normalize(perSource, now)
	if p.cfg.SortByStartTime {
		sortEvents(events)
	}
	events, hidden := p.cap(mode, events)
	buckets := p.bucket(display, events)

	res = Result{
		Mode:        mode,
		Window:      display,
		Buckets:     buckets,
		Hidden:      hidden,
		GeneratedAt: now,
	}
	metrics.SetPublished(len(buckets), hidden)

	appLog.Info("pipeline run completed",
		"mode", mode.String(),
		"buckets", len(buckets),
		"events", len(events),
		"hidden", hidden,
	)
	return res, nil
}

// fetchAll fans out one request per source and waits for all of them.
// Results keep source order; the first failure fails the batch.
func (p *Pipeline) fetchAll(ctx context.Context, mode window.Mode, month, now time.Time) ([][]event.Raw, error) {
	sources := p.cfg.Sources
	results := make([][]event.Raw, len(sources))
	errs := make([]error, len(sources))

	var wg sync.WaitGroup
	for i := range sources {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			src := &sources[i]
			r := p.resolver.FetchRange(mode, now, month, src.MaxDaysToShow)
			records, err := p.fetcher.Events(ctx, src, r)
			if err != nil {
				errs[i] = err
				return
			}
			metrics.AddFetched(src.ID, len(records))
			results[i] = records
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			appLog.Error("source fetch failed", err, "id", sources[i].ID)
			return nil, err
		}
	}
	return results, nil
}

// normalize constructs events from the per-source raw records and keeps
// only the valid ones. Malformed records are absorbed here: construction
// never fails, and invalid instants simply fail the date-based checks.
func (p *Pipeline) normalize(perSource [][]event.Raw, now time.Time) []*event.Event {
	events := make([]*event.Event, 0)
	for i, records := range perSource {
		src := &p.cfg.Sources[i]
		for _, raw := range records {
			ev := event.New(raw, p.cfg, src, i, p.loc)
			if ev.Valid(now) {
				events = append(events, ev)
			}
		}
	}
	return events
}

// sortEvents sorts by start instant ascending with the source position as
// tiebreaker: the time difference in milliseconds and the position
// difference form one composite key, so a later-configured source only
// loses when start instants are exactly equal. Events with unparseable
// starts sort last.
func sortEvents(events []*event.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		switch {
		case a.Start.IsZero() && b.Start.IsZero():
			return false
		case a.Start.IsZero():
			return false
		case b.Start.IsZero():
			return true
		}
		cmp := a.Start.Sub(b.Start).Milliseconds() + int64(a.SourcePos-b.SourcePos)
		return cmp < 0
	})
}

// cap truncates the Event-mode list to the configured maximum. With a
// soft limit the cap only triggers once the excess exceeds it, so a list
// barely over budget is left alone. The removed count is reported as
// hidden events.
func (p *Pipeline) cap(mode window.Mode, events []*event.Event) ([]*event.Event, int) {
	max := p.cfg.MaxEventCount
	soft := p.cfg.SoftLimit
	if mode != window.ModeEvent || max <= 0 {
		return events, 0
	}

	over := (soft == 0 && len(events) > max) ||
		(soft > 0 && len(events) > max+soft)
	if !over {
		return events, 0
	}

	hidden := len(events) - max
	return events[:max], hidden
}

// bucket groups events into the display window's days. Deduplication is
// per-day, order-preserving, first occurrence wins. Days without events
// get a placeholder when configured, and only non-empty days yield a
// bucket.
func (p *Pipeline) bucket(display window.Range, events []*event.Event) []day.Bucket {
	var buckets []day.Bucket

	for _, d := range display.Days() {
		var selected []*event.Event
		for _, ev := range events {
			if ev.TakesPlaceOn(d) {
				selected = append(selected, ev)
			}
		}

		if p.cfg.HideDuplicates {
			selected = dedup(selected)
		}

		if len(selected) == 0 && p.cfg.ShowNoEventsDay {
			selected = append(selected, event.NewPlaceholder(d, p.cfg.NoEventText, p.cfg))
		}
		if len(selected) > 0 {
			buckets = append(buckets, day.New(d, selected))
		}
	}

	return buckets
}

// dedup removes events sharing the same title and minute-resolution
// start/end. Idempotent by construction.
func dedup(events []*event.Event) []*event.Event {
	seen := make(map[string]struct{}, len(events))
	out := events[:0]
	for _, ev := range events {
		key := ev.DedupKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, ev)
	}
	return out
}
