// Package app owns the service run state: the published pipeline result,
// the in-flight guard serializing runs, the cron-driven refresh and the
// mode/month navigation.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"agendacal/internal/config"
	"agendacal/internal/fetch"
	"agendacal/internal/ics"
	appLog "agendacal/internal/log"
	"agendacal/internal/pipeline"
	"agendacal/internal/web"
	"agendacal/internal/window"
)

// Application wires the pipeline, scheduler and web server together.
// Pipeline runs are serialized by an in-flight flag: a trigger that fires
// while a run is still in flight is skipped, not queued.
type Application struct {
	cfg  *config.Config
	pipe *pipeline.Pipeline
	loc  *time.Location

	inFlight atomic.Bool

	mu        sync.Mutex
	mode      window.Mode
	month     time.Time
	result    *pipeline.Result
	lastErr   error
	updatedAt time.Time // zero forces the next pass to re-run
}

// New builds the application from resolved configuration.
func New(cfg *config.Config) (*Application, error) {
	loc, err := resolveLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	mode, err := window.ParseMode(cfg.DefaultMode)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.Dispatcher{
		Host: fetch.NewHostClient(cfg.HostAPI),
		ICS:  ics.NewClient(),
	}

	now := time.Now().In(loc)
	return &Application{
		cfg:   cfg,
		pipe:  pipeline.New(cfg, fetcher, loc),
		loc:   loc,
		mode:  mode,
		month: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc),
	}, nil
}

func resolveLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("app: timezone %q: %w", name, err)
	}
	return loc, nil
}

// Run starts the refresh scheduler and the web server and blocks until
// the context is canceled or a component fails.
func (a *Application) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// First pass before the schedule kicks in, so the API has content.
	a.runOnce(ctx)

	sched := cron.New()
	if _, err := sched.AddFunc(a.cfg.Refresh, func() { a.runOnce(ctx) }); err != nil {
		return fmt.Errorf("app: refresh schedule %q: %w", a.cfg.Refresh, err)
	}
	sched.Start()
	defer sched.Stop()

	errCh := make(chan error, 1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := web.StartServer(ctx, a.cfg, a); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("web server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		cancel()
	}

	wg.Wait()
	return runErr
}

// runOnce executes a single guarded pipeline pass. A pass that finds a
// run already in flight is a no-op. On failure the previously published
// result stays in place; stale-but-valid beats blank.
func (a *Application) runOnce(ctx context.Context) {
	if !a.inFlight.CompareAndSwap(false, true) {
		appLog.Debug("pipeline run already in flight; tick skipped")
		return
	}
	defer a.inFlight.Store(false)

	a.mu.Lock()
	mode := a.mode
	month := a.month
	a.mu.Unlock()

	now := time.Now().In(a.loc)
	res, err := a.pipe.Run(ctx, mode, month, now)

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.lastErr = err
		return
	}

	// Supersede the published result only if no navigation happened
	// while the run was in flight; a stale mode/month result would
	// flash the wrong window.
	if mode == a.mode && month.Equal(a.month) {
		a.result = &res
		a.lastErr = nil
		a.updatedAt = time.Now()
	}
}

// RunOnce executes a single pipeline pass and reports its result. Backs
// the -once flag.
func (a *Application) RunOnce(ctx context.Context) (*pipeline.Result, error) {
	a.runOnce(ctx)
	snap := a.Snapshot()
	return snap.Result, snap.Err
}

// Snapshot returns the last published result, the last run error and the
// publish timestamp. The result may be stale after a failed run; the
// error is only meaningful to display when no result exists yet.
func (a *Application) Snapshot() web.Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return web.Snapshot{Result: a.result, Err: a.lastErr, UpdatedAt: a.updatedAt}
}

// Refresh schedules an immediate pass. Non-blocking; if a run is already
// in flight the trigger is dropped.
func (a *Application) Refresh() {
	go a.runOnce(context.Background())
}

// ToggleMode switches between Event and Calendar mode, marks the
// published data stale and triggers a new pass.
func (a *Application) ToggleMode() window.Mode {
	a.mu.Lock()
	a.mode = a.mode.Toggle()
	a.updatedAt = time.Time{}
	mode := a.mode
	a.mu.Unlock()

	a.Refresh()
	return mode
}

// ShiftMonth moves the Calendar-mode month by adjust months, marks the
// published data stale and triggers a new pass.
func (a *Application) ShiftMonth(adjust int) time.Time {
	a.mu.Lock()
	a.month = a.month.AddDate(0, adjust, 0)
	a.updatedAt = time.Time{}
	month := a.month
	a.mu.Unlock()

	a.Refresh()
	return month
}
