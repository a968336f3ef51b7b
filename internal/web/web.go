// Package web exposes the HTTP surface: the published agenda, the
// refresh/mode/month controls, health and Prometheus metrics.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"agendacal/internal/config"
	"agendacal/internal/day"
	"agendacal/internal/event"
	"agendacal/internal/format"
	"agendacal/internal/localize"
	appLog "agendacal/internal/log"
	"agendacal/internal/metrics"
	"agendacal/internal/pipeline"
	"agendacal/internal/window"
)

// Snapshot is the published application state the handlers read: the
// last successful result, the last run error and the publish timestamp.
type Snapshot struct {
	Result    *pipeline.Result
	Err       error
	UpdatedAt time.Time
}

// Controller is the slice of the application the handlers need: the last
// published result and the navigation triggers.
type Controller interface {
	Snapshot() Snapshot
	Refresh()
	ToggleMode() window.Mode
	ShiftMonth(adjust int) time.Time
}

// Server serves the agenda API for a single application instance.
type Server struct {
	cfg  *config.Config
	ctrl Controller
	mux  *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, ctrl Controller) *Server {
	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		mux:  http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return metrics.Middleware(h)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Health stays reachable for probes without credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="AgendaCal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// StartServer serves the API on cfg.Listen until ctx is canceled, then
// shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, ctrl Controller) error {
	s := NewServer(cfg, ctrl)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/agenda", s.handleAgenda)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/api/mode", s.handleMode)
	s.mux.HandleFunc("/api/month", s.handleMonth)
	s.mux.Handle("/metrics", metrics.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// agendaResponse is the JSON response shape for /api/agenda.
type agendaResponse struct {
	Mode        string    `json:"mode"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	Days        []dayDTO  `json:"days"`
	Hidden      int       `json:"hidden"`
	HiddenText  string    `json:"hidden_text,omitempty"`
	// EmptyText is set when the whole window has no events at all.
	EmptyText   string    `json:"empty_text,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	// Stale marks a result that survived a later failed refresh.
	Stale bool   `json:"stale,omitempty"`
	Error string `json:"error,omitempty"`
}

type dayDTO struct {
	Date   string     `json:"date"`
	Label  string     `json:"label"`
	Events []eventDTO `json:"events"`
}

type eventDTO struct {
	Title       string    `json:"title"`
	Location    string    `json:"location,omitempty"`
	Hours       string    `json:"hours,omitempty"`
	Relative    string    `json:"relative,omitempty"`
	Source      string    `json:"source,omitempty"`
	Color       string    `json:"color,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	Start       time.Time `json:"start,omitempty"`
	End         time.Time `json:"end,omitempty"`
	FullDay     bool      `json:"full_day,omitempty"`
	Running     bool      `json:"running,omitempty"`
	Placeholder bool      `json:"placeholder,omitempty"`
}

// handleAgenda returns the last published day buckets with their display
// strings already rendered. A run failure after a prior success keeps the
// stale result and flags it; a failure with nothing published yet is the
// only case where the error replaces the content.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	snap := s.ctrl.Snapshot()
	res := snap.Result
	if res == nil {
		if snap.Err != nil {
			appLog.Error("agenda requested with no published result", snap.Err)
			writeError(w, http.StatusBadGateway, localize.Localize("errors.update"))
			return
		}
		writeError(w, http.StatusServiceUnavailable, "agenda not ready")
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	now := time.Now().In(loc)
	opts := s.formatOptions()

	resp := agendaResponse{
		Mode:        res.Mode.String(),
		WindowStart: res.Window.Start,
		WindowEnd:   res.Window.End,
		Days:        make([]dayDTO, 0, len(res.Buckets)),
		Hidden:      res.Hidden,
		GeneratedAt: res.GeneratedAt,
		Stale:       snap.Err != nil || snap.UpdatedAt.IsZero(),
	}
	if snap.Err != nil {
		resp.Error = localize.Localize("errors.update")
	}
	if res.Hidden > 0 {
		resp.HiddenText = fmt.Sprintf("+%d %s", res.Hidden, localize.Localize("common.hiddenEventText"))
	}
	if len(res.Buckets) == 0 {
		resp.EmptyText = localize.Localize("common.noEventsForNextDaysText")
	}

	showRelative := s.cfg.ShowRelativeTime && res.Mode == window.ModeEvent
	for _, b := range res.Buckets {
		resp.Days = append(resp.Days, s.dayDTO(b, now, opts, showRelative))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) dayDTO(b day.Bucket, now time.Time, opts format.Options, showRelative bool) dayDTO {
	d := dayDTO{
		Date:   b.YMD,
		Label:  format.DayAndMonth(b.Date, s.cfg.EuropeanDate),
		Events: make([]eventDTO, 0, len(b.Events)),
	}
	for _, e := range b.Events {
		d.Events = append(d.Events, newEventDTO(e, b.Date, now, opts, showRelative))
	}
	return d
}

func newEventDTO(e *event.Event, forDay, now time.Time, opts format.Options, showRelative bool) eventDTO {
	dto := eventDTO{
		Title:       e.Title(),
		Location:    e.Location(),
		Hours:       format.Hours(e, forDay, opts),
		Start:       e.Start,
		End:         e.End,
		FullDay:     e.IsFullDay(),
		Running:     e.IsRunning(now),
		Placeholder: e.IsEmpty,
	}
	if showRelative {
		dto.Relative = format.Relative(e, now)
	}
	if src := e.Source; src != nil {
		dto.Source = src.ID
		dto.Color = src.Color
		dto.Icon = src.Icon
	}
	if e.IsEmpty {
		dto.Hours = ""
		dto.Start = time.Time{}
		dto.End = time.Time{}
		dto.FullDay = false
		dto.Running = false
	}
	return dto
}

func (s *Server) formatOptions() format.Options {
	return format.Options{
		FullDayText:  localize.Localize("common.fullDayEventText"),
		UntilText:    localize.Localize("common.untilText"),
		EuropeanDate: s.cfg.EuropeanDate,
		Simple:       s.cfg.DisplayStyle == config.StyleSimple,
	}
}

// handleRefresh schedules an immediate pipeline pass.
//
// POST /api/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.ctrl.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

// handleMode toggles between Event and Calendar mode.
//
// POST /api/mode
func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	mode := s.ctrl.ToggleMode()
	appLog.Info("mode toggled", "mode", mode.String())
	writeJSON(w, http.StatusOK, map[string]string{"mode": mode.String()})
}

// handleMonth moves the Calendar-mode month.
//
// POST /api/month?adjust=-1
//
// adjust is a signed month delta, default +1.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	adjust := parseIntDefault(r.URL.Query().Get("adjust"), 1)
	if adjust == 0 {
		writeError(w, http.StatusBadRequest, "adjust must be non-zero")
		return
	}
	month := s.ctrl.ShiftMonth(adjust)
	appLog.Info("month shifted", "adjust", adjust, "month", month.Format("2006-01"))
	writeJSON(w, http.StatusOK, map[string]string{"month": month.Format("2006-01")})
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Warn("failed to load timezone; falling back to local", "name", name, "err", err)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
