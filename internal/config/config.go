package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"agendacal/internal/localize"
)

// Display styles. A style is a base configuration that user values are
// merged over; "simple" flips a handful of defaults the way the compact
// layout expects them.
const (
	StyleStandard = "standard"
	StyleSimple   = "simple"
)

// Display modes.
const (
	ModeEvent    = "Event"
	ModeCalendar = "Calendar"
)

// SourceConfig describes a single calendar source. A source is addressed
// either through the host calendar API (Calendar) or as a direct ICS
// subscription (ICSURL); exactly one of the two should be set.
type SourceConfig struct {
	// ID is an internal identifier used for logging and de-dup.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label carried into the agenda output.
	Name string `yaml:"name" json:"name"`
	// Calendar is the host API calendar identifier.
	Calendar string `yaml:"calendar,omitempty" json:"calendar,omitempty"`
	// ICSURL is an ICS subscription endpoint, used instead of Calendar.
	ICSURL string `yaml:"ics_url,omitempty" json:"ics_url,omitempty"`

	Color string `yaml:"color,omitempty" json:"color,omitempty"`
	Icon  string `yaml:"icon,omitempty" json:"icon,omitempty"`

	// Whitelist/Blacklist/LocationWhitelist are comma-separated term
	// lists matched case-insensitively at word boundaries.
	Whitelist         string `yaml:"whitelist,omitempty" json:"whitelist,omitempty"`
	Blacklist         string `yaml:"blacklist,omitempty" json:"blacklist,omitempty"`
	LocationWhitelist string `yaml:"location_whitelist,omitempty" json:"location_whitelist,omitempty"`

	// StartTimeFilter/EndTimeFilter bound a daily recurring window
	// ("HH:mm"); events starting outside it are dropped.
	StartTimeFilter string `yaml:"start_time_filter,omitempty" json:"start_time_filter,omitempty"`
	EndTimeFilter   string `yaml:"end_time_filter,omitempty" json:"end_time_filter,omitempty"`

	// MaxDaysToShow overrides the global day horizon for this source's
	// fetch window. Zero means "use the global value".
	MaxDaysToShow int `yaml:"max_days_to_show,omitempty" json:"max_days_to_show,omitempty"`
}

// HostAPIConfig points at the dashboard host's calendar API.
type HostAPIConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	Token   string `yaml:"token,omitempty" json:"token,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the fully resolved application configuration. It is built
// once by Resolve (style base merged with user overrides) and treated
// as read-only afterwards.
type Config struct {
	// Listen is the HTTP listen address for the agenda API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display timezone (e.g. "Europe/Berlin").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Refresh is a cron-style schedule for periodic pipeline runs.
	Refresh string `yaml:"refresh" json:"refresh"`

	// DisplayStyle selects the defaults base: "standard" or "simple".
	DisplayStyle string `yaml:"display_style" json:"display_style"`

	// DefaultMode is the mode the service starts in: "Event" or "Calendar".
	DefaultMode string `yaml:"default_mode" json:"default_mode"`

	// MaxDaysToShow is the Event-mode day horizon. Zero keeps only
	// currently running events.
	MaxDaysToShow  int `yaml:"max_days_to_show" json:"max_days_to_show"`
	StartDaysAhead int `yaml:"start_days_ahead" json:"start_days_ahead"`

	// MaxEventCount caps the Event-mode list (zero = unlimited);
	// SoftLimit adds hysteresis before the cap kicks in.
	MaxEventCount int `yaml:"max_event_count" json:"max_event_count"`
	SoftLimit     int `yaml:"soft_limit" json:"soft_limit"`

	SortByStartTime    bool `yaml:"sort_by_start_time" json:"sort_by_start_time"`
	HideDuplicates     bool `yaml:"hide_duplicates" json:"hide_duplicates"`
	HideFinishedEvents bool `yaml:"hide_finished_events" json:"hide_finished_events"`
	ShowPrivate        bool `yaml:"show_private" json:"show_private"`
	ShowDeclined       bool `yaml:"show_declined" json:"show_declined"`
	ShowRelativeTime   bool `yaml:"show_relative_time" json:"show_relative_time"`

	// FirstDayOfWeek is the weekday the Calendar-mode grid starts on
	// (0 = Sunday .. 6 = Saturday).
	FirstDayOfWeek int `yaml:"first_day_of_week" json:"first_day_of_week"`

	// ShowNoEventsDay synthesizes a placeholder entry for days without
	// events instead of omitting the day.
	ShowNoEventsDay bool `yaml:"show_no_events_day" json:"show_no_events_day"`

	// EuropeanDate renders day-and-month as "2 Jan" instead of "Jan 2".
	EuropeanDate bool `yaml:"european_date" json:"european_date"`

	// Label text overrides; empty values fall back to the localization
	// catalog.
	FullDayEventText string `yaml:"full_day_event_text,omitempty" json:"full_day_event_text,omitempty"`
	UntilText        string `yaml:"until_text,omitempty" json:"until_text,omitempty"`
	NoEventText      string `yaml:"no_event_text,omitempty" json:"no_event_text,omitempty"`
	HiddenEventText  string `yaml:"hidden_event_text,omitempty" json:"hidden_event_text,omitempty"`

	HostAPI HostAPIConfig `yaml:"host_api" json:"host_api"`

	// Sources is the ordered list of calendar sources. Order matters:
	// earlier sources win sort ties.
	Sources []SourceConfig `yaml:"sources" json:"sources"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns the standard-style base configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           "127.0.0.1:8080",
		Timezone:         "Local",
		Refresh:          "@every 1m",
		DisplayStyle:     StyleStandard,
		DefaultMode:      ModeEvent,
		MaxDaysToShow:    7,
		StartDaysAhead:   0,
		MaxEventCount:    0,
		SoftLimit:        0,
		SortByStartTime:  true,
		ShowPrivate:      true,
		ShowRelativeTime: true,
		FirstDayOfWeek:   1,
		Sources:          []SourceConfig{},
	}
}

// simpleConfig returns the simple-style base: the standard defaults with
// the handful of flags the compact layout flips.
func simpleConfig() *Config {
	c := DefaultConfig()
	c.DisplayStyle = StyleSimple
	c.FirstDayOfWeek = 0
	c.HideDuplicates = true
	c.ShowRelativeTime = false
	c.ShowNoEventsDay = true
	return c
}

// styleBase returns the defaults base for a display style name.
func styleBase(style string) *Config {
	if style == StyleSimple {
		return simpleConfig()
	}
	return DefaultConfig()
}

// Resolve merges raw YAML config data over the matching style base and
// validates the result. It is a pure function of its input: the style is
// read in a first pass, then the full document is unmarshalled over that
// style's defaults so only fields present in the file override them.
func Resolve(data []byte) (*Config, error) {
	var probe struct {
		DisplayStyle string `yaml:"display_style"`
	}
	if err := yaml.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := styleBase(probe.DisplayStyle)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	cfg.applyTextOverrides()
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Refresh == "" {
		c.Refresh = "@every 1m"
	}
	switch c.DisplayStyle {
	case StyleStandard, StyleSimple:
	case "":
		c.DisplayStyle = StyleStandard
	default:
		return fmt.Errorf("config: unknown display_style %q", c.DisplayStyle)
	}
	switch c.DefaultMode {
	case ModeEvent, ModeCalendar:
	case "":
		c.DefaultMode = ModeEvent
	default:
		return fmt.Errorf("config: unknown default_mode %q", c.DefaultMode)
	}
	if c.FirstDayOfWeek < 0 || c.FirstDayOfWeek > 6 {
		return fmt.Errorf("config: first_day_of_week %d out of range 0..6", c.FirstDayOfWeek)
	}
	if c.MaxDaysToShow < 0 {
		c.MaxDaysToShow = 0
	}
	if c.MaxEventCount < 0 {
		c.MaxEventCount = 0
	}
	if c.SoftLimit < 0 {
		c.SoftLimit = 0
	}
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Calendar == "" && src.ICSURL == "" {
			return fmt.Errorf("config: source %d has neither calendar nor ics_url", i)
		}
		if src.ID == "" {
			if src.Calendar != "" {
				src.ID = src.Calendar
			} else {
				src.ID = src.ICSURL
			}
		}
	}
	return nil
}

// applyTextOverrides pushes configured label texts into the localization
// catalog and backfills unset fields from it, so downstream code can read
// the Config fields directly.
func (c *Config) applyTextOverrides() {
	localize.Override("common.fullDayEventText", c.FullDayEventText)
	localize.Override("common.untilText", c.UntilText)
	localize.Override("common.noEventText", c.NoEventText)
	localize.Override("common.hiddenEventText", c.HiddenEventText)

	if c.FullDayEventText == "" {
		c.FullDayEventText = localize.Localize("common.fullDayEventText")
	}
	if c.UntilText == "" {
		c.UntilText = localize.Localize("common.untilText")
	}
	if c.NoEventText == "" {
		c.NoEventText = localize.Localize("common.noEventText")
	}
	if c.HiddenEventText == "" {
		c.HiddenEventText = localize.Localize("common.hiddenEventText")
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - resolve it against the style defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			cfg.applyTextOverrides()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	return Resolve(data)
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".agendacal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	// Flush and close before chmod/rename.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
