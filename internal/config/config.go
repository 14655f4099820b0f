package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"weekgrid/internal/grid"
	"weekgrid/internal/ics"
	"weekgrid/internal/model"
)

// FeedConfig describes a single ICS subscription whose events are merged
// into the timetable.
type FeedConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url" validate:"required,url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// Color is applied to every event of the feed.
	Color model.ColorTag `yaml:"color,omitempty" json:"color,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// GridConfig controls the geometry of the weekly grid.
type GridConfig struct {
	// DayStartHour is the hour of the first grid row (slot 0).
	DayStartHour int `yaml:"day_start_hour" json:"day_start_hour" validate:"min=0,max=23"`
	// DayEndHour is the hour of the last time-gutter label.
	DayEndHour int `yaml:"day_end_hour" json:"day_end_hour" validate:"gtfield=DayStartHour,max=24"`
	// SlotMinutes is the duration of one grid row.
	SlotMinutes int `yaml:"slot_minutes" json:"slot_minutes" validate:"min=1,max=240"`
	// SlotHeight is the rendered height of one slot, in the renderer's unit
	// (pixels for the HTML view, slots for the text dump).
	SlotHeight float64 `yaml:"slot_height" json:"slot_height" validate:"gt=0"`
	// Columns is the number of day columns.
	Columns int `yaml:"columns" json:"columns" validate:"min=1,max=7"`
	// ResolveOverlaps lays out overlapping events of one day side by side
	// instead of stacking them at identical coordinates.
	ResolveOverlaps bool `yaml:"resolve_overlaps" json:"resolve_overlaps"`
}

// RateLimitConfig bounds API requests per client address.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" json:"per_second" validate:"gte=0"`
	Burst     int     `yaml:"burst" json:"burst" validate:"gte=0"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API and HTML view.
	Listen string `yaml:"listen" json:"listen" validate:"required"`

	// Timezone is the IANA timezone used to resolve "today" and to convert
	// feed events to wall-clock times (e.g. "Europe/Paris").
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart controls which weekday is the first grid column.
	// Supported values:
	//   - "monday" (default)
	//   - "sunday"
	WeekStart string `yaml:"week_start" json:"week_start" validate:"oneof=monday sunday"`

	// RefreshCron is a cron-style schedule string (e.g. "*/15 * * * *")
	// used to re-fetch ICS feeds.
	RefreshCron string `yaml:"refresh" json:"refresh" validate:"required"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error"`

	Grid GridConfig `yaml:"grid" json:"grid"`

	// Events is the static seed timetable.
	Events []model.CalendarEvent `yaml:"events" json:"events" validate:"dive"`

	// ICS is the list of subscribed ICS feeds.
	ICS []FeedConfig `yaml:"ics" json:"ics" validate:"dive"`

	// CacheDir keeps the last good body of each feed. Empty means
	// ./var/ics-cache.
	CacheDir string `yaml:"cache_dir,omitempty" json:"cache_dir,omitempty"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
}

// DefaultEvents is the seed timetable shipped with a fresh config.
func DefaultEvents() []model.CalendarEvent {
	return []model.CalendarEvent{
		{ID: "1", Title: "Mathématiques", Group: "Groupe A", DayIndex: 0, StartTime: "10:00", EndTime: "12:00", Color: model.ColorBlue},
		{ID: "2", Title: "Physique", Group: "Groupe B", DayIndex: 1, StartTime: "10:00", EndTime: "11:30", Color: model.ColorRed},
		{ID: "3", Title: "Développement", Group: "Groupe A", DayIndex: 2, StartTime: "14:00", EndTime: "16:00", Color: model.ColorGreen},
		{ID: "4", Title: "Mathématiques", Group: "Groupe B", DayIndex: 3, StartTime: "09:00", EndTime: "11:00", Color: model.ColorBlue},
		{ID: "5", Title: "Physique", Group: "Groupe A", DayIndex: 4, StartTime: "13:00", EndTime: "14:30", Color: model.ColorRed},
	}
}

// DefaultGrid mirrors the dashboard schedule: 08:00 to 20:00 in 30-minute
// rows, seven columns.
func DefaultGrid() GridConfig {
	return GridConfig{
		DayStartHour: grid.DefaultDayStartHour,
		DayEndHour:   grid.DefaultDayEndHour,
		SlotMinutes:  grid.DefaultSlotMinutes,
		SlotHeight:   48,
		Columns:      grid.DaysPerWeek,
	}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      "127.0.0.1:8080",
		Timezone:    "Europe/Paris",
		WeekStart:   "monday",
		RefreshCron: "*/15 * * * *",
		LogLevel:    "info",
		Grid:        DefaultGrid(),
		Events:      DefaultEvents(),
		ICS:         []FeedConfig{},
		BasicAuth:   nil,
		RateLimit:   RateLimitConfig{PerSecond: 10, Burst: 20},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "Europe/Paris"
	}
	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	switch c.WeekStart {
	case "monday", "sunday":
		// ok
	default:
		// Unknown value; fall back to monday to avoid surprising layouts.
		c.WeekStart = "monday"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/15 * * * *"
	}
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "":
		c.LogLevel = "info"
	case "warning":
		c.LogLevel = "warn"
	}

	def := DefaultGrid()
	if c.Grid.SlotMinutes <= 0 {
		c.Grid.SlotMinutes = def.SlotMinutes
	}
	if c.Grid.DayStartHour == 0 && c.Grid.DayEndHour == 0 {
		c.Grid.DayStartHour = def.DayStartHour
		c.Grid.DayEndHour = def.DayEndHour
	}
	if c.Grid.SlotHeight <= 0 {
		c.Grid.SlotHeight = def.SlotHeight
	}
	if c.Grid.Columns <= 0 {
		c.Grid.Columns = def.Columns
	}

	for i := range c.Events {
		c.Events[i].Color = model.ParseColor(string(c.Events[i].Color))
	}
	if c.ICS == nil {
		c.ICS = []FeedConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			if c.ICS[i].Name != "" {
				c.ICS[i].ID = c.ICS[i].Name
			} else {
				c.ICS[i].ID = c.ICS[i].URL
			}
		}
		if c.ICS[i].Color != "" {
			c.ICS[i].Color = model.ParseColor(string(c.ICS[i].Color))
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints, the refresh cron expression and the
// timezone name.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		return fmt.Errorf("config: refresh %q: %w", c.RefreshCron, err)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Feeds converts the ICS subscriptions for the fetcher.
func (c *Config) Feeds() []ics.Feed {
	feeds := make([]ics.Feed, 0, len(c.ICS))
	for _, f := range c.ICS {
		feeds = append(feeds, ics.Feed{ID: f.ID, URL: f.URL, Color: f.Color})
	}
	return feeds
}

// Placer builds the event placer described by the grid settings.
func (g GridConfig) Placer() grid.Placer {
	return grid.Placer{
		Slots:           g.SlotMapper(),
		SlotHeight:      g.SlotHeight,
		Columns:         g.Columns,
		ResolveOverlaps: g.ResolveOverlaps,
	}
}

// SlotMapper builds the time-to-slot mapper for the grid settings.
func (g GridConfig) SlotMapper() grid.SlotMapper {
	return grid.SlotMapper{DayStartHour: g.DayStartHour, SlotMinutes: g.SlotMinutes}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults and validate
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
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

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".weekgrid-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Set permissions to 0600 on temp file before rename.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
