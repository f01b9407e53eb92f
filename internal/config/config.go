package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Known room categories. Overrides and defaults must name one of these.
var DefaultCategoryList = []string{
	"athletics", "computer_lab", "classroom", "cuc", "study_room",
	"admin", "other", "lab", "special_lab", "studio",
}

// DefaultBuildings is the set of buildings whose course-schedule rooms are
// imported.
var DefaultBuildings = []string{
	"ANS", "BH", "CFA", "CIC", "CYH", "DH", "GHC", "HBH",
	"HH", "HL", "HOA", "MI", "MM", "NSH", "PCA", "PH", "POS", "REH",
	"TCS", "TEP", "WEH", "WW",
}

// Override replaces one field of a room after classification, e.g.
// {location: "CFA ACH", field: "category", value: "studio"}.
type Override struct {
	Location string `yaml:"location" json:"location"`
	Field    string `yaml:"field" json:"field"`
	Value    string `yaml:"value" json:"value"`
}

// ICSConfig describes an additional course-schedule feed published as ICS.
type ICSConfig struct {
	// URL is the ICS subscription endpoint.
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier used for de-dup and logging.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
}

// TermConfig bounds the weeks in which course meetings take place. Dates
// are YYYY-MM-DD; empty means unbounded.
type TermConfig struct {
	Start string `yaml:"start" json:"start"`
	End   string `yaml:"end" json:"end"`
}

// BookingConfig points at the room-booking system.
type BookingConfig struct {
	BaseURL string `yaml:"base_url" json:"base_url"`
	// LoginURL is opened in a headless browser by `freeroom login`.
	LoginURL string `yaml:"login_url" json:"login_url"`
	// SSOPrefix identifies the single-sign-on page during login.
	SSOPrefix string `yaml:"sso_prefix" json:"sso_prefix"`
	Username  string `yaml:"username" json:"username"`

	// Concurrency caps parallel reservation requests during update.
	Concurrency    int `yaml:"concurrency" json:"concurrency"`
	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// DisplayConfig shapes terminal output.
type DisplayConfig struct {
	ShowStars  bool `yaml:"show_stars" json:"show_stars"`
	FancyTable bool `yaml:"fancy_table" json:"fancy_table"`
	MaxWidth   int  `yaml:"max_width" json:"max_width"`
	// MinAvailableMinutes marks shorter availability in red.
	MinAvailableMinutes int `yaml:"min_available_minutes" json:"min_available_minutes"`
}

// LogConfig configures internal/log.
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the web API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA zone in which booking and course times are read.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DataDir holds daily snapshots and the ICS cache.
	DataDir    string `yaml:"data_dir" json:"data_dir"`
	CookieFile string `yaml:"cookie_file" json:"cookie_file"`

	Favorites []string          `yaml:"favorites" json:"favorites"`
	Notes     map[string]string `yaml:"notes" json:"notes"`
	Overrides []Override        `yaml:"overrides" json:"overrides"`

	Categories        []string `yaml:"categories" json:"categories"`
	DefaultCategories []string `yaml:"default_categories" json:"default_categories"`

	// CurrentMini selects which half-semester sections (A1/A2...) apply.
	CurrentMini int      `yaml:"current_mini" json:"current_mini"`
	Campus      string   `yaml:"campus" json:"campus"`
	Buildings   []string `yaml:"buildings" json:"buildings"`

	SOCFile       string      `yaml:"soc_file" json:"soc_file"`
	RegistrarFile string      `yaml:"registrar_file" json:"registrar_file"`
	CourseICS     []ICSConfig `yaml:"course_ics" json:"course_ics"`
	Term          TermConfig  `yaml:"term" json:"term"`

	Booking BookingConfig `yaml:"booking" json:"booking"`
	Display DisplayConfig `yaml:"display" json:"display"`
	Log     LogConfig     `yaml:"log" json:"log"`

	// Listen is the HTTP listen address for `freeroom serve`.
	Listen string `yaml:"listen" json:"listen"`
	// RefreshCron schedules snapshot refreshes while serving.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultPath returns $XDG_CONFIG_HOME/freeroom/config.yaml (or the OS
// equivalent).
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "freeroom.yaml"
	}
	return filepath.Join(dir, "freeroom", "config.yaml")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{
		Timezone:          "America/New_York",
		CookieFile:        "cookie.dat",
		Favorites:         []string{},
		Notes:             map[string]string{},
		Overrides:         []Override{},
		DefaultCategories: []string{"classroom"},
		CurrentMini:       1,
		Campus:            "Pittsburgh, Pennsylvania",
		SOCFile:           "courses.json",
		RegistrarFile:     "registrar-classrooms.csv",
		CourseICS:         []ICSConfig{},
		Booking: BookingConfig{
			BaseURL:        "https://25live.collegenet.com/25live/data/cmu/run",
			LoginURL:       "https://25live.collegenet.com/pro/cmu",
			SSOPrefix:      "https://login.cmu.edu/idp/profile/SAML2/Redirect/SSO",
			Concurrency:    8,
			TimeoutSeconds: 15,
		},
		Display: DisplayConfig{
			ShowStars:           false,
			FancyTable:          true,
			MaxWidth:            80,
			MinAvailableMinutes: 30,
		},
		Log:         LogConfig{Level: "info"},
		Listen:      "127.0.0.1:8080",
		RefreshCron: "0 5 * * *",
	}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "America/New_York"
	}
	if c.DataDir == "" {
		if dir, err := os.UserCacheDir(); err == nil {
			c.DataDir = filepath.Join(dir, "freeroom")
		} else {
			c.DataDir = "./var/freeroom"
		}
	}
	if c.CookieFile == "" {
		c.CookieFile = filepath.Join(c.DataDir, "cookie.dat")
	}
	if c.Favorites == nil {
		c.Favorites = []string{}
	}
	if c.Notes == nil {
		c.Notes = map[string]string{}
	}
	if c.Overrides == nil {
		c.Overrides = []Override{}
	}
	if len(c.Categories) == 0 {
		c.Categories = append([]string(nil), DefaultCategoryList...)
	}
	if len(c.DefaultCategories) == 0 {
		c.DefaultCategories = []string{"classroom"}
	}
	if c.CurrentMini <= 0 {
		c.CurrentMini = 1
	}
	if len(c.Buildings) == 0 {
		c.Buildings = append([]string(nil), DefaultBuildings...)
	}
	if c.CourseICS == nil {
		c.CourseICS = []ICSConfig{}
	}
	if c.Booking.Concurrency <= 0 {
		c.Booking.Concurrency = 8
	}
	if c.Booking.TimeoutSeconds <= 0 {
		c.Booking.TimeoutSeconds = 15
	}
	if c.Display.MaxWidth <= 0 {
		c.Display.MaxWidth = 80
	}
	if c.Display.MinAvailableMinutes < 0 {
		c.Display.MinAvailableMinutes = 0
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "0 5 * * *"
	}
}

// Validate checks cross-field constraints that Normalize cannot repair.
func (c *Config) Validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}

	known := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		known[cat] = true
	}
	for _, cat := range c.DefaultCategories {
		if !known[cat] {
			return fmt.Errorf("config: default category %q is not a known category", cat)
		}
	}
	for _, o := range c.Overrides {
		switch o.Field {
		case "category":
			if !known[o.Value] {
				return fmt.Errorf("config: override for %s: unknown category %q", o.Location, o.Value)
			}
		case "name", "notes", "comment", "capacity":
		default:
			return fmt.Errorf("config: override for %s: unsupported field %q", o.Location, o.Field)
		}
	}

	if _, _, err := c.TermRange(); err != nil {
		return err
	}
	return nil
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TermRange parses Term. Zero times mean the side is unbounded.
func (c *Config) TermRange() (start, end time.Time, err error) {
	loc := c.Location()
	if c.Term.Start != "" {
		if start, err = time.ParseInLocation("2006-01-02", c.Term.Start, loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config: term start: %w", err)
		}
	}
	if c.Term.End != "" {
		if end, err = time.ParseInLocation("2006-01-02", c.Term.End, loc); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("config: term end: %w", err)
		}
		end = end.Add(24*time.Hour - time.Second)
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return time.Time{}, time.Time{}, errors.New("config: term ends before it starts")
	}
	return start, end, nil
}

// IsFavorite reports whether location is listed in Favorites.
func (c *Config) IsFavorite(location string) bool {
	for _, f := range c.Favorites {
		if f == location {
			return true
		}
	}
	return false
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

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data next to path and renames it into place with
// 0600 permissions, creating the parent directory (0700) if needed.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".freeroom-*.tmp")
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

	return os.Rename(tmpName, path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
