package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the Web UI and API.
	Listen string `yaml:"listen" json:"listen"`

	// APIBaseURL is the Shift Source root, e.g. "http://localhost:5000".
	APIBaseURL string `yaml:"api_base_url" json:"api_base_url"`

	// RequestTimeoutSec bounds each request to the Shift Source.
	RequestTimeoutSec int `yaml:"request_timeout_sec" json:"request_timeout_sec"`

	// Timezone is the IANA timezone used for date labels and times of day.
	Timezone string `yaml:"timezone" json:"timezone"`

	// DateLayout and TimeLayout are Go reference-time layouts.
	DateLayout string `yaml:"date_layout" json:"date_layout"`
	TimeLayout string `yaml:"time_layout" json:"time_layout"`

	// TomorrowRule is "day_of_month" (default) or "calendar".
	TomorrowRule string `yaml:"tomorrow_rule" json:"tomorrow_rule"`

	// Cities is the presentational list shown in the city selector.
	Cities []string `yaml:"cities" json:"cities"`

	// DefaultCity is selected on startup.
	DefaultCity string `yaml:"default_city" json:"default_city"`

	// RefreshCron is a cron-style schedule ("*/5 * * * *") for reloading the
	// snapshot in the background. Empty disables background refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CalendarName is the X-WR-CALNAME of the exported booked-shift calendar.
	CalendarName string `yaml:"calendar_name" json:"calendar_name"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultAPIBaseURL = "http://localhost:5000"
	defaultTimezone   = "Europe/Helsinki"
	defaultDateLayout = "2/1/2006"
	defaultTimeLayout = "3:04 pm"
	defaultRefresh    = "*/5 * * * *"
	defaultTimeoutSec = 15
	defaultCalendar   = "My Shifts"
)

func defaultCities() []string {
	return []string{"Helsinki", "Tampere", "Turku"}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	cities := defaultCities()
	return &Config{
		Listen:            defaultListen,
		APIBaseURL:        defaultAPIBaseURL,
		RequestTimeoutSec: defaultTimeoutSec,
		Timezone:          defaultTimezone,
		DateLayout:        defaultDateLayout,
		TimeLayout:        defaultTimeLayout,
		TomorrowRule:      "day_of_month",
		Cities:            cities,
		DefaultCity:       cities[0],
		RefreshCron:       defaultRefresh,
		LogLevel:          "info",
		CalendarName:      defaultCalendar,
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = defaultAPIBaseURL
	}
	c.APIBaseURL = strings.TrimRight(c.APIBaseURL, "/")
	if c.RequestTimeoutSec <= 0 {
		c.RequestTimeoutSec = defaultTimeoutSec
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.DateLayout == "" {
		c.DateLayout = defaultDateLayout
	}
	if c.TimeLayout == "" {
		c.TimeLayout = defaultTimeLayout
	}
	switch c.TomorrowRule {
	case "day_of_month", "calendar":
		// ok
	default:
		c.TomorrowRule = "day_of_month"
	}
	if len(c.Cities) == 0 {
		c.Cities = defaultCities()
	}
	if c.DefaultCity == "" {
		c.DefaultCity = c.Cities[0]
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.CalendarName == "" {
		c.CalendarName = defaultCalendar
	}
	// RefreshCron is left alone: empty means disabled.
}

// RequestTimeout returns RequestTimeoutSec as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}

// Environment variables that override file values.
const (
	EnvAPIURL   = "SHIFTBOOK_API_URL"
	EnvListen   = "SHIFTBOOK_LISTEN"
	EnvTimezone = "SHIFTBOOK_TIMEZONE"
	EnvLogLevel = "SHIFTBOOK_LOG_LEVEL"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped; it reports which file, if any, was loaded.
func LoadDotEnv(paths ...string) (string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return p, err
		}
		return p, nil
	}
	return "", nil
}

// ApplyEnv overlays SHIFTBOOK_* variables read through getenv onto c.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIURL); v != "" {
		c.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v := getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := getenv(EnvTimezone); v != "" {
		c.Timezone = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
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
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
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
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600 perms,
// creating the parent directory with 0700 if needed.
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

	tmp, err := os.CreateTemp(dir, ".shiftbook-config-*.tmp")
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
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
