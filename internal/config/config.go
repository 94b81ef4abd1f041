package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"chorenote/internal/recur"
)

const (
	DefaultListen   = "127.0.0.1:8080"
	DefaultSchedule = "30 6 * * *"
	DefaultWidth    = 48
	DefaultTimeout  = time.Second
)

// EventConfig is one recurring chore as written in the config file.
type EventConfig struct {
	Name string `yaml:"name" json:"name"`
	// StartDate is YYYY-MM-DD.
	StartDate string `yaml:"start_date" json:"start_date"`
	// Frequency is a day interval such as "14d".
	Frequency string `yaml:"frequency" json:"frequency"`
}

// NoteConfig locates the daily note template and output directory.
// Note writing is skipped unless both paths are set.
type NoteConfig struct {
	DailyDir     string `yaml:"daily_dir" json:"daily_dir"`
	TemplatePath string `yaml:"template_path" json:"template_path"`
	// FileSuffix is appended to the date in the note file name, before ".md".
	FileSuffix string `yaml:"file_suffix" json:"file_suffix"`
}

// PrinterConfig describes the network receipt printer.
// Printing is skipped when Address is empty.
type PrinterConfig struct {
	// Address is host:port (port 9100 if omitted); a tcp:// prefix is accepted.
	Address string `yaml:"address" json:"address"`
	// Width is the number of characters per printed line.
	Width int `yaml:"width" json:"width"`
	// Timeout bounds dialing and writing, as a Go duration ("1s").
	Timeout string `yaml:"timeout" json:"timeout"`
}

// QuoteConfig controls the quote-of-the-day collaborator.
type QuoteConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// URL returns a JSON quote. Empty means use the built-in list only.
	URL string `yaml:"url" json:"url"`
	// CacheDir keeps one fetched quote per date.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the local API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the local API. Empty disables it.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone that decides what "today" is.
	// Empty means the host's local zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Schedule is a cron expression (e.g. "30 6 * * *") for the daily run.
	Schedule string `yaml:"schedule" json:"schedule"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Note    NoteConfig    `yaml:"note" json:"note"`
	Printer PrinterConfig `yaml:"printer" json:"printer"`
	Quote   QuoteConfig   `yaml:"quote" json:"quote"`

	// Events is the ordered chore list. Order is kept in the daily note.
	Events []EventConfig `yaml:"events" json:"events"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   DefaultListen,
		Schedule: DefaultSchedule,
		LogLevel: "info",
		Printer: PrinterConfig{
			Width:   DefaultWidth,
			Timeout: DefaultTimeout.String(),
		},
		Quote: QuoteConfig{
			Enabled:  true,
			CacheDir: "./cache/quotes",
		},
		Events: []EventConfig{
			{Name: "Dish Washer", StartDate: "2023-07-30", Frequency: "1d"},
			{Name: "Take trash out", StartDate: "2023-07-29", Frequency: "5d"},
			{Name: "Vacuum Floor", StartDate: "2023-07-23", Frequency: "7d"},
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Printer.Width <= 0 {
		c.Printer.Width = DefaultWidth
	}
	if c.Printer.Timeout == "" {
		c.Printer.Timeout = DefaultTimeout.String()
	}
	if c.Events == nil {
		c.Events = []EventConfig{}
	}
}

// PrinterTimeout parses Printer.Timeout, falling back to DefaultTimeout.
func (c *Config) PrinterTimeout() time.Duration {
	d, err := time.ParseDuration(c.Printer.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// Location resolves Timezone. An empty name is time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// EventDefinitions converts and validates every configured event. A single
// malformed entry rejects the whole list; all failures are reported.
func (c *Config) EventDefinitions() ([]recur.EventDefinition, error) {
	out := make([]recur.EventDefinition, 0, len(c.Events))
	var errs []error
	for i, ec := range c.Events {
		ev, err := recur.NewEvent(ec.Name, ec.StartDate, ec.Frequency)
		if err != nil {
			errs = append(errs, fmt.Errorf("events[%d]: %w", i, err))
			continue
		}
		out = append(out, ev)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// Validate checks everything a daily run depends on.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.EventDefinitions(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cron.ParseStandard(c.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("schedule %q: %w", c.Schedule, err))
	}
	if c.Printer.Timeout != "" {
		if _, err := time.ParseDuration(c.Printer.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("printer.timeout: %w", err))
		}
	}
	return errors.Join(errs...)
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
//   - In both cases, apply environment overrides (see ApplyEnv)
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return cfg, err
	}
	ApplyEnv(cfg)
	return cfg, nil
}

func read(path string) (*Config, error) {
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

	return Parse(data)
}

// Parse decodes YAML bytes into a normalized Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
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

	tmp, err := os.CreateTemp(dir, ".chorenote-config-*.tmp")
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

func (c *Config) Save(path string) error {
	return Save(path, c)
}
