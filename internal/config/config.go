// Package config loads the reader's YAML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FocuswithJustin/JuniperReader/core/annotate"
	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/core/search"
	"github.com/FocuswithJustin/JuniperReader/internal/logging"
)

// Config is the in-memory representation of juniper-reader.yaml.
type Config struct {
	Database    string       `yaml:"database"`
	Translation string       `yaml:"translation"`
	Listen      string       `yaml:"listen"`
	Log         LogConfig    `yaml:"log"`
	Locale      LocaleConfig `yaml:"locale"`
	Search      SearchConfig `yaml:"search"`
	Pager       PagerConfig  `yaml:"pager"`

	// AllowedOrigins limits CORS and websocket origins. Empty allows all.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// LogConfig selects the log level and format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LocaleConfig holds the strings used by annotation grouping.
type LocaleConfig struct {
	annotate.Locale `yaml:",inline"`

	TimeZone string `yaml:"time_zone"`
	// NoResults is the placeholder header for an empty annotation list.
	NoResults string `yaml:"no_results"`
}

// SearchConfig holds search section titles and behavior.
type SearchConfig struct {
	Titles   search.Titles  `yaml:"titles"`
	Include  search.Include `yaml:"include"`
	Summary  string         `yaml:"summary"`
	Debounce Duration       `yaml:"debounce"`
	Limit    int            `yaml:"limit"`
}

// PagerConfig controls chapter content caching.
type PagerConfig struct {
	CacheTTL Duration `yaml:"cache_ttl"`
}

// Duration is a time.Duration that unmarshals from strings like "300ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Database:    "juniper-reader.db",
		Translation: "KJV",
		Listen:      "127.0.0.1:8080",
		Log:         LogConfig{Level: "info", Format: "json"},
		Locale: LocaleConfig{
			Locale:    annotate.DefaultLocale(),
			TimeZone:  "Local",
			NoResults: "Nothing here yet",
		},
		Search: SearchConfig{
			Titles:   search.Titles{Notes: "Notes", Bookmarks: "Bookmarks", Highlights: "Highlights"},
			Include:  search.Include{Notes: true, Bookmarks: true, Highlights: true},
			Summary:  search.DefaultSummaryFormat,
			Debounce: Duration(250 * time.Millisecond),
			Limit:    1000,
		},
		Pager: PagerConfig{CacheTTL: Duration(10 * time.Minute)},
	}
}

// Load reads path and merges it over Default. A missing path returns
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.NewIO("read", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot serialize config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIO("create directory for", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}

// Validate checks values the engines would otherwise reject at runtime.
func (c *Config) Validate() error {
	if err := c.Locale.Locale.Validate(); err != nil {
		return err
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.NewValidation("log.level", err.Error())
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		return errors.NewValidation("log.format", err.Error())
	}
	if c.Search.Limit < 0 {
		return errors.NewValidation("search.limit", "must not be negative")
	}
	return nil
}

// Location resolves Locale.TimeZone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Locale.TimeZone)
	if err != nil {
		return nil, &errors.ValidationError{
			Field:   "locale.time_zone",
			Value:   c.Locale.TimeZone,
			Message: "unknown time zone",
			Err:     err,
		}
	}
	return loc, nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(p string) (string, error) {
	if !strings.HasPrefix(p, "~") {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot expand ~: %w", err)
	}
	return filepath.Join(home, p[1:]), nil
}
