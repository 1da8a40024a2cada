package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "juniper-reader.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Translation != "KJV" {
		t.Errorf("Translation = %q", cfg.Translation)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
database: /tmp/reader.db
listen: ":9090"
log:
  level: debug
  format: text
locale:
  month_names: [Jan, Feb, Mar, Apr, May, Jun, Jul, Aug, Sep, Oct, Nov, Dec]
  date_format: "%[2]d %[1]s"
  date_format_with_year: "%[2]d %[1]s %[3]d"
  time_zone: UTC
  no_results: Empty
search:
  titles:
    notes: My notes
  include:
    notes: true
    bookmarks: false
    highlights: true
  summary: "%d verses"
  debounce: 100ms
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Database != "/tmp/reader.db" || cfg.Listen != ":9090" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Translation != "KJV" {
		t.Errorf("unset Translation should keep default, got %q", cfg.Translation)
	}
	if cfg.Locale.MonthNames[11] != "Dec" || cfg.Locale.DateFormat != "%[2]d %[1]s" {
		t.Errorf("Locale = %+v", cfg.Locale)
	}
	if cfg.Locale.NoResults != "Empty" {
		t.Errorf("NoResults = %q", cfg.Locale.NoResults)
	}
	if cfg.Search.Titles.Notes != "My notes" || cfg.Search.Include.Bookmarks {
		t.Errorf("Search = %+v", cfg.Search)
	}
	if time.Duration(cfg.Search.Debounce) != 100*time.Millisecond {
		t.Errorf("Debounce = %v", time.Duration(cfg.Search.Debounce))
	}
	if cfg.Search.Limit != 1000 {
		t.Errorf("Limit = %d, want default 1000", cfg.Search.Limit)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"short month table", "locale:\n  month_names: [Jan, Feb]\n"},
		{"bad time zone", "locale:\n  time_zone: Mars/Olympus\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"negative limit", "search:\n  limit: -1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("Load error = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestLoadBadDuration(t *testing.T) {
	if _, err := Load(writeConfig(t, "search:\n  debounce: soon\n")); err == nil {
		t.Error("Load should fail for an unparsable duration")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := Default()
	cfg.Listen = ":7000"
	cfg.Locale.TimeZone = "UTC"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Listen != ":7000" || time.Duration(got.Pager.CacheTTL) != 10*time.Minute {
		t.Errorf("round trip = %+v", got)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	got, err := ExpandPath("~/reader.db")
	if err != nil {
		t.Fatal(err)
	}
	if got != filepath.Join(home, "reader.db") {
		t.Errorf("ExpandPath = %q", got)
	}
	if got, _ := ExpandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("ExpandPath(abs) = %q", got)
	}
}
