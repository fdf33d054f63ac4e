// Package scheduler keeps each registered data source refreshed at its
// configured cadence. It is a best-effort polling loop, not a transactional
// system: refresh failures are recorded and retried on the next tick, and
// one source's failure never blocks the others.
package scheduler

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/opsintel-labs/opsintel/internal/errors"
)

// EntryConfig is the declarative per-source schedule configuration.
type EntryConfig struct {
	// RefreshTime is the daily refresh time of day, "HH:MM" (24h).
	RefreshTime string `yaml:"refresh_time"`

	// Enabled gates the entry. Missing or malformed entries default to
	// disabled rather than erroring.
	Enabled bool `yaml:"enabled"`

	// RefreshCommand is the external extraction command to run. When
	// empty, the scheduler falls back to the registered adapter's
	// Refresh.
	RefreshCommand string `yaml:"refresh_command"`
}

type scheduleFile struct {
	Sources map[string]EntryConfig `yaml:"sources"`
}

// Entry is the runtime state for one scheduled source. LastRun is the only
// field the scheduler mutates after a successful refresh.
type Entry struct {
	Source         string
	RefreshTime    string
	Enabled        bool
	RefreshCommand string

	LastRun   time.Time
	LastError string
	running   bool
}

// LoadSchedule reads the YAML schedule file. A missing file is not an
// error: it yields an empty schedule, meaning every source is disabled.
// Entries with an unparseable refresh_time are kept but forced disabled,
// with the problem recorded on the entry.
func LoadSchedule(path string) (map[string]*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*Entry{}, nil
		}
		return nil, errors.NewInvalidSchedule(path, err.Error())
	}

	var file scheduleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewInvalidSchedule(path, err.Error())
	}

	entries := make(map[string]*Entry, len(file.Sources))
	for source, cfg := range file.Sources {
		entry := &Entry{
			Source:         source,
			RefreshTime:    cfg.RefreshTime,
			Enabled:        cfg.Enabled,
			RefreshCommand: cfg.RefreshCommand,
		}
		if _, _, err := parseClock(cfg.RefreshTime); err != nil && cfg.Enabled {
			entry.Enabled = false
			entry.LastError = fmt.Sprintf("disabled: %v", err)
		}
		entries[source] = entry
	}
	return entries, nil
}

// parseClock parses an "HH:MM" time of day.
func parseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid refresh_time %q: want HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// refreshInstant returns the entry's refresh time of day on the given date.
func refreshInstant(entry *Entry, day time.Time) (time.Time, error) {
	hour, minute, err := parseClock(entry.RefreshTime)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), nil
}
