package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/observability"
	"github.com/opsintel-labs/opsintel/internal/runner"
)

// Scheduler drives refreshes for every scheduled source. Each source's
// refresh must complete before that source can be marked due again; refreshes
// for different sources are independent and run sequentially here.
type Scheduler struct {
	mu       sync.Mutex
	entries  map[string]*Entry
	registry *intel.Registry
	runner   runner.CommandRunner
	logger   observability.Logger

	// now is swappable for due-time tests.
	now func() time.Time
}

// New creates a scheduler over the given adapter registry.
func New(registry *intel.Registry, logger observability.Logger) *Scheduler {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Scheduler{
		entries:  map[string]*Entry{},
		registry: registry,
		runner:   runner.NewExecRunner(),
		logger:   logger,
		now:      time.Now,
	}
}

// SetRunner replaces the external command runner.
func (s *Scheduler) SetRunner(r runner.CommandRunner) {
	s.mu.Lock()
	s.runner = r
	s.mu.Unlock()
}

// LoadFile loads (or reloads) the schedule file. LastRun and LastError are
// preserved for sources that survive the reload.
func (s *Scheduler) LoadFile(path string) error {
	fresh, err := LoadSchedule(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for source, entry := range fresh {
		if prev, ok := s.entries[source]; ok {
			entry.LastRun = prev.LastRun
			if entry.LastError == "" {
				entry.LastError = prev.LastError
			}
			entry.running = prev.running
		}
	}
	s.entries = fresh
	return nil
}

// SetEntries replaces the schedule directly. Tests and embedders use this
// instead of a file.
func (s *Scheduler) SetEntries(entries map[string]*Entry) {
	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
}

// due reports whether the entry should run at instant now: enabled, not
// already running, past today's refresh time, and not yet run since it.
func due(entry *Entry, now time.Time) bool {
	if !entry.Enabled || entry.running {
		return false
	}
	at, err := refreshInstant(entry, now)
	if err != nil {
		return false
	}
	return !now.Before(at) && entry.LastRun.Before(at)
}

// Pending returns the names of sources due for refresh now, sorted.
func (s *Scheduler) Pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	var pending []string
	for source, entry := range s.entries {
		if due(entry, now) {
			pending = append(pending, source)
		}
	}
	sort.Strings(pending)
	return pending
}

// RefreshOutcome reports the result of one refresh attempt.
type RefreshOutcome struct {
	Source   string
	Duration time.Duration
	Err      error
}

// RunPending refreshes every due source. On success LastRun is stamped; on
// failure LastRun is left alone so the source stays due and is retried on
// the next tick. Processing always continues past a failure.
func (s *Scheduler) RunPending(ctx context.Context) []RefreshOutcome {
	var outcomes []RefreshOutcome
	for _, source := range s.Pending() {
		outcomes = append(outcomes, s.refreshOne(ctx, source))
	}
	return outcomes
}

func (s *Scheduler) refreshOne(ctx context.Context, source string) RefreshOutcome {
	s.mu.Lock()
	entry, ok := s.entries[source]
	if !ok {
		s.mu.Unlock()
		return RefreshOutcome{Source: source, Err: fmt.Errorf("scheduler: unknown source %s", source)}
	}
	if entry.running {
		s.mu.Unlock()
		return RefreshOutcome{Source: source, Err: fmt.Errorf("scheduler: %s refresh already in progress", source)}
	}
	entry.running = true
	command := entry.RefreshCommand
	s.mu.Unlock()

	start := s.now()
	err := s.execute(ctx, source, command)
	elapsed := s.now().Sub(start)

	logEntry := observability.RefreshLogEntry{
		Source:   source,
		Command:  command,
		Duration: elapsed,
		Outcome:  "success",
	}
	if err != nil {
		logEntry.Outcome = "error"
		logEntry.Error = err.Error()
	}
	s.logger.LogRefresh(logEntry)

	s.mu.Lock()
	// A reload may have swapped the entries map while the refresh ran;
	// completion must land on the surviving entry, not the captured one.
	if cur, ok := s.entries[source]; ok {
		cur.running = false
		if err != nil {
			cur.LastError = err.Error()
		} else {
			cur.LastRun = s.now()
			cur.LastError = ""
		}
	}
	s.mu.Unlock()

	return RefreshOutcome{Source: source, Duration: elapsed, Err: err}
}

// execute prefers the entry's external refresh command; without one it
// falls back to the registered adapter's Refresh. A cancelled command is
// treated identically to a failed one.
func (s *Scheduler) execute(ctx context.Context, source, command string) error {
	if command != "" {
		return s.runner.Run(ctx, command)
	}

	svc, ok := s.registry.Get(source)
	if !ok {
		return fmt.Errorf("scheduler: no refresh command and no adapter registered for %s", source)
	}
	return svc.Refresh(ctx)
}

// EntryStatus is the observable state of one scheduled source.
type EntryStatus struct {
	Source      string    `json:"source"`
	Enabled     bool      `json:"enabled"`
	RefreshTime string    `json:"refresh_time"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	Running     bool      `json:"running"`
	LastError   string    `json:"last_error,omitempty"`
}

// Status reports every entry's last run, next scheduled run, and enabled
// state, sorted by source name.
func (s *Scheduler) Status() []EntryStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	statuses := make([]EntryStatus, 0, len(s.entries))
	for source, entry := range s.entries {
		status := EntryStatus{
			Source:      source,
			Enabled:     entry.Enabled,
			RefreshTime: entry.RefreshTime,
			LastRun:     entry.LastRun,
			Running:     entry.running,
			LastError:   entry.LastError,
		}
		if entry.Enabled {
			if at, err := refreshInstant(entry, now); err == nil {
				// Due now means next run is today's slot; already
				// satisfied means tomorrow's.
				if entry.LastRun.Before(at) {
					status.NextRun = at
				} else {
					status.NextRun = at.AddDate(0, 0, 1)
				}
			}
		}
		statuses = append(statuses, status)
	}

	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Source < statuses[j].Source })
	return statuses
}

// Run polls for due sources until the context is cancelled. A non-positive
// interval defaults to one minute.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunPending(ctx)
		}
	}
}
