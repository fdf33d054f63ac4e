package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/runner"
)

// refreshCounter is a minimal intel.Service counting Refresh calls.
type refreshCounter struct {
	name     string
	refreshs int
	err      error
}

func (s *refreshCounter) Name() string { return s.name }

func (s *refreshCounter) FreshnessReport(ctx context.Context) map[string]intel.FreshnessInfo {
	return map[string]intel.FreshnessInfo{}
}

func (s *refreshCounter) QueryRaw(ctx context.Context, query string, args ...interface{}) *intel.QueryResult {
	return &intel.QueryResult{Data: []intel.Record{}, Columns: []string{}, Source: s.name}
}

func (s *refreshCounter) Refresh(ctx context.Context) error {
	s.refreshs++
	return s.err
}

func (s *refreshCounter) Close() error { return nil }

func testScheduler(now time.Time) *Scheduler {
	s := New(intel.NewRegistry(), nil)
	s.now = func() time.Time { return now }
	return s
}

func TestDue(t *testing.T) {
	now := time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC)

	cases := []struct {
		label string
		entry Entry
		want  bool
	}{
		{"past slot, never run", Entry{Enabled: true, RefreshTime: "06:00"}, true},
		{"before slot", Entry{Enabled: true, RefreshTime: "08:00"}, false},
		{"already run today", Entry{Enabled: true, RefreshTime: "06:00",
			LastRun: time.Date(2026, 8, 25, 6, 5, 0, 0, time.UTC)}, false},
		{"ran yesterday", Entry{Enabled: true, RefreshTime: "06:00",
			LastRun: time.Date(2026, 8, 24, 6, 5, 0, 0, time.UTC)}, true},
		{"disabled", Entry{Enabled: false, RefreshTime: "06:00"}, false},
		{"bad refresh time", Entry{Enabled: true, RefreshTime: "whenever"}, false},
		{"exactly at slot", Entry{Enabled: true, RefreshTime: "07:00"}, true},
		{"already running", Entry{Enabled: true, RefreshTime: "06:00", running: true}, false},
	}
	for _, c := range cases {
		entry := c.entry
		if got := due(&entry, now); got != c.want {
			t.Errorf("%s: due = %t, want %t", c.label, got, c.want)
		}
	}
}

func TestPending_Sorted(t *testing.T) {
	s := testScheduler(time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC))
	s.SetEntries(map[string]*Entry{
		"ticketing": {Source: "ticketing", Enabled: true, RefreshTime: "06:00"},
		"assetinv":  {Source: "assetinv", Enabled: true, RefreshTime: "06:30"},
		"patchmgmt": {Source: "patchmgmt", Enabled: false, RefreshTime: "06:00"},
	})

	got := s.Pending()
	want := []string{"assetinv", "ticketing"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("Pending() = %v, want %v", got, want)
	}
}

// TestRunPending_FailureIsolation proves one source's refresh failure never
// blocks the others, and only successful runs stamp LastRun.
func TestRunPending_FailureIsolation(t *testing.T) {
	now := time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC)
	s := testScheduler(now)
	s.SetEntries(map[string]*Entry{
		"broken": {Source: "broken", Enabled: true, RefreshTime: "06:00", RefreshCommand: "broken-cmd"},
		"good":   {Source: "good", Enabled: true, RefreshTime: "06:00", RefreshCommand: "good-cmd"},
	})
	s.SetRunner(runner.FuncRunner(func(ctx context.Context, command string) error {
		if command == "broken-cmd" {
			return errors.New("exit status 1")
		}
		return nil
	}))

	outcomes := s.RunPending(context.Background())
	if len(outcomes) != 2 {
		t.Fatalf("both sources must be attempted, got %d outcomes", len(outcomes))
	}

	byName := map[string]RefreshOutcome{}
	for _, o := range outcomes {
		byName[o.Source] = o
	}
	if byName["broken"].Err == nil {
		t.Error("broken source must report its failure")
	}
	if byName["good"].Err != nil {
		t.Errorf("good source must succeed, got %v", byName["good"].Err)
	}

	// Failure leaves LastRun unstamped, so the broken source stays due.
	if got := s.Pending(); len(got) != 1 || got[0] != "broken" {
		t.Errorf("only the failed source may stay pending, got %v", got)
	}

	status := s.Status()
	for _, st := range status {
		switch st.Source {
		case "broken":
			if !st.LastRun.IsZero() {
				t.Error("failed refresh must not stamp LastRun")
			}
			if st.LastError == "" {
				t.Error("failed refresh must record LastError")
			}
		case "good":
			if st.LastRun.IsZero() {
				t.Error("successful refresh must stamp LastRun")
			}
			if st.LastError != "" {
				t.Errorf("successful refresh must clear LastError, got %q", st.LastError)
			}
		}
	}
}

// TestRunPending_AdapterFallback proves an entry without a refresh command
// delegates to the registered adapter's Refresh.
func TestRunPending_AdapterFallback(t *testing.T) {
	registry := intel.NewRegistry()
	svc := &refreshCounter{name: "ticketing"}
	registry.Register(svc)

	s := New(registry, nil)
	s.now = func() time.Time { return time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC) }
	s.SetEntries(map[string]*Entry{
		"ticketing": {Source: "ticketing", Enabled: true, RefreshTime: "06:00"},
	})

	outcomes := s.RunPending(context.Background())
	if len(outcomes) != 1 || outcomes[0].Err != nil {
		t.Fatalf("unexpected outcomes: %+v", outcomes)
	}
	if svc.refreshs != 1 {
		t.Errorf("adapter Refresh called %d times, want 1", svc.refreshs)
	}
}

func TestStatus_NextRun(t *testing.T) {
	now := time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC)
	s := testScheduler(now)
	s.SetEntries(map[string]*Entry{
		"due": {Source: "due", Enabled: true, RefreshTime: "06:00"},
		"done": {Source: "done", Enabled: true, RefreshTime: "06:00",
			LastRun: time.Date(2026, 8, 25, 6, 1, 0, 0, time.UTC)},
	})

	today := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	for _, st := range s.Status() {
		switch st.Source {
		case "due":
			if !st.NextRun.Equal(today) {
				t.Errorf("due source NextRun = %v, want today's slot %v", st.NextRun, today)
			}
		case "done":
			if !st.NextRun.Equal(today.AddDate(0, 0, 1)) {
				t.Errorf("satisfied source NextRun = %v, want tomorrow's slot", st.NextRun)
			}
		}
	}
}

// TestLoadFile_PreservesRunState proves reloading the schedule keeps each
// surviving source's LastRun, so a config edit never triggers spurious
// re-refreshes.
func TestLoadFile_PreservesRunState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	content := `
sources:
  ticketing:
    refresh_time: "06:00"
    enabled: true
    refresh_command: "extract"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	now := time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC)
	s := testScheduler(now)
	if err := s.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	s.SetRunner(runner.FuncRunner(func(ctx context.Context, command string) error { return nil }))
	s.RunPending(context.Background())

	var before time.Time
	for _, st := range s.Status() {
		before = st.LastRun
	}
	if before.IsZero() {
		t.Fatal("precondition: refresh must have stamped LastRun")
	}

	if err := s.LoadFile(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	for _, st := range s.Status() {
		if !st.LastRun.Equal(before) {
			t.Errorf("LastRun lost across reload: %v != %v", st.LastRun, before)
		}
	}
}

// TestLoadFile_ReloadDuringRefresh proves a schedule reload while a refresh
// is in flight neither wedges the entry in the running state nor loses the
// completion stamp, so the source comes due again the next day.
func TestLoadFile_ReloadDuringRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	content := `
sources:
  ticketing:
    refresh_time: "06:00"
    enabled: true
    refresh_command: "extract"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	day := time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC)
	s := testScheduler(day)
	if err := s.LoadFile(path); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	started := make(chan struct{})
	release := make(chan struct{})
	s.SetRunner(runner.FuncRunner(func(ctx context.Context, command string) error {
		close(started)
		<-release
		return nil
	}))

	done := make(chan struct{})
	go func() {
		s.RunPending(context.Background())
		close(done)
	}()

	<-started
	if err := s.LoadFile(path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	close(release)
	<-done

	for _, st := range s.Status() {
		if st.Running {
			t.Error("entry stuck running after reload during refresh")
		}
		if st.LastRun.IsZero() {
			t.Error("completion must stamp the surviving entry's LastRun")
		}
	}

	s.now = func() time.Time { return day.AddDate(0, 0, 1) }
	if got := s.Pending(); len(got) != 1 || got[0] != "ticketing" {
		t.Errorf("source must come due again the next day, got %v", got)
	}
}

func TestRefreshOne_UnknownSource(t *testing.T) {
	s := testScheduler(time.Now())
	outcome := s.refreshOne(context.Background(), "ghost")
	if outcome.Err == nil {
		t.Fatal("refreshing an unscheduled source must fail")
	}
}

// TestExecute_NoCommandNoAdapter covers the misconfiguration where a source
// has neither a refresh command nor a registered adapter.
func TestExecute_NoCommandNoAdapter(t *testing.T) {
	s := testScheduler(time.Date(2026, 8, 25, 7, 0, 0, 0, time.UTC))
	s.SetEntries(map[string]*Entry{
		"orphan": {Source: "orphan", Enabled: true, RefreshTime: "06:00"},
	})

	outcomes := s.RunPending(context.Background())
	if len(outcomes) != 1 || outcomes[0].Err == nil {
		t.Fatalf("orphan source must fail its refresh, got %+v", outcomes)
	}
	if want := fmt.Sprintf("scheduler: no refresh command and no adapter registered for %s", "orphan"); outcomes[0].Err.Error() != want {
		t.Errorf("error = %q, want %q", outcomes[0].Err, want)
	}
}
