package scheduler

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSchedule(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write schedule: %v", err)
	}
	return path
}

func TestLoadSchedule(t *testing.T) {
	path := writeSchedule(t, `
sources:
  ticketing:
    refresh_time: "06:00"
    enabled: true
    refresh_command: "extract-tickets --all"
  patchmgmt:
    refresh_time: "06:30"
    enabled: false
    refresh_command: "pmp-collect"
`)

	entries, err := LoadSchedule(path)
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	tk := entries["ticketing"]
	if tk == nil || !tk.Enabled || tk.RefreshTime != "06:00" || tk.RefreshCommand != "extract-tickets --all" {
		t.Errorf("ticketing entry wrong: %+v", tk)
	}
	if pm := entries["patchmgmt"]; pm == nil || pm.Enabled {
		t.Errorf("disabled entry must stay disabled: %+v", pm)
	}
}

// TestLoadSchedule_MissingFileIsEmpty proves a missing schedule file means
// "nothing scheduled", not an error.
func TestLoadSchedule_MissingFileIsEmpty(t *testing.T) {
	entries, err := LoadSchedule(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("missing file must yield an empty schedule, got %d entries", len(entries))
	}
}

// TestLoadSchedule_BadRefreshTimeDisablesEntry proves a malformed
// refresh_time disables just that entry instead of failing the whole load.
func TestLoadSchedule_BadRefreshTimeDisablesEntry(t *testing.T) {
	path := writeSchedule(t, `
sources:
  ticketing:
    refresh_time: "25:99"
    enabled: true
  patchmgmt:
    refresh_time: "06:30"
    enabled: true
`)

	entries, err := LoadSchedule(path)
	if err != nil {
		t.Fatalf("LoadSchedule: %v", err)
	}

	tk := entries["ticketing"]
	if tk.Enabled {
		t.Error("entry with bad refresh_time must be forced disabled")
	}
	if !strings.HasPrefix(tk.LastError, "disabled:") {
		t.Errorf("disable reason must be recorded, got %q", tk.LastError)
	}
	if !entries["patchmgmt"].Enabled {
		t.Error("valid sibling entry must stay enabled")
	}
}

func TestLoadSchedule_MalformedYAML(t *testing.T) {
	path := writeSchedule(t, "sources: [not a map")
	if _, err := LoadSchedule(path); err == nil {
		t.Fatal("malformed YAML must error")
	}
}

func TestParseClock(t *testing.T) {
	hour, minute, err := parseClock("06:30")
	if err != nil || hour != 6 || minute != 30 {
		t.Errorf("parseClock(06:30) = %d:%d, %v", hour, minute, err)
	}
	for _, bad := range []string{"", "6am", "24:00", "12:60"} {
		if _, _, err := parseClock(bad); err == nil {
			t.Errorf("parseClock(%q) must fail", bad)
		}
	}
}
