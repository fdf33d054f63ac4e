package intel

import (
	"strings"
	"testing"
	"time"
)

// TestComputeFreshness_ExactThresholdIsFresh proves the staleness boundary:
// data aged exactly the threshold is still fresh, one day beyond is stale.
func TestComputeFreshness_ExactThresholdIsFresh(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	exactly := now.AddDate(0, 0, -DefaultStalenessDays)
	info := ComputeFreshness(&exactly, 100, 0, now)
	if info.Stale {
		t.Errorf("data aged exactly %d days must be fresh, got stale (%q)", DefaultStalenessDays, info.Warning)
	}
	if info.DaysOld != DefaultStalenessDays {
		t.Errorf("expected DaysOld=%d, got %d", DefaultStalenessDays, info.DaysOld)
	}

	beyond := now.AddDate(0, 0, -(DefaultStalenessDays + 1))
	info = ComputeFreshness(&beyond, 100, 0, now)
	if !info.Stale {
		t.Fatal("data aged beyond the threshold must be stale")
	}
	if info.Warning != "Data is 8 days old" {
		t.Errorf("unexpected warning: %q", info.Warning)
	}
}

// TestComputeFreshness_NeverRefreshed proves a nil last-refresh is always
// stale regardless of record count.
func TestComputeFreshness_NeverRefreshed(t *testing.T) {
	info := ComputeFreshness(nil, 500, 0, time.Now())
	if !info.Stale {
		t.Fatal("never-refreshed source must be stale")
	}
	if info.Warning != "Data has never been refreshed" {
		t.Errorf("unexpected warning: %q", info.Warning)
	}
	if info.RecordCount != 500 {
		t.Errorf("record count must survive, got %d", info.RecordCount)
	}
}

// TestComputeFreshness_ThresholdOverride proves a per-source threshold
// replaces the default.
func TestComputeFreshness_ThresholdOverride(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	fiveDays := now.AddDate(0, 0, -5)

	if info := ComputeFreshness(&fiveDays, 10, 3, now); !info.Stale {
		t.Error("5-day-old data must be stale against a 3-day threshold")
	}
	if info := ComputeFreshness(&fiveDays, 10, 0, now); info.Stale {
		t.Error("5-day-old data must be fresh against the default threshold")
	}
}

// TestComputeFreshness_FutureTimestampClampsToZero covers clock skew between
// the extraction host and this process.
func TestComputeFreshness_FutureTimestampClampsToZero(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	future := now.Add(2 * time.Hour)

	info := ComputeFreshness(&future, 10, 0, now)
	if info.DaysOld != 0 {
		t.Errorf("future timestamp must clamp to 0 days old, got %d", info.DaysOld)
	}
	if info.Stale {
		t.Error("future timestamp must not be stale")
	}
}

// TestFailedResult_Invariants proves failures are returned as data: empty
// rows, stale flag set, warning filled, never a nil slice.
func TestFailedResult_Invariants(t *testing.T) {
	result := FailedResult("tickets", "Query failed: connection refused", 250*time.Millisecond)

	if !result.Stale {
		t.Error("failed result must be stale")
	}
	if result.StalenessWarning == "" {
		t.Error("failed result must carry a warning")
	}
	if result.Data == nil || len(result.Data) != 0 {
		t.Errorf("failed result must carry an empty, non-nil row slice, got %v", result.Data)
	}
	if result.Columns == nil {
		t.Error("failed result must carry a non-nil column slice")
	}
	if result.Source != "tickets" {
		t.Errorf("source must survive, got %q", result.Source)
	}
	if result.QueryTimeMillis != 250 {
		t.Errorf("expected 250 ms, got %d", result.QueryTimeMillis)
	}
}

// TestUnreachableFreshness labels connectivity failures without raising.
func TestUnreachableFreshness(t *testing.T) {
	info := UnreachableFreshness("dial tcp: connection refused")
	if !info.Stale {
		t.Fatal("unreachable source must be stale")
	}
	if !strings.HasPrefix(info.Warning, "Source unreachable:") {
		t.Errorf("unexpected warning: %q", info.Warning)
	}
}
