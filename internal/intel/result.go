// Package intel defines the shared contract for intelligence data sources:
// the result envelope every query returns, the freshness model used to judge
// whether source data is current enough to trust, and the Service interface
// every source adapter implements.
//
// The framework's guiding principle: "is this data trustworthy?" is itself
// information the caller needs, not an exceptional condition. Environmental
// failures (unreachable store, bad SQL, timeout) come back as empty, stale
// results with a warning - never as a raised error.
package intel

import (
	"fmt"
	"time"
)

// DefaultStalenessDays is the age in days beyond which a source's data is
// flagged as stale. Individual sources may override it via configuration;
// data aged exactly this many days is still considered fresh.
const DefaultStalenessDays = 7

// Record is a single result row keyed by normalized (semantic) column name.
// Native store column names never appear as keys; each adapter applies its
// normalization table before returning records.
type Record = map[string]interface{}

// QueryResult is the universal envelope for any query performed through the
// framework. It is constructed once per query call and immutable thereafter.
type QueryResult struct {
	// Data holds the result rows with normalized field names.
	Data []Record `json:"data"`

	// Columns lists the normalized column names in normalization-table
	// order. Go maps are unordered, so callers that care about column
	// order read it from here.
	Columns []string `json:"columns"`

	// Source identifies the physical table/view/database queried.
	Source string `json:"source"`

	// ExtractionTimestamp is the moment the query executed.
	ExtractionTimestamp time.Time `json:"extraction_timestamp"`

	// Stale is true when the source data (not the query itself) is older
	// than the staleness threshold, or when the query failed.
	Stale bool `json:"is_stale"`

	// StalenessWarning explains Stale. Non-empty iff Stale is true.
	StalenessWarning string `json:"staleness_warning,omitempty"`

	// QueryTimeMillis is the wall-clock duration of the query execution.
	QueryTimeMillis int64 `json:"query_time_ms"`
}

// FailedResult builds the envelope for a query that could not be executed.
// Failures are reported as data: empty rows, stale flag set, warning filled.
func FailedResult(source, warning string, elapsed time.Duration) *QueryResult {
	return &QueryResult{
		Data:                []Record{},
		Columns:             []string{},
		Source:              source,
		ExtractionTimestamp: time.Now().UTC(),
		Stale:               true,
		StalenessWarning:    warning,
		QueryTimeMillis:     elapsed.Milliseconds(),
	}
}

// FreshnessInfo describes how current one physical sub-source is. It is
// computed on demand for every freshness report and never cached, since
// staleness must always reflect "now".
type FreshnessInfo struct {
	// LastRefresh is the most recent successful data load into the
	// source. Nil means the source has never been refreshed, which is
	// always stale.
	LastRefresh *time.Time `json:"last_refresh"`

	// DaysOld is the whole number of days since LastRefresh.
	DaysOld int `json:"days_old"`

	// Stale is true when DaysOld exceeds the source's threshold.
	Stale bool `json:"is_stale"`

	// RecordCount is the total rows currently held by the source.
	// Zero is itself diagnostic.
	RecordCount int `json:"record_count"`

	// Warning explains Stale in human-readable form. Non-empty iff Stale.
	Warning string `json:"warning,omitempty"`
}

// ComputeFreshness derives a FreshnessInfo from the last successful refresh
// time, the current row count, and the staleness threshold in days. A zero
// or negative thresholdDays falls back to DefaultStalenessDays.
func ComputeFreshness(lastRefresh *time.Time, recordCount, thresholdDays int, now time.Time) FreshnessInfo {
	if thresholdDays <= 0 {
		thresholdDays = DefaultStalenessDays
	}

	if lastRefresh == nil {
		return FreshnessInfo{
			Stale:       true,
			RecordCount: recordCount,
			Warning:     "Data has never been refreshed",
		}
	}

	daysOld := int(now.Sub(*lastRefresh).Hours() / 24)
	if daysOld < 0 {
		daysOld = 0
	}

	info := FreshnessInfo{
		LastRefresh: lastRefresh,
		DaysOld:     daysOld,
		RecordCount: recordCount,
	}

	if daysOld > thresholdDays {
		info.Stale = true
		info.Warning = fmt.Sprintf("Data is %d days old", daysOld)
	}

	return info
}

// UnreachableFreshness builds the report entry for a sub-source whose store
// could not be queried. Freshness reporting is diagnostic and must stay
// resilient, so connectivity failures are folded into the report rather
// than propagated.
func UnreachableFreshness(reason string) FreshnessInfo {
	return FreshnessInfo{
		Stale:   true,
		Warning: fmt.Sprintf("Source unreachable: %s", reason),
	}
}
