// Package models provides the external JSON representations emitted by the
// opsintel CLI in --json mode.
package models

import (
	"time"
)

// QueryResponse is the external form of a query result.
type QueryResponse struct {
	Source              string                   `json:"source"`
	Columns             []string                 `json:"columns"`
	Rows                []map[string]interface{} `json:"rows"`
	RowCount            int                      `json:"row_count"`
	ExtractionTimestamp time.Time                `json:"extraction_timestamp"`
	IsStale             bool                     `json:"is_stale"`
	StalenessWarning    string                   `json:"staleness_warning,omitempty"`
	QueryTimeMs         int64                    `json:"query_time_ms"`
}

// FreshnessEntry is the external form of one sub-source's freshness.
type FreshnessEntry struct {
	Source      string     `json:"source"`
	Subsource   string     `json:"subsource"`
	LastRefresh *time.Time `json:"last_refresh"`
	DaysOld     int        `json:"days_old"`
	IsStale     bool       `json:"is_stale"`
	RecordCount int        `json:"record_count"`
	Warning     string     `json:"warning,omitempty"`
}

// FreshnessReport is the external form of a full freshness report.
type FreshnessReport struct {
	Entries  []FreshnessEntry `json:"entries"`
	AnyStale bool             `json:"any_stale"`
}

// TemplateInfo is the external form of one template catalogue entry.
type TemplateInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Parameters  []string `json:"parameters"`
}

// RefreshResult is the external form of one refresh attempt.
type RefreshResult struct {
	Source     string `json:"source"`
	Success    bool   `json:"success"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ErrorResponse is the external form of a usage or configuration error.
type ErrorResponse struct {
	Error      string `json:"error"`
	Reason     string `json:"reason,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Code       int    `json:"code"`
}
