// Package observability provides structured logging for the intelligence
// framework. Structured logging only: every query emits source, duration,
// row count, staleness outcome, and error (if any); every refresh attempt
// emits source, command, duration, and outcome.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
)

// QueryLogEntry records one query executed through an adapter.
type QueryLogEntry struct {
	// Source is the physical table/view/database queried.
	Source string

	// Duration is how long the query took to execute. Must be non-negative.
	Duration time.Duration

	// RowCount is the number of records returned.
	RowCount int

	// Stale indicates the result was flagged stale (old data or failure).
	Stale bool

	// Outcome is "success" or "error".
	Outcome string

	// Error contains the failure description for error outcomes.
	Error string
}

// Validate checks that required fields are present.
func (e *QueryLogEntry) Validate() error {
	if e.Source == "" {
		return fmt.Errorf("observability: source is required")
	}
	if e.Duration < 0 {
		return fmt.Errorf("observability: duration cannot be negative")
	}
	return nil
}

// RefreshLogEntry records one refresh attempt made by the scheduler or an
// adapter.
type RefreshLogEntry struct {
	Source   string
	Command  string
	Duration time.Duration
	Outcome  string
	Error    string
}

// Logger is the interface for framework event logging.
type Logger interface {
	// LogQuery logs a query execution event.
	LogQuery(entry QueryLogEntry) error

	// LogRefresh logs a refresh attempt.
	LogRefresh(entry RefreshLogEntry) error

	// Summary returns aggregated statistics over logged events.
	Summary() *ActivityLog
}

// ActivityLog is an aggregated view over logged events, for quick
// operational visibility without a dashboard.
type ActivityLog struct {
	QueryCount       int               `json:"query_count"`
	StaleResultCount int               `json:"stale_result_count"`
	RefreshFailures  int               `json:"refresh_failures"`
	QueriesBySource  []SourceQueryStat `json:"queries_by_source"`
}

// SourceQueryStat counts queries against one source.
type SourceQueryStat struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

type jsonQueryLine struct {
	Timestamp  string `json:"timestamp"`
	Level      string `json:"level"`
	Event      string `json:"event"`
	Source     string `json:"source"`
	DurationMs int64  `json:"duration_ms"`
	RowCount   int    `json:"row_count"`
	Stale      bool   `json:"is_stale"`
	Outcome    string `json:"outcome,omitempty"`
	Error      string `json:"error,omitempty"`
}

type jsonRefreshLine struct {
	Timestamp  string `json:"timestamp"`
	Level      string `json:"level"`
	Event      string `json:"event"`
	Source     string `json:"source"`
	Command    string `json:"command,omitempty"`
	DurationMs int64  `json:"duration_ms"`
	Outcome    string `json:"outcome,omitempty"`
	Error      string `json:"error,omitempty"`
}

// JSONLogger implements Logger with newline-delimited JSON output.
type JSONLogger struct {
	mu       sync.Mutex
	writer   io.Writer
	queries  []QueryLogEntry
	failures int
}

// NewJSONLogger creates a new JSON logger writing to the given writer.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{writer: w}
}

// LogQuery logs a query execution event as one JSON line.
func (l *JSONLogger) LogQuery(entry QueryLogEntry) error {
	if err := entry.Validate(); err != nil {
		return err
	}

	level := "info"
	if entry.Error != "" {
		level = "error"
	}

	line := jsonQueryLine{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Level:      level,
		Event:      "query",
		Source:     entry.Source,
		DurationMs: entry.Duration.Milliseconds(),
		RowCount:   entry.RowCount,
		Stale:      entry.Stale,
		Outcome:    entry.Outcome,
		Error:      entry.Error,
	}

	if err := l.write(line); err != nil {
		return err
	}

	l.mu.Lock()
	l.queries = append(l.queries, entry)
	l.mu.Unlock()
	return nil
}

// LogRefresh logs a refresh attempt as one JSON line.
func (l *JSONLogger) LogRefresh(entry RefreshLogEntry) error {
	if entry.Source == "" {
		return fmt.Errorf("observability: source is required")
	}

	level := "info"
	if entry.Error != "" {
		level = "error"
	}

	line := jsonRefreshLine{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Level:      level,
		Event:      "refresh",
		Source:     entry.Source,
		Command:    entry.Command,
		DurationMs: entry.Duration.Milliseconds(),
		Outcome:    entry.Outcome,
		Error:      entry.Error,
	}

	if err := l.write(line); err != nil {
		return err
	}

	if entry.Error != "" {
		l.mu.Lock()
		l.failures++
		l.mu.Unlock()
	}
	return nil
}

func (l *JSONLogger) write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("observability: failed to marshal log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("observability: failed to write log: %w", err)
	}
	return nil
}

// Summary returns aggregated statistics over logged events.
func (l *JSONLogger) Summary() *ActivityLog {
	l.mu.Lock()
	defer l.mu.Unlock()

	summary := &ActivityLog{
		QueryCount:      len(l.queries),
		RefreshFailures: l.failures,
		QueriesBySource: []SourceQueryStat{},
	}

	counts := make(map[string]int)
	for _, q := range l.queries {
		if q.Stale {
			summary.StaleResultCount++
		}
		counts[q.Source]++
	}

	for source, count := range counts {
		summary.QueriesBySource = append(summary.QueriesBySource, SourceQueryStat{
			Source: source,
			Count:  count,
		})
	}
	sort.Slice(summary.QueriesBySource, func(i, j int) bool {
		return summary.QueriesBySource[i].Count > summary.QueriesBySource[j].Count
	})

	return summary
}

// NoopLogger is a logger that discards all events. Useful for tests or when
// logging is disabled.
type NoopLogger struct{}

// NewNoopLogger creates a new no-op logger.
func NewNoopLogger() *NoopLogger {
	return &NoopLogger{}
}

// LogQuery does nothing and always succeeds.
func (l *NoopLogger) LogQuery(entry QueryLogEntry) error { return nil }

// LogRefresh does nothing and always succeeds.
func (l *NoopLogger) LogRefresh(entry RefreshLogEntry) error { return nil }

// Summary returns an empty summary.
func (l *NoopLogger) Summary() *ActivityLog {
	return &ActivityLog{QueriesBySource: []SourceQueryStat{}}
}
