// Package assetinv provides the intelligence adapter for the RMM asset
// inventory export, held in an embedded DuckDB analytical file. It is the
// first source added after the original two and exists to prove the
// contract holds without touching the base framework.
package assetinv

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/marcboeker/go-duckdb" // DuckDB driver

	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/observability"
	"github.com/opsintel-labs/opsintel/internal/runner"
)

// SourceName identifies this adapter in the registry and the schedule.
const SourceName = "assetinv"

type columnMapping struct {
	Native   string
	Semantic string
}

// normalizationTable maps the export's ast_ columns to semantic names.
var normalizationTable = []columnMapping{
	{"ast_asset_id", "asset_id"},
	{"ast_hostname", "hostname"},
	{"ast_site", "site"},
	{"ast_asset_type", "asset_type"},
	{"ast_agent_version", "agent_version"},
	{"ast_last_seen", "last_seen"},
}

// Config configures the asset inventory adapter.
type Config struct {
	// Path is the DuckDB file. Empty or ":memory:" opens an in-memory
	// database.
	Path string

	// RefreshCommand is the external export command Refresh runs.
	RefreshCommand string

	// StalenessDays overrides the default staleness threshold.
	StalenessDays int
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{Path: "assets.duckdb"}
}

// Adapter implements intel.Service over the asset export file.
type Adapter struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	logger observability.Logger
	runner runner.CommandRunner
	closed bool

	now func() time.Time
}

// NewAdapter creates a new asset inventory adapter.
func NewAdapter(config Config, logger observability.Logger) *Adapter {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Adapter{
		config: config,
		logger: logger,
		runner: runner.NewExecRunner(),
		now:    time.Now,
	}
}

// Name returns the source name.
func (a *Adapter) Name() string { return SourceName }

// SetRunner replaces the refresh command runner.
func (a *Adapter) SetRunner(r runner.CommandRunner) { a.runner = r }

func (a *Adapter) conn() (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("assetinv: adapter is closed")
	}
	if a.db != nil {
		return a.db, nil
	}

	db, err := sql.Open("duckdb", a.config.Path)
	if err != nil {
		return nil, fmt.Errorf("assetinv: cannot open %s: %w", a.config.Path, err)
	}
	a.db = db
	return db, nil
}

// QueryRaw executes a parameterized query verbatim against the asset file.
func (a *Adapter) QueryRaw(ctx context.Context, query string, args ...interface{}) *intel.QueryResult {
	return a.query(ctx, SourceName, query, args...)
}

func (a *Adapter) query(ctx context.Context, source, query string, args ...interface{}) *intel.QueryResult {
	start := a.now()

	db, err := a.conn()
	if err != nil {
		return a.fail(source, fmt.Sprintf("Query failed: %v", err), start)
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return a.fail(source, fmt.Sprintf("Query failed: %v", err), start)
	}
	defer rows.Close()

	nativeCols, err := rows.Columns()
	if err != nil {
		return a.fail(source, fmt.Sprintf("Query failed: %v", err), start)
	}

	columns := make([]string, len(nativeCols))
	for i, c := range nativeCols {
		columns[i] = NormalizeColumn(c)
	}

	data := []intel.Record{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return a.fail(source, fmt.Sprintf("Query failed: %v", err), start)
		}

		record := make(intel.Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			record[col] = values[i]
		}
		data = append(data, record)
	}
	if err := rows.Err(); err != nil {
		return a.fail(source, fmt.Sprintf("Query failed: %v", err), start)
	}

	elapsed := a.now().Sub(start)
	result := &intel.QueryResult{
		Data:                data,
		Columns:             columns,
		Source:              source,
		ExtractionTimestamp: start.UTC(),
		QueryTimeMillis:     elapsed.Milliseconds(),
	}

	if info := a.assetFreshness(ctx, db); info.Stale {
		result.Stale = true
		result.StalenessWarning = info.Warning
	}

	a.logger.LogQuery(observability.QueryLogEntry{
		Source:   source,
		Duration: elapsed,
		RowCount: len(data),
		Stale:    result.Stale,
		Outcome:  "success",
	})
	return result
}

func (a *Adapter) fail(source, warning string, start time.Time) *intel.QueryResult {
	elapsed := a.now().Sub(start)
	a.logger.LogQuery(observability.QueryLogEntry{
		Source:   source,
		Duration: elapsed,
		Stale:    true,
		Outcome:  "error",
		Error:    warning,
	})
	return intel.FailedResult(source, warning, elapsed)
}

// FreshnessReport reports the single assets sub-source.
func (a *Adapter) FreshnessReport(ctx context.Context) map[string]intel.FreshnessInfo {
	db, err := a.conn()
	if err != nil {
		return map[string]intel.FreshnessInfo{
			"assets": intel.UnreachableFreshness(err.Error()),
		}
	}
	return map[string]intel.FreshnessInfo{
		"assets": a.assetFreshness(ctx, db),
	}
}

func (a *Adapter) assetFreshness(ctx context.Context, db *sql.DB) intel.FreshnessInfo {
	var last sql.NullTime
	var count int
	err := db.QueryRowContext(ctx, `SELECT MAX(ast_extracted_at), COUNT(*) FROM assets`).Scan(&last, &count)
	if err != nil {
		return intel.UnreachableFreshness(err.Error())
	}

	var lastRefresh *time.Time
	if last.Valid {
		t := last.Time
		lastRefresh = &t
	}
	return intel.ComputeFreshness(lastRefresh, count, a.config.StalenessDays, a.now())
}

// Refresh runs the configured export command.
func (a *Adapter) Refresh(ctx context.Context) error {
	if a.config.RefreshCommand == "" {
		return fmt.Errorf("assetinv: no refresh command configured")
	}

	start := a.now()
	err := a.runner.Run(ctx, a.config.RefreshCommand)
	entry := observability.RefreshLogEntry{
		Source:   SourceName,
		Command:  a.config.RefreshCommand,
		Duration: a.now().Sub(start),
		Outcome:  "success",
	}
	if err != nil {
		entry.Outcome = "error"
		entry.Error = err.Error()
	}
	a.logger.LogRefresh(entry)

	if err != nil {
		return fmt.Errorf("assetinv: refresh failed: %w", err)
	}
	return nil
}

// Close releases the database handle. Safe to call twice.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// NormalizeColumn maps a native ast_ column to its semantic name.
func NormalizeColumn(native string) string {
	for _, m := range normalizationTable {
		if m.Native == native {
			return m.Semantic
		}
	}
	return native
}

func (a *Adapter) missingFilter(name string) *intel.QueryResult {
	return intel.FailedResult("assets", fmt.Sprintf("Missing required filter: %s", name), 0)
}

// AssetsBySite returns every asset registered to the given site.
func (a *Adapter) AssetsBySite(ctx context.Context, site string) *intel.QueryResult {
	if strings.TrimSpace(site) == "" {
		return a.missingFilter("site")
	}
	query := `SELECT ast_asset_id, ast_hostname, ast_site, ast_asset_type, ast_agent_version, ast_last_seen
		FROM assets WHERE ast_site = ? ORDER BY ast_hostname`
	return a.query(ctx, "assets", query, site)
}

// OfflineAgents returns assets whose agent has not checked in for more than
// the given number of days. A non-positive window defaults to seven days.
func (a *Adapter) OfflineAgents(ctx context.Context, days int) *intel.QueryResult {
	if days <= 0 {
		days = 7
	}
	query := `SELECT ast_asset_id, ast_hostname, ast_site, ast_last_seen
		FROM assets WHERE ast_last_seen < now() - to_days(CAST(? AS INTEGER))
		ORDER BY ast_last_seen`
	return a.query(ctx, "assets", query, days)
}

// CoverageSummary aggregates, per site, the total assets and how many have
// checked in within the last day.
func (a *Adapter) CoverageSummary(ctx context.Context) *intel.QueryResult {
	query := `SELECT ast_site, COUNT(*) AS asset_count,
		COUNT(CASE WHEN ast_last_seen >= now() - to_days(1) THEN 1 END) AS checked_in_today
		FROM assets GROUP BY ast_site ORDER BY asset_count DESC`
	return a.query(ctx, "assets", query)
}
