// Package patchmgmt provides the intelligence adapter for the patch
// management extract, held in an embedded SQLite database file written by
// the patch collection pipeline.
//
// Native columns carry the pipeline's pmp_ prefix; records leaving this
// package use the short semantic names from the normalization table.
package patchmgmt

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver, no cgo

	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/observability"
	"github.com/opsintel-labs/opsintel/internal/runner"
)

// SourceName identifies this adapter in the registry and the schedule.
const SourceName = "patchmgmt"

type columnMapping struct {
	Native   string
	Semantic string
}

// normalizationTable maps the pipeline's pmp_ columns to semantic names,
// in the order records are returned.
var normalizationTable = []columnMapping{
	{"pmp_resource_id", "system_id"},
	{"pmp_resource_name", "hostname"},
	{"pmp_os_platform", "platform"},
	{"pmp_branch_office", "organization"},
	{"pmp_agent_status", "agent_status"},
	{"pmp_patch_id", "patch_id"},
	{"pmp_bulletin_id", "bulletin"},
	{"pmp_patch_name", "patch_name"},
	{"pmp_severity", "severity"},
	{"pmp_release_date", "released_at"},
	{"pmp_status", "install_status"},
	{"pmp_updated_time", "updated_at"},
}

// subSources are the tables this adapter reports freshness for. Last
// refresh comes from the collection_runs log the pipeline appends to after
// each successful load.
var subSources = []struct {
	Name  string
	Table string
}{
	{"systems", "systems"},
	{"patches", "patches"},
	{"patch_status", "patch_status"},
}

// Config configures the patch management adapter.
type Config struct {
	// Path is the SQLite database file. ":memory:" for tests.
	Path string

	// RefreshCommand is the external collection command Refresh runs.
	RefreshCommand string

	// StalenessDays overrides the default staleness threshold.
	// Zero means intel.DefaultStalenessDays.
	StalenessDays int
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{Path: "pmp_config.db"}
}

// Adapter implements intel.Service over the patch management file. The file
// is opened lazily on first use.
type Adapter struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	logger observability.Logger
	runner runner.CommandRunner
	closed bool

	now func() time.Time
}

// NewAdapter creates a new patch management adapter.
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
		return nil, fmt.Errorf("patchmgmt: adapter is closed")
	}
	if a.db != nil {
		return a.db, nil
	}
	if a.config.Path == "" {
		return nil, fmt.Errorf("patchmgmt: database path is not configured")
	}

	db, err := sql.Open("sqlite", a.config.Path)
	if err != nil {
		return nil, fmt.Errorf("patchmgmt: cannot open %s: %w", a.config.Path, err)
	}
	a.db = db
	return db, nil
}

// QueryRaw executes a parameterized query verbatim against the patch
// database. Parameters use SQLite ? placeholders and are always bound.
func (a *Adapter) QueryRaw(ctx context.Context, query string, args ...interface{}) *intel.QueryResult {
	return a.query(ctx, a.sourceLabel(), query, args...)
}

func (a *Adapter) sourceLabel() string {
	if a.config.Path != "" {
		return a.config.Path
	}
	return SourceName
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

	if info := a.freshnessOf(ctx, db, "systems"); info.Stale {
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

// FreshnessReport enumerates freshness for every patch sub-source. It never
// fails: an unreadable file reports every entry stale with a warning.
func (a *Adapter) FreshnessReport(ctx context.Context) map[string]intel.FreshnessInfo {
	report := make(map[string]intel.FreshnessInfo, len(subSources))

	db, err := a.conn()
	if err != nil {
		for _, s := range subSources {
			report[s.Name] = intel.UnreachableFreshness(err.Error())
		}
		return report
	}

	for _, s := range subSources {
		report[s.Name] = a.freshnessOf(ctx, db, s.Name)
	}
	return report
}

func (a *Adapter) freshnessOf(ctx context.Context, db *sql.DB, source string) intel.FreshnessInfo {
	table := source
	for _, s := range subSources {
		if s.Name == source {
			table = s.Table
		}
	}

	var raw interface{}
	err := db.QueryRowContext(ctx,
		`SELECT MAX(completed_at) FROM collection_runs WHERE source = ? AND status = 'success'`,
		source,
	).Scan(&raw)
	if err != nil {
		return intel.UnreachableFreshness(err.Error())
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
		return intel.UnreachableFreshness(err.Error())
	}

	return intel.ComputeFreshness(parseTimestamp(raw), count, a.config.StalenessDays, a.now())
}

// parseTimestamp copes with the driver returning TIMESTAMP values as
// time.Time, string, or []byte depending on how the pipeline wrote them.
func parseTimestamp(v interface{}) *time.Time {
	switch t := v.(type) {
	case time.Time:
		return &t
	case string:
		return parseTimeString(t)
	case []byte:
		return parseTimeString(string(t))
	default:
		return nil
	}
}

func parseTimeString(s string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z07:00", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// Refresh runs the configured collection command. The pipeline writes into
// a fresh temp file and renames over the old one, so a failed run leaves
// prior data intact.
func (a *Adapter) Refresh(ctx context.Context) error {
	if a.config.RefreshCommand == "" {
		return fmt.Errorf("patchmgmt: no refresh command configured")
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
		return fmt.Errorf("patchmgmt: refresh failed: %w", err)
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

// NormalizeColumn maps a native pmp_ column to its semantic name. Unknown
// columns (caller-chosen aliases, computed aggregates) pass through.
func NormalizeColumn(native string) string {
	for _, m := range normalizationTable {
		if m.Native == native {
			return m.Semantic
		}
	}
	return native
}

func selectList(natives ...string) string {
	return strings.Join(natives, ", ")
}

func (a *Adapter) missingFilter(name string) *intel.QueryResult {
	return intel.FailedResult(a.sourceLabel(), fmt.Sprintf("Missing required filter: %s", name), 0)
}

// SystemsByOrganization returns every managed system in the given branch
// office.
func (a *Adapter) SystemsByOrganization(ctx context.Context, organization string) *intel.QueryResult {
	if strings.TrimSpace(organization) == "" {
		return a.missingFilter("organization")
	}
	query := `SELECT ` + selectList("pmp_resource_id", "pmp_resource_name", "pmp_os_platform", "pmp_branch_office", "pmp_agent_status") + `
		FROM systems WHERE pmp_branch_office = ? ORDER BY pmp_resource_name`
	return a.query(ctx, "systems", query, organization)
}

// MissingPatchesForSystem returns every patch the given system still lacks,
// most severe and oldest first.
func (a *Adapter) MissingPatchesForSystem(ctx context.Context, systemID string) *intel.QueryResult {
	if strings.TrimSpace(systemID) == "" {
		return a.missingFilter("system_id")
	}
	query := `SELECT p.pmp_patch_id, p.pmp_bulletin_id, p.pmp_patch_name, p.pmp_severity, p.pmp_release_date
		FROM patches p
		JOIN patch_status ps ON ps.pmp_patch_id = p.pmp_patch_id
		WHERE ps.pmp_resource_id = ? AND ps.pmp_status = 'Missing'
		ORDER BY p.pmp_severity, p.pmp_release_date`
	return a.query(ctx, "patch_status", query, systemID)
}

// SystemsMissingSeverity returns the systems missing at least one patch of
// the given severity.
func (a *Adapter) SystemsMissingSeverity(ctx context.Context, severity string) *intel.QueryResult {
	if strings.TrimSpace(severity) == "" {
		return a.missingFilter("severity")
	}
	query := `SELECT DISTINCT s.pmp_resource_id, s.pmp_resource_name, s.pmp_branch_office
		FROM systems s
		JOIN patch_status ps ON ps.pmp_resource_id = s.pmp_resource_id
		JOIN patches p ON p.pmp_patch_id = ps.pmp_patch_id
		WHERE ps.pmp_status = 'Missing' AND p.pmp_severity = ?
		ORDER BY s.pmp_resource_name`
	return a.query(ctx, "patch_status", query, severity)
}

// ComplianceSummary aggregates, per branch office, how many systems are
// fully patched versus missing at least one patch.
func (a *Adapter) ComplianceSummary(ctx context.Context) *intel.QueryResult {
	query := `SELECT s.pmp_branch_office, COUNT(DISTINCT s.pmp_resource_id) AS system_count,
		COUNT(DISTINCT CASE WHEN ps.pmp_status = 'Missing' THEN s.pmp_resource_id END) AS systems_missing_patches
		FROM systems s
		LEFT JOIN patch_status ps ON ps.pmp_resource_id = s.pmp_resource_id
		GROUP BY s.pmp_branch_office
		ORDER BY systems_missing_patches DESC`
	return a.query(ctx, "systems", query)
}

// FailedInstalls returns patch installations that failed inside the given
// lookback window in days. A non-positive window defaults to seven days.
func (a *Adapter) FailedInstalls(ctx context.Context, days int) *intel.QueryResult {
	if days <= 0 {
		days = 7
	}
	query := `SELECT ps.pmp_resource_id, ps.pmp_patch_id, p.pmp_patch_name, p.pmp_severity, ps.pmp_updated_time
		FROM patch_status ps
		JOIN patches p ON p.pmp_patch_id = ps.pmp_patch_id
		WHERE ps.pmp_status = 'Failed' AND ps.pmp_updated_time >= datetime('now', '-' || ? || ' days')
		ORDER BY ps.pmp_updated_time DESC`
	return a.query(ctx, "patch_status", query, days)
}
