// Package ticketing provides the intelligence adapter for the PSA ticketing
// extract, held in a networked PostgreSQL database and populated by an
// external extraction pipeline.
//
// The extract's native column names are verbose and prefixed (for example
// "TKT-Assigned To User"); every record leaving this package carries the
// short semantic names from the normalization table instead, so callers
// never depend on the native schema.
package ticketing

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/observability"
	"github.com/opsintel-labs/opsintel/internal/runner"
)

// SourceName identifies this adapter in the registry and the schedule.
const SourceName = "ticketing"

// columnMapping pairs one native extract column with its semantic name.
type columnMapping struct {
	Native   string
	Semantic string
}

// normalizationTable is the full native-to-semantic mapping for the tickets
// extract, in the order records are returned. Static so a test can assert
// every column a semantic query selects is covered.
var normalizationTable = []columnMapping{
	{"TKT-Ticket Number", "ticket_id"},
	{"TKT-Summary", "summary"},
	{"TKT-Status", "status"},
	{"TKT-Priority", "priority"},
	{"TKT-Team", "team"},
	{"TKT-Assigned To User", "assignee"},
	{"TKT-Organization", "organization"},
	{"TKT-Created Date", "created_at"},
	{"TKT-Last Updated", "updated_at"},
}

// closedStatuses is the exclusion set defining the shared "is this ticket
// open" predicate. Several semantic methods rely on it.
var closedStatuses = []string{"Closed", "Resolved", "Cancelled"}

// subSources are the physical tables this adapter reports freshness for.
// Each carries its own extraction-timestamp column, stamped by the pipeline.
var subSources = []struct {
	Name         string
	Table        string
	ExtractedCol string
}{
	{"tickets", "tickets", "TKT-Extracted At"},
	{"comments", "ticket_comments", "CMT-Extracted At"},
	{"timesheets", "timesheets", "TSH-Extracted At"},
}

// Config configures the ticketing adapter.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	// RefreshCommand is the external extraction command Refresh runs.
	RefreshCommand string

	// StalenessDays overrides the default staleness threshold for this
	// source. Zero means intel.DefaultStalenessDays.
	StalenessDays int
}

// DefaultConfig returns local-development defaults.
func DefaultConfig() Config {
	return Config{
		Host:     "localhost",
		Port:     5432,
		User:     "opsintel",
		Password: "opsintel_dev",
		Database: "ticketing",
		SSLMode:  "disable",
	}
}

// Adapter implements intel.Service over the ticketing extract. The
// connection is established lazily: construction validates configuration
// only, and connectivity problems surface on first use as stale results.
type Adapter struct {
	mu     sync.RWMutex
	config Config
	db     *sql.DB
	logger observability.Logger
	runner runner.CommandRunner
	closed bool

	// now is swappable for staleness boundary tests.
	now func() time.Time
}

// NewAdapter creates a new ticketing adapter.
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

// SetRunner replaces the refresh command runner. Used by tests and by
// callers that refresh in-process.
func (a *Adapter) SetRunner(r runner.CommandRunner) { a.runner = r }

func (a *Adapter) dsn() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		a.config.Host, a.config.Port, a.config.User, a.config.Password,
		a.config.Database, a.config.SSLMode)
}

// conn returns the shared database handle, opening it on first use.
func (a *Adapter) conn() (*sql.DB, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, fmt.Errorf("ticketing: adapter is closed")
	}
	if a.db != nil {
		return a.db, nil
	}

	db, err := sql.Open("postgres", a.dsn())
	if err != nil {
		return nil, fmt.Errorf("ticketing: cannot open connection: %w", err)
	}
	a.db = db
	return db, nil
}

// setDB injects an existing handle; tests use this with sqlmock.
func (a *Adapter) setDB(db *sql.DB) {
	a.mu.Lock()
	a.db = db
	a.mu.Unlock()
}

// QueryRaw executes a parameterized query verbatim against the ticketing
// store. Parameters use PostgreSQL $N placeholders and are always bound.
func (a *Adapter) QueryRaw(ctx context.Context, query string, args ...interface{}) *intel.QueryResult {
	return a.query(ctx, SourceName, query, args...)
}

// query runs the SQL, normalizes column names, and stamps staleness from
// the tickets sub-source. Failures are returned as data.
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

	// Stamp result staleness from the age of the underlying extract,
	// not the query itself.
	if info := a.freshnessOf(ctx, db, subSources[0].Table, subSources[0].ExtractedCol); info.Stale {
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

// FreshnessReport enumerates freshness for every ticketing sub-source.
// It never fails: unreachable tables report as stale with a warning.
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
		report[s.Name] = a.freshnessOf(ctx, db, s.Table, s.ExtractedCol)
	}
	return report
}

func (a *Adapter) freshnessOf(ctx context.Context, db *sql.DB, table, extractedCol string) intel.FreshnessInfo {
	query := fmt.Sprintf(`SELECT MAX(%s), COUNT(*) FROM %s`, quoteIdent(extractedCol), quoteIdent(table))

	var last sql.NullTime
	var count int
	if err := db.QueryRowContext(ctx, query).Scan(&last, &count); err != nil {
		return intel.UnreachableFreshness(err.Error())
	}

	var lastRefresh *time.Time
	if last.Valid {
		t := last.Time
		lastRefresh = &t
	}
	return intel.ComputeFreshness(lastRefresh, count, a.config.StalenessDays, a.now())
}

// Refresh runs the configured extraction command. Failure leaves the store
// untouched: the pipeline loads into staging before swapping tables.
func (a *Adapter) Refresh(ctx context.Context) error {
	if a.config.RefreshCommand == "" {
		return fmt.Errorf("ticketing: no refresh command configured")
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
		return fmt.Errorf("ticketing: refresh failed: %w", err)
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

// NormalizeColumn maps a native extract column to its semantic name.
// Columns outside the table (caller-chosen aliases in raw SQL, computed
// aggregates) pass through unchanged.
func NormalizeColumn(native string) string {
	for _, m := range normalizationTable {
		if m.Native == native {
			return m.Semantic
		}
	}
	return native
}

// quoteIdent double-quotes a PostgreSQL identifier. Native extract columns
// contain spaces and hyphens, so every identifier is quoted.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// ticketSelectList is the quoted native column list shared by the semantic
// ticket queries, in normalization-table order.
func ticketSelectList() string {
	parts := make([]string, len(normalizationTable))
	for i, m := range normalizationTable {
		parts[i] = quoteIdent(m.Native)
	}
	return strings.Join(parts, ", ")
}

// openPredicate renders the shared open-ticket predicate with placeholders
// starting at $next, returning the clause and its bound arguments.
func openPredicate(next int) (string, []interface{}) {
	marks := make([]string, len(closedStatuses))
	args := make([]interface{}, len(closedStatuses))
	for i, s := range closedStatuses {
		marks[i] = fmt.Sprintf("$%d", next+i)
		args[i] = s
	}
	return fmt.Sprintf(`%s NOT IN (%s)`, quoteIdent("TKT-Status"), strings.Join(marks, ", ")), args
}

// missingFilter reports a blank required filter as an empty labelled result,
// consistent with the raw-query failure policy.
func (a *Adapter) missingFilter(name string) *intel.QueryResult {
	return intel.FailedResult("tickets", fmt.Sprintf("Missing required filter: %s", name), 0)
}

// TicketsByTeam returns every ticket assigned to the given team, newest
// first.
func (a *Adapter) TicketsByTeam(ctx context.Context, team string) *intel.QueryResult {
	if strings.TrimSpace(team) == "" {
		return a.missingFilter("team")
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s = $1 ORDER BY %s DESC`,
		ticketSelectList(), quoteIdent("TKT-Team"), quoteIdent("TKT-Created Date"))
	return a.query(ctx, "tickets", query, team)
}

// TicketsByAssignee returns every ticket assigned to the given user, newest
// first.
func (a *Adapter) TicketsByAssignee(ctx context.Context, user string) *intel.QueryResult {
	if strings.TrimSpace(user) == "" {
		return a.missingFilter("assignee")
	}
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s = $1 ORDER BY %s DESC`,
		ticketSelectList(), quoteIdent("TKT-Assigned To User"), quoteIdent("TKT-Created Date"))
	return a.query(ctx, "tickets", query, user)
}

// OpenTickets returns every ticket whose status is outside the closed set.
func (a *Adapter) OpenTickets(ctx context.Context) *intel.QueryResult {
	pred, args := openPredicate(1)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY %s ASC`,
		ticketSelectList(), pred, quoteIdent("TKT-Created Date"))
	return a.query(ctx, "tickets", query, args...)
}

// UnassignedTickets returns open tickets with no assigned user.
func (a *Adapter) UnassignedTickets(ctx context.Context) *intel.QueryResult {
	pred, args := openPredicate(1)
	assignee := quoteIdent("TKT-Assigned To User")
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s AND (%s IS NULL OR %s = '') ORDER BY %s ASC`,
		ticketSelectList(), pred, assignee, assignee, quoteIdent("TKT-Created Date"))
	return a.query(ctx, "tickets", query, args...)
}

// TeamBacklog returns the team's open tickets, oldest first, so the longest
// waiting work surfaces at the top.
func (a *Adapter) TeamBacklog(ctx context.Context, team string) *intel.QueryResult {
	if strings.TrimSpace(team) == "" {
		return a.missingFilter("team")
	}
	pred, predArgs := openPredicate(2)
	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s = $1 AND %s ORDER BY %s ASC`,
		ticketSelectList(), quoteIdent("TKT-Team"), pred, quoteIdent("TKT-Created Date"))
	args := append([]interface{}{team}, predArgs...)
	return a.query(ctx, "tickets", query, args...)
}

// ActivitySummary aggregates ticket volume per team over the given lookback
// window in days. A non-positive window defaults to seven days.
func (a *Adapter) ActivitySummary(ctx context.Context, days int) *intel.QueryResult {
	if days <= 0 {
		days = 7
	}
	pred, predArgs := openPredicate(2)
	query := fmt.Sprintf(
		`SELECT %s AS team, COUNT(*) AS ticket_count, COUNT(*) FILTER (WHERE %s) AS open_count
		 FROM tickets
		 WHERE %s >= NOW() - make_interval(days => $1)
		 GROUP BY %s
		 ORDER BY ticket_count DESC`,
		quoteIdent("TKT-Team"), pred, quoteIdent("TKT-Created Date"), quoteIdent("TKT-Team"))
	args := append([]interface{}{days}, predArgs...)
	return a.query(ctx, "tickets", query, args...)
}
