package ticketing

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/runner"
)

var testNow = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func mockedAdapter(t *testing.T) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	a := NewAdapter(DefaultConfig(), nil)
	a.now = func() time.Time { return testNow }
	a.setDB(db)
	return a, mock
}

func nativeTicketRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"TKT-Ticket Number", "TKT-Summary", "TKT-Status", "TKT-Priority",
		"TKT-Team", "TKT-Assigned To User", "TKT-Organization",
		"TKT-Created Date", "TKT-Last Updated",
	})
}

func expectFreshTickets(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX("TKT-Extracted At"), COUNT(*) FROM "tickets"`)).
		WillReturnRows(sqlmock.NewRows([]string{"max", "count"}).AddRow(testNow.Add(-time.Hour), 500))
}

// TestOpenTickets_ExcludesClosedStatuses proves the shared open-ticket
// predicate binds every closed status as a parameter and the returned
// records carry semantic column names only.
func TestOpenTickets_ExcludesClosedStatuses(t *testing.T) {
	a, mock := mockedAdapter(t)

	rows := nativeTicketRows().AddRow(
		"T-1001", "VPN drops hourly", "In Progress", "High",
		"Network", "jsmith", "Acme Corp",
		testNow.AddDate(0, 0, -2), testNow.AddDate(0, 0, -1),
	)
	mock.ExpectQuery(regexp.QuoteMeta(`"TKT-Status" NOT IN ($1, $2, $3)`)).
		WithArgs("Closed", "Resolved", "Cancelled").
		WillReturnRows(rows)
	expectFreshTickets(mock)

	result := a.OpenTickets(context.Background())

	if result.Stale {
		t.Fatalf("unexpected stale result: %s", result.StalenessWarning)
	}
	if len(result.Data) != 1 {
		t.Fatalf("expected 1 row, got %d", len(result.Data))
	}

	record := result.Data[0]
	if record["ticket_id"] != "T-1001" {
		t.Errorf("ticket_id = %v", record["ticket_id"])
	}
	if record["assignee"] != "jsmith" {
		t.Errorf("assignee = %v", record["assignee"])
	}
	for key := range record {
		if strings.HasPrefix(key, "TKT-") {
			t.Errorf("native column name leaked into record: %q", key)
		}
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// TestTicketsByTeam_BindsFilter proves filter values are bound, never
// interpolated, so hostile input stays inert.
func TestTicketsByTeam_BindsFilter(t *testing.T) {
	a, mock := mockedAdapter(t)

	hostile := "Network'; DROP TABLE tickets; --"
	mock.ExpectQuery(regexp.QuoteMeta(`"TKT-Team" = $1`)).
		WithArgs(hostile).
		WillReturnRows(nativeTicketRows())
	expectFreshTickets(mock)

	result := a.TicketsByTeam(context.Background(), hostile)
	if result.Stale {
		t.Fatalf("unexpected stale result: %s", result.StalenessWarning)
	}
	if len(result.Data) != 0 {
		t.Errorf("expected no rows, got %d", len(result.Data))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// TestTeamBacklog_OpenTicketsForOneTeam proves the backlog query combines
// the team filter with the open predicate and returns only matching rows,
// oldest first, fully normalized.
func TestTeamBacklog_OpenTicketsForOneTeam(t *testing.T) {
	a, mock := mockedAdapter(t)

	rows := nativeTicketRows().
		AddRow("T-1", "Printer jam", "Open", "Low", "Desktop", "amber", "Acme Corp",
			testNow.AddDate(0, 0, -9), testNow.AddDate(0, 0, -9)).
		AddRow("T-2", "Slow laptop", "In Progress", "Medium", "Desktop", "amber", "Acme Corp",
			testNow.AddDate(0, 0, -5), testNow.AddDate(0, 0, -4)).
		AddRow("T-3", "New starter setup", "Open", "Medium", "Desktop", "", "Globex",
			testNow.AddDate(0, 0, -1), testNow.AddDate(0, 0, -1))
	mock.ExpectQuery(regexp.QuoteMeta(`"TKT-Team" = $1 AND "TKT-Status" NOT IN ($2, $3, $4)`)).
		WithArgs("Desktop", "Closed", "Resolved", "Cancelled").
		WillReturnRows(rows)
	expectFreshTickets(mock)

	result := a.TeamBacklog(context.Background(), "Desktop")
	if result.Stale {
		t.Fatalf("unexpected stale result: %s", result.StalenessWarning)
	}
	if len(result.Data) != 3 {
		t.Fatalf("expected 3 open tickets, got %d", len(result.Data))
	}
	for _, record := range result.Data {
		if record["team"] != "Desktop" {
			t.Errorf("foreign team leaked into backlog: %v", record["team"])
		}
	}
	// Oldest first: the 9-day-old ticket leads.
	if result.Data[0]["ticket_id"] != "T-1" {
		t.Errorf("backlog must be oldest first, got %v", result.Data[0]["ticket_id"])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

// TestTicketsByTeam_MissingFilter proves a blank required filter yields a
// labelled empty result without touching the database.
func TestTicketsByTeam_MissingFilter(t *testing.T) {
	a, _ := mockedAdapter(t)

	result := a.TicketsByTeam(context.Background(), "   ")
	if !result.Stale {
		t.Fatal("missing filter must yield a stale result")
	}
	if result.StalenessWarning != "Missing required filter: team" {
		t.Errorf("warning = %q", result.StalenessWarning)
	}
	if len(result.Data) != 0 {
		t.Errorf("expected no rows, got %d", len(result.Data))
	}
}

// TestQueryRaw_StampsStalenessFromExtract proves result staleness reflects
// the extract's age, not the query's success.
func TestQueryRaw_StampsStalenessFromExtract(t *testing.T) {
	a, mock := mockedAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "TKT-Status" FROM tickets`)).
		WillReturnRows(sqlmock.NewRows([]string{"TKT-Status"}).AddRow("Open"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX("TKT-Extracted At"), COUNT(*) FROM "tickets"`)).
		WillReturnRows(sqlmock.NewRows([]string{"max", "count"}).AddRow(testNow.AddDate(0, 0, -10), 500))

	result := a.QueryRaw(context.Background(), `SELECT "TKT-Status" FROM tickets`)

	if len(result.Data) != 1 {
		t.Fatalf("query must still return rows, got %d", len(result.Data))
	}
	if !result.Stale {
		t.Fatal("10-day-old extract must flag the result stale")
	}
	if result.StalenessWarning != "Data is 10 days old" {
		t.Errorf("warning = %q", result.StalenessWarning)
	}
	if result.Columns[0] != "status" {
		t.Errorf("column not normalized: %v", result.Columns)
	}
}

// TestQueryRaw_FailureAsData proves a failing query comes back as an empty
// stale result, never an error or panic.
func TestQueryRaw_FailureAsData(t *testing.T) {
	a, mock := mockedAdapter(t)

	mock.ExpectQuery("SELECT").WillReturnError(context.DeadlineExceeded)

	result := a.QueryRaw(context.Background(), "SELECT 1 FROM tickets")
	if !result.Stale {
		t.Fatal("failed query must yield a stale result")
	}
	if len(result.Data) != 0 {
		t.Errorf("failed query must yield no rows, got %d", len(result.Data))
	}
	if !strings.HasPrefix(result.StalenessWarning, "Query failed:") {
		t.Errorf("warning = %q", result.StalenessWarning)
	}
}

// TestFreshnessReport covers the three sub-sources, including one that has
// never been extracted.
func TestFreshnessReport(t *testing.T) {
	a, mock := mockedAdapter(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX("TKT-Extracted At"), COUNT(*) FROM "tickets"`)).
		WillReturnRows(sqlmock.NewRows([]string{"max", "count"}).AddRow(testNow.AddDate(0, 0, -10), 500))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX("CMT-Extracted At"), COUNT(*) FROM "ticket_comments"`)).
		WillReturnRows(sqlmock.NewRows([]string{"max", "count"}).AddRow(testNow.Add(-time.Hour), 1200))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX("TSH-Extracted At"), COUNT(*) FROM "timesheets"`)).
		WillReturnRows(sqlmock.NewRows([]string{"max", "count"}).AddRow(nil, 0))

	report := a.FreshnessReport(context.Background())

	tickets := report["tickets"]
	if !tickets.Stale || tickets.DaysOld != 10 || tickets.RecordCount != 500 {
		t.Errorf("tickets freshness wrong: %+v", tickets)
	}
	if report["comments"].Stale {
		t.Errorf("hour-old comments must be fresh: %+v", report["comments"])
	}
	ts := report["timesheets"]
	if !ts.Stale || ts.Warning != "Data has never been refreshed" {
		t.Errorf("empty timesheets must report never refreshed: %+v", ts)
	}
}

func TestRefresh(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RefreshCommand = "extract-tickets --all"
	a := NewAdapter(cfg, nil)

	var got string
	a.SetRunner(runner.FuncRunner(func(ctx context.Context, command string) error {
		got = command
		return nil
	}))
	if err := a.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if got != "extract-tickets --all" {
		t.Errorf("command = %q", got)
	}

	a.SetRunner(runner.FuncRunner(func(ctx context.Context, command string) error {
		return context.Canceled
	}))
	if err := a.Refresh(context.Background()); err == nil {
		t.Error("failed command must surface as an error")
	}
}

func TestRefresh_NoCommandConfigured(t *testing.T) {
	a := NewAdapter(DefaultConfig(), nil)
	if err := a.Refresh(context.Background()); err == nil {
		t.Error("refresh without a configured command must fail")
	}
}

// TestNormalizeColumn_UnknownPassesThrough proves aliases and aggregates
// survive normalization untouched.
func TestNormalizeColumn_UnknownPassesThrough(t *testing.T) {
	if got := NormalizeColumn("TKT-Ticket Number"); got != "ticket_id" {
		t.Errorf("NormalizeColumn(TKT-Ticket Number) = %q", got)
	}
	if got := NormalizeColumn("ticket_count"); got != "ticket_count" {
		t.Errorf("unknown column must pass through, got %q", got)
	}
}

func TestClose_Twice(t *testing.T) {
	a, mock := mockedAdapter(t)
	mock.ExpectClose()
	if err := a.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second Close must be a no-op: %v", err)
	}

	result := a.QueryRaw(context.Background(), "SELECT 1 FROM tickets")
	if !result.Stale || !strings.Contains(result.StalenessWarning, "closed") {
		t.Errorf("query after close must fail as data: %+v", result)
	}
}

var _ intel.Service = (*Adapter)(nil)
