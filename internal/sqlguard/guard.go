// Package sqlguard validates SQL before it reaches a data store. The
// framework is read-only: only SELECT statements pass, so a mistyped
// template can never mutate an operational database.
package sqlguard

import (
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"

	"github.com/opsintel-labs/opsintel/internal/errors"
)

// QueryInfo describes a validated query.
type QueryInfo struct {
	// RawSQL is the original SQL as supplied.
	RawSQL string

	// Tables are the table names referenced in the query.
	Tables []string
}

// PostgreSQL-style positional placeholders ($1, $2, ...). The parser speaks
// the MySQL dialect, so these are rewritten to :v1 form before parsing.
var pgPlaceholder = regexp.MustCompile(`\$(\d+)`)

// Validate parses the query and confirms it is a read-only SELECT.
// Placeholder markers in either the PostgreSQL ($1) or SQLite (?) style are
// accepted. Returns query metadata on success, a usage error otherwise.
func Validate(sql string) (*QueryInfo, error) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return nil, errors.NewQueryRejected(sql, "empty query", "provide a SQL SELECT statement")
	}

	parseable := pgPlaceholder.ReplaceAllString(trimmed, ":v$1")

	stmt, err := sqlparser.Parse(parseable)
	if err != nil {
		return nil, errors.NewQueryRejected(sql, "SQL could not be parsed: "+err.Error(), "check the statement syntax")
	}

	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
	default:
		return nil, errors.NewQueryRejected(sql,
			"only read operations are allowed",
			"the framework queries operational stores read-only; use the source's own tooling for writes")
	}

	return &QueryInfo{
		RawSQL: trimmed,
		Tables: extractTables(stmt),
	}, nil
}

// extractTables walks the statement AST collecting referenced table names.
func extractTables(stmt sqlparser.Statement) []string {
	seen := make(map[string]bool)
	tables := []string{}

	_ = sqlparser.Walk(func(node sqlparser.SQLNode) (bool, error) {
		if tn, ok := node.(sqlparser.TableName); ok {
			name := tn.Name.String()
			if name != "" && !seen[name] {
				seen[name] = true
				tables = append(tables, name)
			}
		}
		return true, nil
	}, stmt)

	return tables
}
