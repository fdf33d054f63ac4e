package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/sqlguard"
	"github.com/opsintel-labs/opsintel/pkg/models"
)

func (c *CLI) newQueryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Query execution commands",
		Long:  `Execute and validate read-only SQL queries against a configured source.`,
	}

	cmd.AddCommand(c.newQueryExecCmd())
	cmd.AddCommand(c.newQueryValidateCmd())

	return cmd
}

func (c *CLI) newQueryExecCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exec <source> <SQL>",
		Short: "Execute a read-only SQL query against a source",
		Long: `Execute a read-only SQL query against a configured source.

The query is validated before execution; only SELECT statements pass.
Results carry their own staleness flag and warning, so check those before
trusting the rows.

Example:
  opsintel query exec ticketing "SELECT * FROM tickets LIMIT 10"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQueryExec(args[0], args[1])
		},
	}
}

func (c *CLI) runQueryExec(source, sqlQuery string) error {
	if _, err := sqlguard.Validate(sqlQuery); err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{
				"success": false,
				"error":   err.Error(),
			})
		}
		c.errorf("Query rejected: %v\n", err)
		return err
	}

	svc, err := c.service(source)
	if err != nil {
		return err
	}

	result := svc.QueryRaw(context.Background(), sqlQuery)
	return c.renderResult(result)
}

func (c *CLI) newQueryValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <SQL>",
		Short: "Validate a SQL query without executing it",
		Long: `Check that a SQL query parses and is read-only, without touching any
source.

Example:
  opsintel query validate "SELECT status, COUNT(*) FROM tickets GROUP BY status"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runQueryValidate(args[0])
		},
	}
}

func (c *CLI) runQueryValidate(sqlQuery string) error {
	info, err := sqlguard.Validate(sqlQuery)
	if err != nil {
		if c.jsonOutput {
			return c.outputJSON(map[string]interface{}{
				"valid": false,
				"error": err.Error(),
			})
		}
		c.errorf("Query rejected: %v\n", err)
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{
			"valid":  true,
			"tables": info.Tables,
		})
	}

	c.println("Query is valid.")
	c.printf("  Tables: %s\n", strings.Join(info.Tables, ", "))
	return nil
}

// renderResult prints a query result as a table (or JSON), always surfacing
// the staleness warning before the rows.
func (c *CLI) renderResult(result *intel.QueryResult) error {
	if c.jsonOutput {
		return c.outputJSON(queryResponse(result))
	}

	if result.Stale && result.StalenessWarning != "" {
		c.errorf("WARNING: %s\n", result.StalenessWarning)
	}

	if len(result.Data) == 0 {
		c.println("No rows.")
		c.printf("(%d rows, %d ms, source %s)\n", len(result.Data), result.QueryTimeMillis, result.Source)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(result.Columns, "\t"))
	for _, row := range result.Data {
		cells := make([]string, len(result.Columns))
		for i, col := range result.Columns {
			cells[i] = formatCell(row[col])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()

	c.printf("(%d rows, %d ms, source %s)\n", len(result.Data), result.QueryTimeMillis, result.Source)
	return nil
}

func formatCell(v interface{}) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}

// queryResponse converts an internal result to its external JSON form.
func queryResponse(result *intel.QueryResult) models.QueryResponse {
	rows := result.Data
	if rows == nil {
		rows = []intel.Record{}
	}
	return models.QueryResponse{
		Source:              result.Source,
		Columns:             result.Columns,
		Rows:                rows,
		RowCount:            len(result.Data),
		ExtractionTimestamp: result.ExtractionTimestamp,
		IsStale:             result.Stale,
		StalenessWarning:    result.StalenessWarning,
		QueryTimeMs:         result.QueryTimeMillis,
	}
}
