package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/opsintel-labs/opsintel/pkg/models"
)

func (c *CLI) newFreshnessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "freshness [source]",
		Short: "Report data freshness for every source",
		Long: `Report when each source's data was last extracted and whether it is
considered stale.

With no argument, all configured sources are reported. Unreachable sources
appear as stale entries with a warning rather than failing the report.

Example:
  opsintel freshness
  opsintel freshness ticketing`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			return c.runFreshness(source)
		},
	}
}

func (c *CLI) runFreshness(source string) error {
	names := c.registry.Available()
	if source != "" {
		if _, err := c.service(source); err != nil {
			return err
		}
		names = []string{source}
	}

	ctx := context.Background()
	report := models.FreshnessReport{Entries: []models.FreshnessEntry{}}
	for _, name := range names {
		svc, _ := c.registry.Get(name)
		info := svc.FreshnessReport(ctx)

		subs := make([]string, 0, len(info))
		for sub := range info {
			subs = append(subs, sub)
		}
		sort.Strings(subs)

		for _, sub := range subs {
			f := info[sub]
			report.Entries = append(report.Entries, models.FreshnessEntry{
				Source:      name,
				Subsource:   sub,
				LastRefresh: f.LastRefresh,
				DaysOld:     f.DaysOld,
				IsStale:     f.Stale,
				RecordCount: f.RecordCount,
				Warning:     f.Warning,
			})
			if f.Stale {
				report.AnyStale = true
			}
		}
	}

	if c.jsonOutput {
		return c.outputJSON(report)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tSUBSOURCE\tLAST REFRESH\tDAYS OLD\tRECORDS\tSTATUS")
	for _, e := range report.Entries {
		last := "never"
		if e.LastRefresh != nil {
			last = e.LastRefresh.Format("2006-01-02 15:04")
		}
		status := "fresh"
		if e.IsStale {
			status = "STALE"
			if e.Warning != "" {
				status = "STALE (" + e.Warning + ")"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			e.Source, e.Subsource, last, e.DaysOld, e.RecordCount, status)
	}
	w.Flush()

	if report.AnyStale {
		c.println("")
		c.println("One or more sources are stale. Run 'opsintel refresh <source>' to re-extract.")
	}
	return nil
}
