package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/opsintel-labs/opsintel/internal/status"
)

func (c *CLI) newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the health of every source and the schedule",
		Long: `Gather an aggregate status snapshot: per-source freshness, stale
sub-sources, and the collection schedule's state.

The check itself never fails; unreachable sources show up as stale entries
with warnings.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runDoctor()
		},
	}
}

func (c *CLI) runDoctor() error {
	sched, err := c.newScheduler()
	if err != nil {
		// A broken schedule file should not hide the freshness picture.
		c.errorf("schedule unavailable: %v\n", err)
		sched = nil
	}

	checker := status.NewChecker(c.registry, sched)
	result := checker.Check(context.Background())

	if c.jsonOutput {
		return c.outputJSON(result)
	}

	if result.Healthy {
		c.println("All sources fresh.")
	} else {
		c.println("Some sources are stale:")
	}
	for _, src := range result.Sources {
		if src.Stale {
			c.printf("  %s: STALE (%v)\n", src.Source, src.StaleSubsources)
		} else {
			c.printf("  %s: fresh\n", src.Source)
		}
	}

	if len(result.Schedule) > 0 {
		c.println("")
		c.println("Schedule:")
		for _, st := range result.Schedule {
			state := "disabled"
			if st.Enabled {
				state = "daily at " + st.RefreshTime
			}
			c.printf("  %s: %s\n", st.Source, state)
			if st.LastError != "" {
				c.printf("    last error: %s\n", st.LastError)
			}
		}
	}
	return nil
}
