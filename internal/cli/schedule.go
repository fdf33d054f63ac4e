package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsintel-labs/opsintel/internal/scheduler"
)

func (c *CLI) newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Collection schedule commands",
		Long: `Inspect and drive the daily collection schedule defined in the schedule
file (default: schedule.yaml, see the schedule_path config key).`,
	}

	cmd.AddCommand(c.newScheduleStatusCmd())
	cmd.AddCommand(c.newSchedulePendingCmd())
	cmd.AddCommand(c.newScheduleRunCmd())
	cmd.AddCommand(c.newScheduleDaemonCmd())

	return cmd
}

// newScheduler loads the schedule file into a fresh scheduler instance.
func (c *CLI) newScheduler() (*scheduler.Scheduler, error) {
	s := scheduler.New(c.registry, c.logger)
	if err := s.LoadFile(c.cfg.SchedulePath); err != nil {
		return nil, err
	}
	return s, nil
}

func (c *CLI) newScheduleStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show every scheduled source's last and next run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScheduleStatus()
		},
	}
}

func (c *CLI) runScheduleStatus() error {
	s, err := c.newScheduler()
	if err != nil {
		return err
	}

	statuses := s.Status()
	if c.jsonOutput {
		return c.outputJSON(statuses)
	}

	if len(statuses) == 0 {
		c.printf("No scheduled sources in %s.\n", c.cfg.SchedulePath)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SOURCE\tENABLED\tREFRESH AT\tLAST RUN\tNEXT RUN\tLAST ERROR")
	for _, st := range statuses {
		last := "never"
		if !st.LastRun.IsZero() {
			last = st.LastRun.Format("2006-01-02 15:04")
		}
		next := "-"
		if !st.NextRun.IsZero() {
			next = st.NextRun.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%t\t%s\t%s\t%s\t%s\n",
			st.Source, st.Enabled, st.RefreshTime, last, next, st.LastError)
	}
	w.Flush()
	return nil
}

func (c *CLI) newSchedulePendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List sources due for refresh right now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSchedulePending()
		},
	}
}

func (c *CLI) runSchedulePending() error {
	s, err := c.newScheduler()
	if err != nil {
		return err
	}

	pending := s.Pending()
	if c.jsonOutput {
		if pending == nil {
			pending = []string{}
		}
		return c.outputJSON(map[string]interface{}{"pending": pending})
	}

	if len(pending) == 0 {
		c.println("Nothing pending.")
		return nil
	}
	for _, source := range pending {
		c.println(source)
	}
	return nil
}

func (c *CLI) newScheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Refresh every due source once and exit",
		Long: `Refresh every source that is past its scheduled time. Intended for cron
or manual catch-up; use 'schedule daemon' for a resident loop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScheduleRun()
		},
	}
}

func (c *CLI) runScheduleRun() error {
	s, err := c.newScheduler()
	if err != nil {
		return err
	}

	outcomes := s.RunPending(context.Background())
	var firstErr error
	for _, o := range outcomes {
		if o.Err != nil {
			c.errorf("%s: refresh failed: %v\n", o.Source, o.Err)
			if firstErr == nil {
				firstErr = o.Err
			}
		} else {
			c.printf("%s: refreshed in %d ms\n", o.Source, o.Duration.Milliseconds())
		}
	}
	if len(outcomes) == 0 {
		c.println("Nothing pending.")
	}
	return firstErr
}

func (c *CLI) newScheduleDaemonCmd() *cobra.Command {
	var interval time.Duration
	var watch bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the collection scheduler until interrupted",
		Long: `Poll the schedule and refresh due sources until SIGINT or SIGTERM.

With --watch, the schedule file is reloaded whenever it changes on disk;
last-run state survives reloads.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runScheduleDaemon(interval, watch)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default: poll_interval config key)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload the schedule file on change")
	return cmd
}

func (c *CLI) runScheduleDaemon(interval time.Duration, watch bool) error {
	s, err := c.newScheduler()
	if err != nil {
		return err
	}

	if interval <= 0 {
		interval, err = time.ParseDuration(c.cfg.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll_interval %q: %w", c.cfg.PollInterval, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watch {
		go func() {
			_ = s.Watch(ctx, c.cfg.SchedulePath)
		}()
	}

	c.printf("Scheduler running (interval %s, schedule %s). Ctrl-C to stop.\n",
		interval, c.cfg.SchedulePath)
	s.Run(ctx, interval)
	return nil
}
