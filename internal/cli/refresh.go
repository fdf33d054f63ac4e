package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsintel-labs/opsintel/pkg/models"
)

func (c *CLI) newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh <source> [source...]",
		Short: "Trigger an immediate re-extraction for one or more sources",
		Long: `Run each source's configured refresh command and wait for it to finish.

A refresh either confirms completion or reports failure; there is no
fire-and-forget mode. Failures for one source do not stop the others.

Example:
  opsintel refresh ticketing patchmgmt`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRefresh(args)
		},
	}
}

func (c *CLI) runRefresh(sources []string) error {
	ctx := context.Background()
	results := make([]models.RefreshResult, 0, len(sources))
	var firstErr error

	for _, source := range sources {
		svc, err := c.service(source)
		if err != nil {
			return err
		}

		start := time.Now()
		err = svc.Refresh(ctx)
		elapsed := time.Since(start)

		r := models.RefreshResult{
			Source:     source,
			Success:    err == nil,
			DurationMs: elapsed.Milliseconds(),
		}
		if err != nil {
			r.Error = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		}
		results = append(results, r)
	}

	if c.jsonOutput {
		if err := c.outputJSON(results); err != nil {
			return err
		}
		return firstErr
	}

	for _, r := range results {
		if r.Success {
			c.printf("%s: refreshed in %d ms\n", r.Source, r.DurationMs)
		} else {
			c.errorf("%s: refresh failed: %s\n", r.Source, r.Error)
		}
	}
	return firstErr
}
