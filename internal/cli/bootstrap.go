package cli

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/opsintel-labs/opsintel/internal/bootstrap"
	oerrors "github.com/opsintel-labs/opsintel/internal/errors"
)

func (c *CLI) newBootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Set up a local-development ticketing database",
		Long: `Apply the embedded schema migrations (and development seed data) to the
configured ticketing PostgreSQL database.

This exists for developers working without a real extraction pipeline.
Migrations are version-tracked and idempotent; re-running is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBootstrap()
		},
	}
}

func (c *CLI) runBootstrap() error {
	t := c.cfg.Sources.Ticketing
	if !t.Enabled {
		return oerrors.NewBootstrapFailed("ticketing source is disabled in config", nil)
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		t.Host, t.Port, t.User, t.Password, t.Database, t.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return oerrors.NewBootstrapFailed("cannot open ticketing database", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return oerrors.NewBootstrapFailed(
			fmt.Sprintf("cannot reach %s:%d/%s", t.Host, t.Port, t.Database), err)
	}

	if err := bootstrap.NewRunner(db).Run(ctx); err != nil {
		return err
	}

	if c.jsonOutput {
		return c.outputJSON(map[string]interface{}{"success": true})
	}
	c.printf("Bootstrap complete: %s:%d/%s is ready.\n", t.Host, t.Port, t.Database)
	return nil
}
