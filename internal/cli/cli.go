// Package cli provides the command-line interface for opsintel. The CLI is
// a control interface for querying sources, inspecting freshness, and
// driving the collection schedule.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsintel-labs/opsintel/internal/adapters/assetinv"
	"github.com/opsintel-labs/opsintel/internal/adapters/patchmgmt"
	"github.com/opsintel-labs/opsintel/internal/adapters/ticketing"
	"github.com/opsintel-labs/opsintel/internal/config"
	oerrors "github.com/opsintel-labs/opsintel/internal/errors"
	"github.com/opsintel-labs/opsintel/internal/intel"
	"github.com/opsintel-labs/opsintel/internal/observability"
	"github.com/opsintel-labs/opsintel/internal/templates"
)

// Exit codes, aligned with errors.ErrorCode.
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitConfig     = 2
	ExitSource     = 3
	ExitInternal   = 4
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// CLI holds the command-line interface state.
type CLI struct {
	rootCmd *cobra.Command
	cfg     *config.Config

	registry  *intel.Registry
	catalogue *templates.Registry
	logger    observability.Logger

	// Global flags
	configPath string
	jsonOutput bool
	quiet      bool
	debug      bool
}

// New creates a new CLI instance.
func New() *CLI {
	cli := &CLI{}
	cli.rootCmd = cli.newRootCmd()
	return cli
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	defer func() {
		if c.registry != nil {
			c.registry.CloseAll()
		}
	}()

	if err := c.rootCmd.Execute(); err != nil {
		c.errorf("opsintel: %v\n", err)
		return oerrors.ExitCode(err)
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "opsintel",
		Short: "Opsintel - Unified Intelligence Query Framework",
		Long: `Opsintel queries independent operational databases - ticketing, patch
management, asset inventory - through one uniform contract, with built-in
data-freshness accounting, column normalization, and a collection schedule.

Check freshness before trusting query results: every result carries its own
staleness flag and warning.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init()
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: ~/.opsintel/config.yaml)")
	cmd.PersistentFlags().BoolVar(&c.jsonOutput, "json", false, "machine-readable JSON output")
	cmd.PersistentFlags().BoolVar(&c.quiet, "quiet", false, "suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&c.debug, "debug", false, "log queries and refreshes to stderr")

	cmd.AddCommand(c.newQueryCmd())
	cmd.AddCommand(c.newFreshnessCmd())
	cmd.AddCommand(c.newTemplatesCmd())
	cmd.AddCommand(c.newRefreshCmd())
	cmd.AddCommand(c.newScheduleCmd())
	cmd.AddCommand(c.newBootstrapCmd())
	cmd.AddCommand(c.newDoctorCmd())
	cmd.AddCommand(c.newVersionCmd())

	return cmd
}

// init loads configuration and wires the adapter registry and template
// catalogue from it.
func (c *CLI) init() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	if c.debug {
		c.logger = observability.NewJSONLogger(os.Stderr)
	} else {
		c.logger = observability.NewNoopLogger()
	}

	c.registry = intel.NewRegistry()
	if cfg.Sources.Ticketing.Enabled {
		c.registry.Register(ticketing.NewAdapter(ticketing.Config{
			Host:           cfg.Sources.Ticketing.Host,
			Port:           cfg.Sources.Ticketing.Port,
			User:           cfg.Sources.Ticketing.User,
			Password:       cfg.Sources.Ticketing.Password,
			Database:       cfg.Sources.Ticketing.Database,
			SSLMode:        cfg.Sources.Ticketing.SSLMode,
			RefreshCommand: cfg.Sources.Ticketing.RefreshCommand,
			StalenessDays:  cfg.Sources.Ticketing.StalenessDays,
		}, c.logger))
	}
	if cfg.Sources.PatchMgmt.Enabled {
		c.registry.Register(patchmgmt.NewAdapter(patchmgmt.Config{
			Path:           cfg.Sources.PatchMgmt.Path,
			RefreshCommand: cfg.Sources.PatchMgmt.RefreshCommand,
			StalenessDays:  cfg.Sources.PatchMgmt.StalenessDays,
		}, c.logger))
	}
	if cfg.Sources.AssetInv.Enabled {
		c.registry.Register(assetinv.NewAdapter(assetinv.Config{
			Path:           cfg.Sources.AssetInv.Path,
			RefreshCommand: cfg.Sources.AssetInv.RefreshCommand,
			StalenessDays:  cfg.Sources.AssetInv.StalenessDays,
		}, c.logger))
	}

	c.catalogue = templates.NewRegistry()
	if err := templates.RegisterBuiltins(c.catalogue); err != nil {
		return err
	}
	return nil
}

// service resolves a source name against the registry.
func (c *CLI) service(name string) (intel.Service, error) {
	svc, ok := c.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown source %q (configured: %v)", name, c.registry.Available())
	}
	return svc, nil
}

// Helper functions for output

func (c *CLI) printf(format string, args ...interface{}) {
	if !c.quiet {
		fmt.Printf(format, args...)
	}
}

func (c *CLI) println(args ...interface{}) {
	if !c.quiet {
		fmt.Println(args...)
	}
}

func (c *CLI) errorf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func (c *CLI) outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
