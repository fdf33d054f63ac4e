package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opsintel-labs/opsintel/pkg/models"
)

func (c *CLI) newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Query template commands",
		Long:  `List and execute the catalogue of named, pre-validated query templates.`,
	}

	cmd.AddCommand(c.newTemplatesListCmd())
	cmd.AddCommand(c.newTemplatesExecCmd())

	return cmd
}

func (c *CLI) newTemplatesListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available query templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTemplatesList()
		},
	}
}

func (c *CLI) runTemplatesList() error {
	if c.jsonOutput {
		infos := make([]models.TemplateInfo, 0, len(c.catalogue.Names()))
		for _, name := range c.catalogue.Names() {
			t, _ := c.catalogue.Get(name)
			infos = append(infos, models.TemplateInfo{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			})
		}
		return c.outputJSON(infos)
	}

	c.printf("%s", c.catalogue.Describe())
	return nil
}

func (c *CLI) newTemplatesExecCmd() *cobra.Command {
	var params []string

	cmd := &cobra.Command{
		Use:   "exec <source> <template>",
		Short: "Execute a query template against a source",
		Long: `Execute a named template against a configured source, binding parameters
given as --param name=value.

An unknown template or a missing parameter produces an empty, stale result
with an explanatory warning, not a hard failure.

Example:
  opsintel templates exec ticketing team_workload --param team_name=Platform`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runTemplatesExec(args[0], args[1], params)
		},
	}

	cmd.Flags().StringArrayVar(&params, "param", nil, "template parameter, name=value (repeatable)")
	return cmd
}

func (c *CLI) runTemplatesExec(source, name string, rawParams []string) error {
	params := make(map[string]interface{}, len(rawParams))
	for _, raw := range rawParams {
		key, value, ok := strings.Cut(raw, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid --param %q: want name=value", raw)
		}
		params[key] = value
	}

	svc, err := c.service(source)
	if err != nil {
		return err
	}

	result := c.catalogue.Execute(context.Background(), name, params, svc)
	return c.renderResult(result)
}
