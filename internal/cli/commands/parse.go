package commands

import (
	"fmt"

	"github.com/leapstack-labs/ezql/internal/export"
	"github.com/leapstack-labs/ezql/internal/filter"
	"github.com/spf13/cobra"
)

// ParseOptions holds options for the parse command.
type ParseOptions struct {
	JSONPath      string
	YAMLPath      string
	ChartPath     string
	IncludeErrors bool
}

type exportTarget struct {
	path   string
	format export.Format
}

func (o *ParseOptions) targets() []exportTarget {
	var targets []exportTarget
	for _, t := range []exportTarget{
		{o.JSONPath, export.FormatJSON},
		{o.YAMLPath, export.FormatYAML},
		{o.ChartPath, export.FormatChart},
	} {
		if t.path != "" {
			targets = append(targets, t)
		}
	}
	return targets
}

// NewParseCommand creates the parse command.
func NewParseCommand() *cobra.Command {
	opts := &ParseOptions{}

	cmd := &cobra.Command{
		Use:   "parse <path>",
		Short: "Extract table lineage from a SQL file or directory",
		Long: `Extract table-level lineage from stored procedures (or, with --mode ddl,
standalone statements) in a .sql file or every .sql file under a directory.

The result is filtered with the filter settings, printed, and optionally
exported as JSON, YAML or a Mermaid chart. With a store configured the
unfiltered run is saved as well.`,
		Example: `  # Print the lineage of a directory
  ezql parse ./procedures

  # Keep the lineage around two tables and export it
  ezql parse ./procedures --filter-mode rec --tables dwh.fact,dwh.dim --json lineage.json --chart lineage.html

  # Standalone DDL file, errors included in the export
  ezql parse schema.sql --mode ddl --delimiter ';' --yaml lineage.yaml --include-errors`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.JSONPath, "json", "", "Write the lineage as JSON to this .json file")
	cmd.Flags().StringVar(&opts.YAMLPath, "yaml", "", "Write the lineage as YAML to this .yaml file")
	cmd.Flags().StringVar(&opts.ChartPath, "chart", "", "Write a Mermaid chart to this .html file")
	cmd.Flags().BoolVar(&opts.IncludeErrors, "include-errors", false, "Include errored statements in JSON and YAML exports")

	return cmd
}

func runParse(cmd *cobra.Command, path string, opts *ParseOptions) error {
	ctx := cmd.Context()

	// Fail before parsing when an export cannot be written.
	for _, out := range opts.targets() {
		if err := export.ValidatePath(out.path, out.format); err != nil {
			return err
		}
	}

	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	filterOpts, err := cc.Cfg.FilterOptions()
	if err != nil {
		return err
	}

	result, err := cc.Engine.Run(ctx, path)
	if err != nil {
		return err
	}

	if cc.Store != nil {
		run, err := cc.Store.SaveRun(ctx, path, cc.Engine.Mode(), result)
		if err != nil {
			return err
		}
		cc.Logger.Info("run saved", "id", run.ID, "store", cc.Cfg.Store.Path)
	}

	filtered, err := filter.Apply(result, filterOpts)
	if err != nil {
		return err
	}

	if err := cc.Renderer.Lineage(filtered, cc.Cfg.Verbose); err != nil {
		return fmt.Errorf("failed to render lineage: %w", err)
	}

	exportOpts := export.Options{IncludeErrors: opts.IncludeErrors}
	for _, out := range opts.targets() {
		if err := export.WriteFile(out.path, filtered, exportOpts); err != nil {
			return err
		}
		cc.Logger.Info("exported", "format", out.format, "path", out.path)
	}
	return nil
}
