package commands

import (
	"fmt"
	"time"

	"github.com/leapstack-labs/ezql/internal/cli/output"
	"github.com/leapstack-labs/ezql/internal/filter"
	"github.com/leapstack-labs/ezql/internal/state"
	"github.com/spf13/cobra"
)

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the parse runs saved in the store",
		Long: `List the runs saved by "ezql parse" and "ezql serve" when a store is
configured (store.path or --store), newest first.`,
		Example: `  ezql runs --store lineage.db
  ezql runs --store lineage.db --limit 5 --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.AddCommand(newRunsShowCommand())

	return cmd
}

func newRunsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print a stored run",
		Long: `Print the lineage of a stored run, filtered with the filter settings,
in the same format as "ezql parse".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(cmd, args[0])
		},
	}
}

func storeContext(cmd *cobra.Command) (*CommandContext, func(), error) {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cmdCtx.Store == nil {
		cleanup()
		return nil, nil, errNoStore
	}
	return cmdCtx, cleanup, nil
}

func runRuns(cmd *cobra.Command, limit int) error {
	cmdCtx, cleanup, err := storeContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := cmdCtx.Store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(runs)
	}

	r.Header(1, "Runs")
	if len(runs) == 0 {
		r.Println("No runs saved yet.")
		return nil
	}
	r.Table([]string{"ID", "Created", "Mode", "Path", "Procedures", "Statements", "Errored"}, runRows(runs))
	return nil
}

func runRows(runs []state.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, []string{
			run.ID,
			run.CreatedAt.Local().Format(time.DateTime),
			run.Mode,
			run.Path,
			fmt.Sprint(run.Procedures),
			fmt.Sprint(run.Statements),
			fmt.Sprint(run.Errored),
		})
	}
	return rows
}

func runRunsShow(cmd *cobra.Command, id string) error {
	cmdCtx, cleanup, err := storeContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	filterOpts, err := cmdCtx.Cfg.FilterOptions()
	if err != nil {
		return err
	}

	result, err := cmdCtx.Store.LoadRun(cmd.Context(), id)
	if err != nil {
		return err
	}
	if result, err = filter.Apply(result, filterOpts); err != nil {
		return err
	}
	return cmdCtx.Renderer.Lineage(result, cmdCtx.Cfg.Verbose)
}
