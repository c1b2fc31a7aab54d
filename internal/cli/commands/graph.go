package commands

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ezql/internal/cli/output"
	"github.com/leapstack-labs/ezql/internal/dag"
	"github.com/leapstack-labs/ezql/internal/filter"
	"github.com/spf13/cobra"
)

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph <path>",
		Short: "Show the table lineage graph",
		Long: `Display the table-level lineage graph of a SQL file or directory.

Tables are grouped by level: level 0 holds tables built from no other
table, level N tables whose deepest source sits at level N-1. A cyclic
graph is reported with the cycle instead of levels.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: Markdown format (agent-friendly)`,
		Example: `  # Show the graph
  ezql graph ./procedures

  # Only the lineage around one table, as JSON
  ezql graph ./procedures --filter-mode rec --tables dwh.fact --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0])
		},
	}

	return cmd
}

func runGraph(cmd *cobra.Command, path string) error {
	cmdCtx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	filterOpts, err := cmdCtx.Cfg.FilterOptions()
	if err != nil {
		return err
	}

	result, err := cmdCtx.Engine.Run(cmd.Context(), path)
	if err != nil {
		return err
	}
	graph, err := filter.Graph(result, filterOpts)
	if err != nil {
		return err
	}
	var levels [][]string
	cyclic, cycle := graph.HasCycle()
	if !cyclic {
		if levels, err = graph.Levels(); err != nil {
			return fmt.Errorf("failed to get levels: %w", err)
		}
		if levels == nil {
			levels = [][]string{}
		}
	}

	r := cmdCtx.Renderer
	switch r.EffectiveMode() {
	case output.ModeJSON:
		return graphJSON(r, graph, levels, cycle)
	case output.ModeMarkdown:
		return graphMarkdown(r, graph, levels, cycle)
	default:
		return graphText(r, graph, levels, cycle)
	}
}

// graphGroups returns the levels, or a single group of every table when
// the graph is cyclic.
func graphGroups(graph *dag.Graph, levels [][]string) [][]string {
	if levels != nil {
		return levels
	}
	var all []string
	for _, n := range graph.Nodes() {
		all = append(all, n.ID)
	}
	return [][]string{all}
}

// graphText outputs the graph in styled text format.
func graphText(r *output.Renderer, graph *dag.Graph, levels [][]string, cycle []string) error {
	styles := r.Styles()

	r.Header(1, "Table Lineage")

	if cycle != nil {
		r.Println(styles.Error.Render("Cycle: " + strings.Join(cycle, " -> ")))
		r.Println("")
	}

	for i, group := range graphGroups(graph, levels) {
		if levels != nil {
			r.Println(styles.Header2.Render(fmt.Sprintf("Level %d:", i)))
		}
		for _, table := range group {
			parents := graph.Parents(table)
			children := graph.Children(table)

			r.Printf("  %s\n", styles.Table.Render(table))
			if len(parents) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("built from:"), strings.Join(parents, ", "))
			}
			if len(children) > 0 {
				r.Printf("    %s %s\n", styles.Muted.Render("feeds:"), strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Printf("%s %s\n", styles.Bold.Render("Sources:"), output.FormatList(graph.Roots()))
	r.Printf("%s %s\n", styles.Bold.Render("Sinks:"), output.FormatList(graph.Leaves()))
	r.Println(styles.Muted.Render(fmt.Sprintf("Total: %d tables, %d edges", graph.NodeCount(), graph.EdgeCount())))

	return nil
}

// graphMarkdown outputs the graph in markdown format.
func graphMarkdown(r *output.Renderer, graph *dag.Graph, levels [][]string, cycle []string) error {
	r.Println(output.FormatHeader(1, "Table Lineage"))
	r.Println("")

	if cycle != nil {
		r.Println(output.FormatKeyValue("Cycle", strings.Join(cycle, " -> ")))
		r.Println("")
	}

	for i, group := range graphGroups(graph, levels) {
		switch {
		case levels == nil:
			r.Println(output.FormatHeader(2, "Tables"))
		case i == 0:
			r.Println(output.FormatHeader(2, "Level 0 (Sources)"))
		default:
			r.Println(output.FormatHeader(2, fmt.Sprintf("Level %d", i)))
		}

		for _, table := range group {
			parents := graph.Parents(table)
			children := graph.Children(table)

			r.Printf("- %s\n", table)
			if len(parents) > 0 {
				r.Printf("  - built from: %s\n", strings.Join(parents, ", "))
			}
			if len(children) > 0 {
				r.Printf("  - feeds: %s\n", strings.Join(children, ", "))
			}
		}
		r.Println("")
	}

	r.Println(output.FormatHeader(2, "Summary"))
	r.Println(output.FormatKeyValue("Sources", output.FormatList(graph.Roots())))
	r.Println(output.FormatKeyValue("Sinks", output.FormatList(graph.Leaves())))
	r.Println(output.FormatKeyValue("Total Tables", fmt.Sprintf("%d", graph.NodeCount())))
	r.Println(output.FormatKeyValue("Total Edges", fmt.Sprintf("%d", graph.EdgeCount())))

	return nil
}

func graphNode(graph *dag.Graph, table string) output.GraphNode {
	return output.GraphNode{
		Table:    table,
		Parents:  orEmpty(graph.Parents(table)),
		Children: orEmpty(graph.Children(table)),
	}
}

func orEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// graphJSON outputs the graph in JSON format.
func graphJSON(r *output.Renderer, graph *dag.Graph, levels [][]string, cycle []string) error {
	out := output.GraphOutput{
		Cycle:       cycle,
		Sources:     orEmpty(graph.Roots()),
		Sinks:       orEmpty(graph.Leaves()),
		TotalTables: graph.NodeCount(),
		TotalEdges:  graph.EdgeCount(),
	}

	if levels == nil {
		for _, n := range graph.Nodes() {
			out.Tables = append(out.Tables, graphNode(graph, n.ID))
		}
		return r.JSON(out)
	}

	out.Levels = make([]output.GraphLevel, 0, len(levels))
	for i, level := range levels {
		graphLevel := output.GraphLevel{
			Level:  i,
			Tables: make([]output.GraphNode, 0, len(level)),
		}
		for _, table := range level {
			graphLevel.Tables = append(graphLevel.Tables, graphNode(graph, table))
		}
		out.Levels = append(out.Levels, graphLevel)
	}
	return r.JSON(out)
}
