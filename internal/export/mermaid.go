package export

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/leapstack-labs/ezql/internal/dag"
	"github.com/leapstack-labs/ezql/pkg/lineage"
)

//go:embed templates/chart.html
var templateFS embed.FS

var chartTemplate = template.Must(template.ParseFS(templateFS, "templates/chart.html"))

const mermaidHeader = "graph LR;\nlinkStyle default interpolate basis"

// nodeID turns a qualified table name into a Mermaid-safe identifier.
// An underscore always starts an escape: "__" for ".", "_u" for "_" and
// "_x" plus two hex digits for anything else outside [A-Za-z0-9]. The
// escapes are prefix-free, so distinct names never share an id.
func nodeID(name string) string {
	var sb strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			sb.WriteByte(c)
		case c == '.':
			sb.WriteString("__")
		case c == '_':
			sb.WriteString("_u")
		default:
			fmt.Fprintf(&sb, "_x%02x", c)
		}
	}
	return sb.String()
}

// Mermaid renders the table flow of r as a Mermaid flowchart: one node per
// table and one "source-->|procedure|target" edge per procedure moving data
// between two tables, sorted and without duplicates.
func Mermaid(r lineage.Result) string {
	return mermaidGraph(dag.Build(r))
}

func mermaidGraph(g *dag.Graph) string {
	var sb strings.Builder
	sb.WriteString(mermaidHeader)
	sb.WriteByte('\n')

	for _, n := range g.Nodes() {
		fmt.Fprintf(&sb, "%s[\"%s\"]\n", nodeID(n.ID), n.ID)
	}
	for _, e := range g.Edges() {
		if len(e.Procedures) == 0 {
			fmt.Fprintf(&sb, "%s-->%s;\n", nodeID(e.From), nodeID(e.To))
			continue
		}
		for _, p := range e.Procedures {
			fmt.Fprintf(&sb, "%s-->|%s|%s;\n", nodeID(e.From), p, nodeID(e.To))
		}
	}
	return sb.String()
}

type chartData struct {
	Title  string
	Tables int
	Edges  int
	Chart  string
}

// Chart writes an HTML page that draws the Mermaid flowchart of r.
func Chart(w io.Writer, r lineage.Result) error {
	g := dag.Build(r)
	data := chartData{
		Title:  "ezql table lineage",
		Tables: g.NodeCount(),
		Edges:  g.EdgeCount(),
		Chart:  mermaidGraph(g),
	}
	if err := chartTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return nil
}
