// Package filter prunes lineage results down to the procedures and tables
// a user asked about.
package filter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/ezql/internal/dag"
	"github.com/leapstack-labs/ezql/pkg/lineage"
)

// Mode selects how table filters follow lineage.
type Mode string

// Filter modes.
const (
	// ModeNone applies no table filter.
	ModeNone Mode = ""
	// ModeSimple keeps the direct readers and writers of the tables.
	ModeSimple Mode = "simple"
	// ModeRecursive follows lineage transitively in both directions.
	ModeRecursive Mode = "rec"
)

// Options describes a filter run.
type Options struct {
	Mode       Mode
	Tables     []lineage.Table
	Procedures []string
}

// Apply runs the procedure filter, then the table filter selected by Mode.
// Procedures left without statements are dropped once a table filter ran.
func Apply(r lineage.Result, opts Options) (lineage.Result, error) {
	if len(opts.Procedures) > 0 {
		r = Procedures(r, opts.Procedures)
	}
	switch opts.Mode {
	case ModeNone:
		return r, nil
	case ModeSimple:
		return Simple(r, opts.Tables), nil
	case ModeRecursive:
		return Recursive(r, opts.Tables), nil
	}
	return lineage.Result{}, fmt.Errorf("invalid filter mode %q: must be %q or %q", opts.Mode, ModeSimple, ModeRecursive)
}

// ParseTables parses schema.name specs. Each spec must hold exactly one dot.
func ParseTables(specs []string) ([]lineage.Table, error) {
	tables := make([]lineage.Table, 0, len(specs))
	for _, spec := range specs {
		schema, name, ok := strings.Cut(strings.ToLower(strings.TrimSpace(spec)), ".")
		if !ok || schema == "" || name == "" || strings.Contains(name, ".") {
			return nil, fmt.Errorf("invalid table %q: expected schema.name", spec)
		}
		tables = append(tables, lineage.Table{Schema: schema, Name: name})
	}
	return tables, nil
}

// Procedures keeps the procedures whose qualified name, or bare name, is
// listed. Names compare case-insensitively.
func Procedures(r lineage.Result, names []string) lineage.Result {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}

	out := lineage.Result{Errored: r.Errored}
	for _, p := range r.Procedures {
		if want[strings.ToLower(p.QualifiedName())] || want[strings.ToLower(p.Name)] {
			out.Procedures = append(out.Procedures, p)
		}
	}
	return out
}

// Simple keeps statements that write one of the tables or read one of
// them.
func Simple(r lineage.Result, tables []lineage.Table) lineage.Result {
	set := tableSet(tables)
	return keep(r, func(s lineage.Statement) bool {
		return writes(s, set) || reads(s, set)
	})
}

// Recursive keeps statements that build the tables or anything upstream of
// them, and statements that read the tables or anything downstream of them.
func Recursive(r lineage.Result, tables []lineage.Table) lineage.Result {
	g := dag.Build(r)

	ids := make([]string, len(tables))
	for i, t := range tables {
		ids[i] = t.String()
	}

	targets := tableSet(tables)
	for _, id := range g.Upstream(ids...) {
		if node, ok := g.GetNode(id); ok {
			targets[node.Table] = true
		}
	}
	sources := tableSet(tables)
	for _, id := range g.Downstream(ids...) {
		if node, ok := g.GetNode(id); ok {
			sources[node.Table] = true
		}
	}

	return keep(r, func(s lineage.Statement) bool {
		return writes(s, targets) || reads(s, sources)
	})
}

func tableSet(tables []lineage.Table) map[lineage.Table]bool {
	set := make(map[lineage.Table]bool, len(tables))
	for _, t := range tables {
		set[t] = true
	}
	return set
}

func writes(s lineage.Statement, set map[lineage.Table]bool) bool {
	return s.TargetTable != nil && set[*s.TargetTable]
}

func reads(s lineage.Statement, set map[lineage.Table]bool) bool {
	return slices.ContainsFunc(s.Sources(), func(t lineage.Table) bool { return set[t] })
}

// keep filters statements in place, preserving order, and drops procedures
// left empty.
func keep(r lineage.Result, pred func(lineage.Statement) bool) lineage.Result {
	out := lineage.Result{Errored: r.Errored}
	for _, p := range r.Procedures {
		var stmts []lineage.Statement
		for _, s := range p.Statements {
			if pred(s) {
				stmts = append(stmts, s)
			}
		}
		if len(stmts) == 0 {
			continue
		}
		p.Statements = stmts
		out.Procedures = append(out.Procedures, p)
	}
	return out
}

// Graph applies opts to r and builds the table graph of the result. With
// ModeRecursive the graph is cut down to the tables and their lineage, so
// side inputs of kept statements do not show up as nodes.
func Graph(r lineage.Result, opts Options) (*dag.Graph, error) {
	filtered, err := Apply(r, opts)
	if err != nil {
		return nil, err
	}
	g := dag.Build(filtered)
	if opts.Mode != ModeRecursive {
		return g, nil
	}

	ids := make([]string, 0, len(opts.Tables))
	for _, t := range opts.Tables {
		ids = append(ids, t.String())
	}
	lineageIDs := append(g.Upstream(ids...), g.Downstream(ids...)...)
	return g.Subgraph(append(ids, lineageIDs...)), nil
}
