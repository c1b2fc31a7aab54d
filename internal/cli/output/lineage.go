package output

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/ezql/internal/export"
	"github.com/leapstack-labs/ezql/pkg/lineage"
)

const rule = "----------------------------"

// Lineage writes the per-procedure lineage report followed by a summary.
// With verbose set the errored records are listed in a table.
func (r *Renderer) Lineage(res lineage.Result, verbose bool) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return export.JSON(r.out, res, export.Options{IncludeErrors: true})
	case ModeMarkdown:
		r.lineageMarkdown(res)
	default:
		r.lineageText(res)
	}
	r.Summary(res, verbose)
	return nil
}

// Statement writes one statement in the current mode.
func (r *Renderer) Statement(s lineage.Statement) error {
	switch r.EffectiveMode() {
	case ModeJSON:
		return r.JSON(s)
	case ModeMarkdown:
		r.statementMarkdown(s)
	default:
		r.statementText(s)
	}
	return nil
}

func (r *Renderer) lineageText(res lineage.Result) {
	s := r.styles
	for _, p := range res.Procedures {
		r.Println(s.Header.Render(rule))
		r.Printf("%s %s\n", s.Header.Render(p.QualifiedName()), s.Muted.Render("("+p.Path+")"))
		r.Println(s.Header.Render(rule))
		if len(p.Statements) == 0 {
			r.Println(s.Muted.Render("  no statements"))
		}
		for _, stmt := range p.Statements {
			r.Println("|")
			r.statementText(stmt)
		}
		r.Println()
	}
}

func (r *Renderer) statementText(stmt lineage.Statement) {
	s := r.styles
	r.Printf("|--- %s ----> %s\n", s.Operation.Render(string(stmt.Operation)), s.Table.Render(tableName(stmt.TargetTable)))
	for _, t := range stmt.FromTable {
		r.Printf("       . %s %s\n", s.Operation.Render("FROM"), s.Table.Render(t.String()))
	}
	for _, t := range stmt.JoinTable {
		r.Printf("       . %s %s\n", s.Operation.Render("JOIN"), s.Table.Render(t.String()))
	}
	if stmt.Operation.HasColumns() {
		r.Printf("       . %s %s\n", s.Operation.Render("Columns -->"), s.Table.Render(FormatList(stmt.TargetColumns)))
	}
}

func (r *Renderer) lineageMarkdown(res lineage.Result) {
	for _, p := range res.Procedures {
		r.Println(FormatHeader(2, p.QualifiedName()))
		r.Println()
		r.Println(FormatKeyValue("Path", "`"+p.Path+"`"))
		r.Println(FormatKeyValue("Statements", fmt.Sprint(len(p.Statements))))
		r.Println()
		for _, stmt := range p.Statements {
			r.statementMarkdown(stmt)
		}
	}
}

func (r *Renderer) statementMarkdown(stmt lineage.Statement) {
	r.Println(FormatHeader(3, string(stmt.Operation)+" "+tableName(stmt.TargetTable)))
	r.Println()
	if stmt.Operation.HasFrom() {
		r.Println(FormatKeyValue("From", tableList(stmt.FromTable)))
	}
	if stmt.Operation.HasJoin() {
		r.Println(FormatKeyValue("Join", tableList(stmt.JoinTable)))
	}
	if stmt.Operation.HasColumns() {
		r.Println(FormatKeyValue("Columns", FormatList(stmt.TargetColumns)))
	}
	r.Println()
}

// Summary writes the procedure, statement and errored counts.
func (r *Renderer) Summary(res lineage.Result, verbose bool) {
	line := fmt.Sprintf("%d procedures, %d statements, %d errored",
		len(res.Procedures), len(res.Statements()), len(res.Errored))

	if r.EffectiveMode() == ModeText {
		style := r.styles.Success
		if len(res.Errored) > 0 {
			style = r.styles.Warning
		}
		r.Println(style.Render(line))
	} else {
		r.Println(FormatHeader(2, "Summary"))
		r.Println()
		r.Println(line)
	}

	if verbose && len(res.Errored) > 0 {
		r.Println()
		r.Errored(res.Errored)
	}
}

// Errored writes errored records as a table.
func (r *Renderer) Errored(errored []lineage.Errored) {
	rows := make([][]string, 0, len(errored))
	for _, e := range errored {
		rows = append(rows, []string{e.Path, e.Procedure, string(e.Kind), string(e.Reason), oneLine(e.Message)})
	}
	r.Table([]string{"Path", "Procedure", "Kind", "Reason", "Message"}, rows)
}

func tableName(t *lineage.Table) string {
	if t == nil {
		return "-"
	}
	return t.String()
}

func tableList(tables []lineage.Table) string {
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.String()
	}
	return FormatList(names)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
