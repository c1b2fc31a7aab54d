package lineage

import (
	"strings"

	"github.com/leapstack-labs/ezql/pkg/parser"
)

// Clause selects which side of a FROM clause SourceTables collects.
type Clause int

// Source clauses.
const (
	ClauseFrom Clause = iota
	ClauseJoin
)

// Walker reads lineage facts out of syntax trees. Table names are resolved
// with its Resolver.
type Walker struct {
	Resolver Resolver
}

// FirstTable returns the first TableName found depth-first under node.
// Join parts are not searched, so the result is the statement's own table.
func (w Walker) FirstTable(node *parser.Node) (Table, bool) {
	if found := firstTableName(node); found != nil {
		return w.Resolver.Table(found.Text()), true
	}
	return Table{}, false
}

func firstTableName(node *parser.Node) *parser.Node {
	for _, c := range node.Children {
		switch c.Kind {
		case parser.KindTerminal, parser.KindError, parser.KindJoinPart:
			continue
		case parser.KindTableName:
			return c
		}
		if found := firstTableName(c); found != nil {
			return found
		}
	}
	return nil
}

// AllTables returns every TableName under node in source order, including
// the tables of nested subqueries.
func (w Walker) AllTables(node *parser.Node) []Table {
	var tables []Table
	w.collectTables(node, &tables)
	return tables
}

func (w Walker) collectTables(node *parser.Node, tables *[]Table) {
	for _, c := range node.Children {
		switch c.Kind {
		case parser.KindTerminal, parser.KindError:
		case parser.KindTableName:
			*tables = append(*tables, w.Resolver.Table(c.Text()))
		default:
			// A QueryExpression holds its specification directly, so
			// subqueries are reached by plain descent.
			w.collectTables(c, tables)
		}
	}
}

// SourceTables collects the tables read through FROM clauses under node.
// ClauseFrom takes each table source's leading item, ClauseJoin its join
// parts. Clauses nested elsewhere, such as WHERE subqueries, are found too.
func (w Walker) SourceTables(node *parser.Node, clause Clause) []Table {
	var tables []Table
	for _, c := range node.Children {
		switch c.Kind {
		case parser.KindTerminal, parser.KindError:
		case parser.KindFromClause:
			tables = append(tables, w.fromClauseTables(c, clause)...)
		default:
			tables = append(tables, w.SourceTables(c, clause)...)
		}
	}
	return tables
}

func (w Walker) fromClauseTables(from *parser.Node, clause Clause) []Table {
	sources := from.Child(parser.KindTableSources)
	if sources == nil {
		return nil
	}
	var tables []Table
	for _, src := range sources.ChildrenOf(parser.KindTableSource) {
		switch clause {
		case ClauseFrom:
			if item := src.Child(parser.KindTableSourceItem); item != nil {
				tables = append(tables, w.AllTables(item)...)
			}
		case ClauseJoin:
			for _, join := range src.ChildrenOf(parser.KindJoinPart) {
				tables = append(tables, w.AllTables(join)...)
			}
		}
	}
	return tables
}

// JoinTables collects the tables of every join part under node. UPDATE
// uses it because its table references are not wrapped in a FROM clause.
func (w Walker) JoinTables(node *parser.Node) []Table {
	var tables []Table
	for _, c := range node.Children {
		switch c.Kind {
		case parser.KindTerminal, parser.KindError:
		case parser.KindJoinPart:
			tables = append(tables, w.AllTables(c)...)
		default:
			tables = append(tables, w.JoinTables(c)...)
		}
	}
	return tables
}

// UpdatedColumns returns the lower-cased text of every assignment under
// node, e.g. "t.a=s.b".
func (w Walker) UpdatedColumns(node *parser.Node) []string {
	cols := []string{}
	for _, c := range node.Children {
		switch c.Kind {
		case parser.KindTerminal, parser.KindError:
		case parser.KindUpdatedElement:
			cols = append(cols, strings.ToLower(c.Text()))
		default:
			cols = append(cols, w.UpdatedColumns(c)...)
		}
	}
	return cols
}

// InsertedColumns returns the explicit column list of an INSERT or REPLACE,
// or an empty slice for a positional insert.
func (w Walker) InsertedColumns(node *parser.Node) []string {
	list := node.Child(parser.KindUidList)
	if list == nil {
		return []string{}
	}
	return strings.Split(strings.ToLower(list.Text()), ",")
}

// CreateTableColumns returns the declared column names of a CREATE TABLE.
func (w Walker) CreateTableColumns(node *parser.Node) []string {
	cols := []string{}
	for _, c := range node.Children {
		switch c.Kind {
		case parser.KindTerminal, parser.KindError:
		case parser.KindColumnDeclaration:
			if uid := c.Child(parser.KindUid); uid != nil {
				cols = append(cols, strings.ToLower(uid.Text()))
			}
		default:
			cols = append(cols, w.CreateTableColumns(c)...)
		}
	}
	return cols
}

// SelectColumns returns the select-list elements of the first query
// specification under node, one entry per element.
func (w Walker) SelectColumns(node *parser.Node) []string {
	cols := []string{}
	spec := node.Find(parser.KindQuerySpecification)
	if spec == nil {
		return cols
	}
	elems := spec.Child(parser.KindSelectElements)
	if elems == nil {
		return cols
	}
	for _, e := range elems.ChildrenOf(parser.KindSelectElement) {
		cols = append(cols, strings.ToLower(e.Text()))
	}
	return cols
}
