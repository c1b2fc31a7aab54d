package lineage

import (
	"fmt"

	"github.com/leapstack-labs/ezql/pkg/parser"
)

var entries = map[Kind]parser.Entry{
	KindInsert:      parser.EntryInsert,
	KindReplace:     parser.EntryReplace,
	KindUpdate:      parser.EntryUpdate,
	KindDelete:      parser.EntryDelete,
	KindCreateTable: parser.EntryCreateTable,
	KindDropTable:   parser.EntryDropTable,
	KindTruncate:    parser.EntryTruncate,
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithSingleTableUpdates keeps UPDATE statements that have no JOIN. They are
// discarded by default because they carry no table-to-table lineage.
func WithSingleTableUpdates(keep bool) Option {
	return func(e *Extractor) {
		e.keepSingleTableUpdates = keep
	}
}

// Extractor parses located statements and builds their lineage records.
type Extractor struct {
	walker                 Walker
	keepSingleTableUpdates bool
}

// NewExtractor returns an extractor resolving names with r.
func NewExtractor(r Resolver, opts ...Option) *Extractor {
	e := &Extractor{walker: Walker{Resolver: r}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract parses sql as a statement of the given kind. A nil statement with
// a nil error means the statement carries no lineage and is discarded.
// Parse failures are returned as *parser.ParseError.
func (e *Extractor) Extract(kind Kind, sql string) (*Statement, error) {
	entry, ok := entries[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	tree, err := parser.Parse(entry, sql)
	if err != nil {
		return nil, err
	}
	return e.fromTree(kind, tree), nil
}

func (e *Extractor) fromTree(kind Kind, tree *parser.Node) *Statement {
	switch kind {
	case KindInsert:
		return e.insert(OpInsert, tree)
	case KindReplace:
		return e.insert(OpReplace, tree)
	case KindUpdate:
		return e.update(tree)
	case KindDelete:
		return e.targetOnly(OpDelete, tree)
	case KindTruncate:
		return e.targetOnly(OpTruncate, tree)
	case KindDropTable:
		return e.dropTable(tree)
	case KindCreateTable:
		return e.createTable(tree)
	}
	return nil
}

func (e *Extractor) target(tree *parser.Node) *Table {
	t, ok := e.walker.FirstTable(tree)
	if !ok {
		return nil
	}
	return &t
}

func (e *Extractor) insert(op Operation, tree *parser.Node) *Statement {
	s := &Statement{
		Operation:     op,
		TargetTable:   e.target(tree),
		TargetColumns: e.walker.InsertedColumns(tree),
	}
	if value := tree.Child(parser.KindInsertStatementValue); value != nil {
		s.FromTable = e.walker.SourceTables(value, ClauseFrom)
		s.JoinTable = e.walker.SourceTables(value, ClauseJoin)
	}
	return s
}

func (e *Extractor) update(tree *parser.Node) *Statement {
	s := &Statement{
		Operation:     OpUpdate,
		TargetTable:   e.target(tree),
		JoinTable:     e.walker.JoinTables(tree),
		TargetColumns: e.walker.UpdatedColumns(tree),
	}
	if s.TargetTable == nil {
		return nil
	}
	if len(s.JoinTable) == 0 && !e.keepSingleTableUpdates {
		return nil
	}
	return s
}

func (e *Extractor) targetOnly(op Operation, tree *parser.Node) *Statement {
	return &Statement{Operation: op, TargetTable: e.target(tree)}
}

func (e *Extractor) dropTable(tree *parser.Node) *Statement {
	s := &Statement{Operation: OpDropTable}
	if tables := tree.Child(parser.KindTables); tables != nil {
		if name := tables.Child(parser.KindTableName); name != nil {
			t := e.walker.Resolver.Table(name.Text())
			s.TargetTable = &t
		}
	}
	return s
}

func (e *Extractor) createTable(tree *parser.Node) *Statement {
	switch tree.Kind {
	case parser.KindCopyCreateTable:
		s := &Statement{Operation: OpCreateTableLike}
		names := tree.ChildrenOf(parser.KindTableName)
		if len(names) > 0 {
			t := e.walker.Resolver.Table(names[0].Text())
			s.TargetTable = &t
		}
		if len(names) > 1 {
			s.FromTable = []Table{e.walker.Resolver.Table(names[1].Text())}
		}
		return s
	case parser.KindQueryCreateTable:
		s := &Statement{
			Operation:   OpCreateTableQuery,
			TargetTable: e.target(tree),
			FromTable:   e.walker.SourceTables(tree, ClauseFrom),
			JoinTable:   e.walker.SourceTables(tree, ClauseJoin),
		}
		if sel := tree.Child(parser.KindSelectStatement); sel != nil {
			s.TargetColumns = e.walker.SelectColumns(sel)
		}
		return s
	default:
		return &Statement{
			Operation:     OpCreateTableColumns,
			TargetTable:   e.target(tree),
			TargetColumns: e.walker.CreateTableColumns(tree),
		}
	}
}
