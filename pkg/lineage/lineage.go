// Package lineage extracts table-level data lineage from MySQL-like
// statements.
//
// A Locator isolates candidate statements of known kinds in a text blob,
// pkg/parser turns each candidate into a syntax tree, and an Extractor walks
// that tree to recover the target table, the tables read through FROM and
// JOIN, and the columns written:
//
//	loc := lineage.NewLocator()
//	ex := lineage.NewExtractor(lineage.Resolver{DefaultSchema: "dwh"})
//	matches, _ := loc.Find(lineage.KindInsert, ";", text)
//	for _, m := range matches {
//	    stmt, err := ex.Extract(m.Kind, m.Text)
//	    ...
//	}
package lineage

import "encoding/json"

// Table names a table. Zero-valued schema means the name was unqualified
// and no default schema was configured.
type Table struct {
	Schema string `json:"schema" yaml:"schema"`
	Name   string `json:"name" yaml:"name"`
}

// String renders the table as schema.name.
func (t Table) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Operation tags the kind of change a statement makes.
type Operation string

// Operations produced by the extractor.
const (
	OpInsert             Operation = "INSERT"
	OpReplace            Operation = "REPLACE"
	OpUpdate             Operation = "UPDATE"
	OpDelete             Operation = "DELETE"
	OpCreateTableColumns Operation = "CREATE TABLE COLUMNS"
	OpCreateTableQuery   Operation = "CREATE TABLE QUERY"
	OpCreateTableLike    Operation = "CREATE TABLE LIKE"
	OpDropTable          Operation = "DROP TABLE"
	OpTruncate           Operation = "TRUNCATE"
)

// HasFrom reports whether statements of this operation carry from_table.
func (o Operation) HasFrom() bool {
	switch o {
	case OpInsert, OpReplace, OpCreateTableQuery, OpCreateTableLike:
		return true
	}
	return false
}

// HasJoin reports whether statements of this operation carry join_table.
func (o Operation) HasJoin() bool {
	switch o {
	case OpInsert, OpReplace, OpUpdate, OpCreateTableQuery:
		return true
	}
	return false
}

// HasColumns reports whether statements of this operation carry
// target_columns.
func (o Operation) HasColumns() bool {
	switch o {
	case OpInsert, OpReplace, OpUpdate, OpCreateTableColumns, OpCreateTableQuery:
		return true
	}
	return false
}

// Statement is the lineage of one data-changing statement.
type Statement struct {
	Operation     Operation `json:"operation" yaml:"operation"`
	Procedure     string    `json:"procedure" yaml:"procedure"`
	TargetTable   *Table    `json:"target_table" yaml:"target_table"`
	FromTable     []Table   `json:"from_table,omitempty" yaml:"from_table,omitempty"`
	JoinTable     []Table   `json:"join_table,omitempty" yaml:"join_table,omitempty"`
	TargetColumns []string  `json:"target_columns,omitempty" yaml:"target_columns,omitempty"`
}

// WithProcedure returns a copy of s attributed to the named procedure.
func (s Statement) WithProcedure(name string) Statement {
	s.Procedure = name
	return s
}

// Sources returns the FROM tables followed by the JOIN tables.
func (s Statement) Sources() []Table {
	out := make([]Table, 0, len(s.FromTable)+len(s.JoinTable))
	out = append(out, s.FromTable...)
	return append(out, s.JoinTable...)
}

// statementView is the serialized shape of a Statement: fields that apply
// to the operation are always present, the others are absent.
type statementView struct {
	Operation     Operation `json:"operation" yaml:"operation"`
	Procedure     string    `json:"procedure" yaml:"procedure"`
	TargetTable   *Table    `json:"target_table" yaml:"target_table"`
	FromTable     *[]Table  `json:"from_table,omitempty" yaml:"from_table,omitempty"`
	JoinTable     *[]Table  `json:"join_table,omitempty" yaml:"join_table,omitempty"`
	TargetColumns *[]string `json:"target_columns,omitempty" yaml:"target_columns,omitempty"`
}

func (s Statement) view() statementView {
	v := statementView{
		Operation:   s.Operation,
		Procedure:   s.Procedure,
		TargetTable: s.TargetTable,
	}
	if s.Operation.HasFrom() {
		from := nonNil(s.FromTable)
		v.FromTable = &from
	}
	if s.Operation.HasJoin() {
		join := nonNil(s.JoinTable)
		v.JoinTable = &join
	}
	if s.Operation.HasColumns() {
		cols := s.TargetColumns
		if cols == nil {
			cols = []string{}
		}
		v.TargetColumns = &cols
	}
	return v
}

// MarshalJSON writes only the fields that apply to the operation.
func (s Statement) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.view())
}

// MarshalYAML writes only the fields that apply to the operation.
func (s Statement) MarshalYAML() (any, error) {
	return s.view(), nil
}

func nonNil(tables []Table) []Table {
	if tables == nil {
		return []Table{}
	}
	return tables
}

// Procedure groups the statements of one stored procedure, or of one file
// in ddl mode.
type Procedure struct {
	Path       string      `json:"path" yaml:"path"`
	Name       string      `json:"name" yaml:"name"`
	Schema     string      `json:"schema" yaml:"schema"`
	Statements []Statement `json:"statements" yaml:"statements"`
}

// QualifiedName returns schema.name, or name when the schema is empty.
func (p Procedure) QualifiedName() string {
	if p.Schema == "" {
		return p.Name
	}
	return p.Schema + "." + p.Name
}

// Reason classifies a per-statement failure.
type Reason string

// Failure reasons.
const (
	ReasonParse         Reason = "parse"
	ReasonUnterminated  Reason = "unterminated"
	ReasonProcedureName Reason = "procedure-name"
	ReasonIO            Reason = "io"
)

// Errored records a statement, procedure or file that could not be
// extracted. Processing continues past it.
type Errored struct {
	Path      string `json:"path" yaml:"path"`
	Procedure string `json:"procedure,omitempty" yaml:"procedure,omitempty"`
	Kind      Kind   `json:"kind,omitempty" yaml:"kind,omitempty"`
	Reason    Reason `json:"reason" yaml:"reason"`
	Statement string `json:"statement,omitempty" yaml:"statement,omitempty"`
	Message   string `json:"message" yaml:"message"`
}

// Result is the outcome of extracting lineage from a file, a directory or
// a text.
type Result struct {
	Procedures []Procedure `json:"procedures" yaml:"procedures"`
	Errored    []Errored   `json:"errored,omitempty" yaml:"errored,omitempty"`
}

// Merge appends other to r.
func (r *Result) Merge(other Result) {
	r.Procedures = append(r.Procedures, other.Procedures...)
	r.Errored = append(r.Errored, other.Errored...)
}

// Statements returns every statement of every procedure in order.
func (r Result) Statements() []Statement {
	var out []Statement
	for _, p := range r.Procedures {
		out = append(out, p.Statements...)
	}
	return out
}
