package lineage_test

import (
	"errors"
	"testing"

	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/leapstack-labs/ezql/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tbl(schema, name string) lineage.Table {
	return lineage.Table{Schema: schema, Name: name}
}

func ptr(t lineage.Table) *lineage.Table {
	return &t
}

func mustExtract(t *testing.T, ex *lineage.Extractor, kind lineage.Kind, sql string) *lineage.Statement {
	t.Helper()
	stmt, err := ex.Extract(kind, sql)
	require.NoError(t, err, "sql: %s", sql)
	return stmt
}

func TestExtractInsert(t *testing.T) {
	ex := lineage.NewExtractor(lineage.Resolver{DefaultSchema: "dwh"})
	sql := "INSERT INTO DEFAULT_SCHEMA.MYTABLE (COL_1,COL_2) SELECT * FROM DEFAULT_SCHEMA.SRC_TAB_1 " +
		"JOIN DEFAULT_SCHEMA.SRC_TAB_2 ON SRC_TAB_1.ID = SRC_TAB_2.ID;"

	stmt := mustExtract(t, ex, lineage.KindInsert, sql)
	require.NotNil(t, stmt)
	assert.Equal(t, &lineage.Statement{
		Operation:     lineage.OpInsert,
		TargetTable:   ptr(tbl("default_schema", "mytable")),
		FromTable:     []lineage.Table{tbl("default_schema", "src_tab_1")},
		JoinTable:     []lineage.Table{tbl("default_schema", "src_tab_2")},
		TargetColumns: []string{"col_1", "col_2"},
	}, stmt)
}

func TestExtractInsertVariants(t *testing.T) {
	tests := []struct {
		name    string
		kind    lineage.Kind
		sql     string
		op      lineage.Operation
		target  lineage.Table
		from    []lineage.Table
		join    []lineage.Table
		columns []string
	}{
		{
			name:    "positional insert has no columns",
			kind:    lineage.KindInsert,
			sql:     "INSERT INTO T SELECT A, B FROM S;",
			op:      lineage.OpInsert,
			target:  tbl("dwh", "t"),
			from:    []lineage.Table{tbl("dwh", "s")},
			columns: []string{},
		},
		{
			name:    "values insert has no sources",
			kind:    lineage.KindInsert,
			sql:     "INSERT INTO STG.T (A) VALUES (1), (2);",
			op:      lineage.OpInsert,
			target:  tbl("stg", "t"),
			columns: []string{"a"},
		},
		{
			name:    "replace",
			kind:    lineage.KindReplace,
			sql:     "REPLACE INTO T (X, Y) SELECT A.X, B.Y FROM A LEFT JOIN B ON A.ID = B.ID;",
			op:      lineage.OpReplace,
			target:  tbl("dwh", "t"),
			from:    []lineage.Table{tbl("dwh", "a")},
			join:    []lineage.Table{tbl("dwh", "b")},
			columns: []string{"x", "y"},
		},
		{
			name:    "subselect tables count as from",
			kind:    lineage.KindInsert,
			sql:     "INSERT INTO T SELECT * FROM (SELECT ID FROM S1 JOIN S2 ON S1.ID = S2.ID) X JOIN S3 ON X.ID = S3.ID;",
			op:      lineage.OpInsert,
			target:  tbl("dwh", "t"),
			from:    []lineage.Table{tbl("dwh", "s1"), tbl("dwh", "s2")},
			join:    []lineage.Table{tbl("dwh", "s3")},
			columns: []string{},
		},
		{
			name:    "comma separated sources",
			kind:    lineage.KindInsert,
			sql:     "INSERT INTO T (A) SELECT S1.A FROM S1, OTHER.S2 WHERE S1.ID = S2.ID;",
			op:      lineage.OpInsert,
			target:  tbl("dwh", "t"),
			from:    []lineage.Table{tbl("dwh", "s1"), tbl("other", "s2")},
			columns: []string{"a"},
		},
		{
			name:    "where subquery is a source",
			kind:    lineage.KindInsert,
			sql:     "INSERT INTO T SELECT A FROM S WHERE A IN (SELECT A FROM R);",
			op:      lineage.OpInsert,
			target:  tbl("dwh", "t"),
			from:    []lineage.Table{tbl("dwh", "s"), tbl("dwh", "r")},
			columns: []string{},
		},
		{
			name:    "lower-case input",
			kind:    lineage.KindInsert,
			sql:     "insert into Stg.Orders (Id) select id from Raw.Orders;",
			op:      lineage.OpInsert,
			target:  tbl("stg", "orders"),
			from:    []lineage.Table{tbl("raw", "orders")},
			columns: []string{"id"},
		},
	}

	ex := lineage.NewExtractor(lineage.Resolver{DefaultSchema: "dwh"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := mustExtract(t, ex, tt.kind, tt.sql)
			require.NotNil(t, stmt)
			assert.Equal(t, tt.op, stmt.Operation)
			assert.Equal(t, ptr(tt.target), stmt.TargetTable)
			assert.Equal(t, tt.from, stmt.FromTable)
			assert.Equal(t, tt.join, stmt.JoinTable)
			assert.Equal(t, tt.columns, stmt.TargetColumns)
		})
	}
}

func TestExtractUpdate(t *testing.T) {
	ex := lineage.NewExtractor(lineage.Resolver{})
	sql := "UPDATE DEFAULT_SCHEMA.SRC_TAB_8 JOIN DEFAULT_SCHEMA.SRC_TAB_9 ON SRC_TAB_8.ID = SRC_TAB_9.ID " +
		"SET TAB_8.COL_3=TAB_9.COL4;"

	stmt := mustExtract(t, ex, lineage.KindUpdate, sql)
	require.NotNil(t, stmt)
	assert.Equal(t, &lineage.Statement{
		Operation:     lineage.OpUpdate,
		TargetTable:   ptr(tbl("default_schema", "src_tab_8")),
		JoinTable:     []lineage.Table{tbl("default_schema", "src_tab_9")},
		TargetColumns: []string{"tab_8.col_3=tab_9.col4"},
	}, stmt)
}

func TestExtractUpdateWithoutJoin(t *testing.T) {
	sql := "UPDATE DEFAULT_SCHEMA.SRC_TAB_8 SET COL=1;"

	t.Run("discarded by default", func(t *testing.T) {
		stmt := mustExtract(t, lineage.NewExtractor(lineage.Resolver{}), lineage.KindUpdate, sql)
		assert.Nil(t, stmt)
	})

	t.Run("kept when enabled", func(t *testing.T) {
		ex := lineage.NewExtractor(lineage.Resolver{}, lineage.WithSingleTableUpdates(true))
		stmt := mustExtract(t, ex, lineage.KindUpdate, sql)
		require.NotNil(t, stmt)
		assert.Equal(t, ptr(tbl("default_schema", "src_tab_8")), stmt.TargetTable)
		assert.Empty(t, stmt.JoinTable)
		assert.Equal(t, []string{"col=1"}, stmt.TargetColumns)
	})
}

func TestExtractTargetOnly(t *testing.T) {
	tests := []struct {
		name   string
		kind   lineage.Kind
		sql    string
		op     lineage.Operation
		target lineage.Table
	}{
		{"delete", lineage.KindDelete, "DELETE FROM DEFAULT_SCHEMA.SRC_TAB_10 WHERE ID > 3;", lineage.OpDelete, tbl("default_schema", "src_tab_10")},
		{"delete multi table", lineage.KindDelete, "DELETE T1 FROM T1 JOIN T2 ON T1.ID = T2.ID;", lineage.OpDelete, tbl("dwh", "t1")},
		{"truncate", lineage.KindTruncate, "TRUNCATE TABLE STG.T;", lineage.OpTruncate, tbl("stg", "t")},
		{"drop table", lineage.KindDropTable, "DROP TABLE DEFAULT_SCHEMA.SRC_TAB_12;", lineage.OpDropTable, tbl("default_schema", "src_tab_12")},
		{"drop several tables", lineage.KindDropTable, "DROP TABLE IF EXISTS A, B;", lineage.OpDropTable, tbl("dwh", "a")},
	}

	ex := lineage.NewExtractor(lineage.Resolver{DefaultSchema: "dwh"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := mustExtract(t, ex, tt.kind, tt.sql)
			require.NotNil(t, stmt)
			assert.Equal(t, &lineage.Statement{Operation: tt.op, TargetTable: ptr(tt.target)}, stmt)
		})
	}
}

func TestExtractCreateTable(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want lineage.Statement
	}{
		{
			name: "columns",
			sql:  "CREATE TABLE S.T (ID INT NOT NULL, NAME VARCHAR(10) DEFAULT 'X', PRIMARY KEY (ID)) ENGINE=INNODB;",
			want: lineage.Statement{
				Operation:     lineage.OpCreateTableColumns,
				TargetTable:   ptr(tbl("s", "t")),
				TargetColumns: []string{"id", "name"},
			},
		},
		{
			name: "query",
			sql:  "CREATE TEMPORARY TABLE TMP AS SELECT A.X, B.Y AS Z FROM A JOIN B ON A.ID = B.ID;",
			want: lineage.Statement{
				Operation:     lineage.OpCreateTableQuery,
				TargetTable:   ptr(tbl("dwh", "tmp")),
				FromTable:     []lineage.Table{tbl("dwh", "a")},
				JoinTable:     []lineage.Table{tbl("dwh", "b")},
				TargetColumns: []string{"a.x", "b.y as z"},
			},
		},
		{
			name: "parenthesized query",
			sql:  "CREATE TABLE T (SELECT ID FROM S);",
			want: lineage.Statement{
				Operation:     lineage.OpCreateTableQuery,
				TargetTable:   ptr(tbl("dwh", "t")),
				FromTable:     []lineage.Table{tbl("dwh", "s")},
				TargetColumns: []string{"id"},
			},
		},
		{
			name: "like",
			sql:  "CREATE TABLE IF NOT EXISTS STG.T_COPY LIKE STG.T;",
			want: lineage.Statement{
				Operation:   lineage.OpCreateTableLike,
				TargetTable: ptr(tbl("stg", "t_copy")),
				FromTable:   []lineage.Table{tbl("stg", "t")},
			},
		},
	}

	ex := lineage.NewExtractor(lineage.Resolver{DefaultSchema: "dwh"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt := mustExtract(t, ex, lineage.KindCreateTable, tt.sql)
			require.NotNil(t, stmt)
			assert.Equal(t, tt.want, *stmt)
		})
	}
}

func TestExtractErrors(t *testing.T) {
	ex := lineage.NewExtractor(lineage.Resolver{})

	t.Run("parse error", func(t *testing.T) {
		stmt, err := ex.Extract(lineage.KindInsert, "INSERT INTO T SELECT FROM;")
		require.Error(t, err)
		assert.Nil(t, stmt)
		var perr *parser.ParseError
		assert.True(t, errors.As(err, &perr))
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := ex.Extract(lineage.KindProcedure, "CREATE PROCEDURE P() BEGIN END")
		assert.ErrorIs(t, err, lineage.ErrUnknownKind)
	})
}

// Extracting from the locator's output gives the same record as running the
// locator and extractor over a whole body.
func TestExtractRoundTrip(t *testing.T) {
	body := "INSERT INTO T1 (A) SELECT A FROM S1 JOIN S2 ON S1.ID = S2.ID;\n" +
		"UPDATE T2 JOIN S3 ON T2.ID = S3.ID SET T2.A = S3.A;\n" +
		"DELETE FROM T3;"

	loc := lineage.NewLocator()
	ex := lineage.NewExtractor(lineage.Resolver{DefaultSchema: "dwh"})
	for _, kind := range lineage.Kinds() {
		matches, _ := loc.Find(kind, ";", body)
		for _, m := range matches {
			first := mustExtract(t, ex, kind, m.Text)

			again, _ := loc.Find(kind, ";", m.Text)
			require.Len(t, again, 1)
			second := mustExtract(t, ex, kind, again[0].Text)
			assert.Equal(t, first, second)
		}
	}
}
