package filter

import (
	"testing"

	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tb(name string) lineage.Table {
	return lineage.Table{Schema: "default_schema", Name: name}
}

func insert(proc, target string, from ...string) lineage.Statement {
	t := tb(target)
	s := lineage.Statement{Operation: lineage.OpInsert, Procedure: proc, TargetTable: &t}
	for _, f := range from {
		s.FromTable = append(s.FromTable, tb(f))
	}
	return s
}

// t0 -> t1 -> t2 -> t3, with an unrelated u1 -> u2 in p3.
func input() lineage.Result {
	return lineage.Result{
		Procedures: []lineage.Procedure{
			{Name: "p1", Schema: "etl", Statements: []lineage.Statement{
				insert("p1", "test_table_1", "test_table_0"),
				insert("p1", "test_table_2", "test_table_1"),
			}},
			{Name: "p2", Schema: "etl", Statements: []lineage.Statement{
				insert("p2", "test_table_3", "test_table_2"),
			}},
			{Name: "p3", Schema: "etl", Statements: []lineage.Statement{
				insert("p3", "u2", "u1"),
			}},
		},
		Errored: []lineage.Errored{{Path: "x.sql", Reason: lineage.ReasonParse}},
	}
}

func targets(r lineage.Result) []string {
	var out []string
	for _, s := range r.Statements() {
		out = append(out, s.TargetTable.Name)
	}
	return out
}

func TestProcedures(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{"qualified", []string{"etl.p1"}, []string{"p1"}},
		{"bare name, any case", []string{"P3"}, []string{"p3"}},
		{"unknown", []string{"other.p1"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Procedures(input(), tt.names)
			var names []string
			for _, p := range got.Procedures {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Len(t, got.Errored, 1)
		})
	}
}

func TestSimple(t *testing.T) {
	got := Simple(input(), []lineage.Table{tb("test_table_1")})

	require.Len(t, got.Procedures, 1)
	assert.Equal(t, "p1", got.Procedures[0].Name)
	assert.Equal(t, []string{"test_table_1", "test_table_2"}, targets(got))
}

func TestRecursive(t *testing.T) {
	got := Recursive(input(), []lineage.Table{tb("test_table_1")})

	require.Len(t, got.Procedures, 2)
	assert.Equal(t, []string{"test_table_1", "test_table_2", "test_table_3"}, targets(got))
	assert.Len(t, got.Errored, 1)

	got = Recursive(input(), []lineage.Table{tb("test_table_2")})
	assert.Equal(t, []string{"test_table_1", "test_table_2", "test_table_3"}, targets(got))
}

func TestRecursiveWithCycle(t *testing.T) {
	r := input()
	r.Procedures[2].Statements = append(r.Procedures[2].Statements, insert("p3", "test_table_0", "test_table_3"))

	got := Recursive(r, []lineage.Table{tb("test_table_1")})
	assert.Equal(t, []string{"test_table_1", "test_table_2", "test_table_3", "test_table_0"}, targets(got))
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    []string
		wantErr bool
	}{
		{"no filter", Options{}, []string{"test_table_1", "test_table_2", "test_table_3", "u2"}, false},
		{"procedures then simple", Options{Procedures: []string{"etl.p2"}, Mode: ModeSimple, Tables: []lineage.Table{tb("test_table_2")}}, []string{"test_table_3"}, false},
		{"recursive", Options{Mode: ModeRecursive, Tables: []lineage.Table{tb("u1")}}, []string{"u2"}, false},
		{"bad mode", Options{Mode: "deep"}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(input(), tt.opts)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, targets(got))
		})
	}
}

func TestParseTables(t *testing.T) {
	got, err := ParseTables([]string{"DWH.Orders", " stg.items "})
	require.NoError(t, err)
	assert.Equal(t, []lineage.Table{{Schema: "dwh", Name: "orders"}, {Schema: "stg", Name: "items"}}, got)

	for _, bad := range []string{"orders", "a.b.c", ".x", "x."} {
		_, err := ParseTables([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestGraph(t *testing.T) {
	side := input()
	side.Procedures[1].Statements[0].JoinTable = []lineage.Table{tb("lookup")}

	tests := []struct {
		name      string
		opts      Options
		wantNodes []string
		wantEdges int
	}{
		{
			name: "no filter",
			opts: Options{},
			wantNodes: []string{
				"default_schema.lookup", "default_schema.test_table_0", "default_schema.test_table_1",
				"default_schema.test_table_2", "default_schema.test_table_3", "default_schema.u1", "default_schema.u2",
			},
			wantEdges: 5,
		},
		{
			name: "recursive drops side inputs",
			opts: Options{Mode: ModeRecursive, Tables: []lineage.Table{tb("test_table_1")}},
			wantNodes: []string{
				"default_schema.test_table_0", "default_schema.test_table_1",
				"default_schema.test_table_2", "default_schema.test_table_3",
			},
			wantEdges: 3,
		},
		{
			name: "simple keeps side inputs",
			opts: Options{Mode: ModeSimple, Tables: []lineage.Table{tb("test_table_3")}},
			wantNodes: []string{
				"default_schema.lookup", "default_schema.test_table_2", "default_schema.test_table_3",
			},
			wantEdges: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := Graph(side, tt.opts)
			require.NoError(t, err)

			var nodes []string
			for _, n := range g.Nodes() {
				nodes = append(nodes, n.ID)
			}
			assert.Equal(t, tt.wantNodes, nodes)
			assert.Equal(t, tt.wantEdges, g.EdgeCount())
		})
	}

	_, err := Graph(side, Options{Mode: "deep"})
	require.Error(t, err)
}
