package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func sample() lineage.Result {
	return lineage.Result{
		Procedures: []lineage.Procedure{{
			Path: "etl/load.sql", Schema: "etl", Name: "load_fact",
			Statements: []lineage.Statement{
				{
					Operation:     lineage.OpInsert,
					Procedure:     "load_fact",
					TargetTable:   &lineage.Table{Schema: "dwh", Name: "fact"},
					FromTable:     []lineage.Table{{Schema: "stg", Name: "orders"}},
					JoinTable:     []lineage.Table{{Schema: "dwh", Name: "dim"}},
					TargetColumns: []string{"id", "amount"},
				},
				{Operation: lineage.OpTruncate, Procedure: "load_fact", TargetTable: &lineage.Table{Schema: "stg", Name: "orders"}},
			},
		}},
		Errored: []lineage.Errored{{Path: "etl/load.sql", Procedure: "load_fact", Kind: lineage.KindUpdate, Reason: lineage.ReasonParse, Message: "unexpected\ntoken"}},
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeAuto, false},
		{"auto", ModeAuto, false},
		{"TEXT", ModeText, false},
		{" markdown ", ModeMarkdown, false},
		{"json", ModeJSON, false},
		{"html", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on tty", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"empty piped", "", false, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
			assert.Equal(t, tt.isTTY, r.IsTTY())
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "## Summary", FormatHeader(2, "Summary"))
	assert.Equal(t, "# x", FormatHeader(0, "x"))
	assert.Equal(t, "- **Path**: a.sql", FormatKeyValue("Path", "a.sql"))
	assert.Equal(t, "-", FormatList(nil))
	assert.Equal(t, "a, b", FormatList([]string{"a", "b"}))
}

func TestLineageText(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText, false)
	require.NoError(t, r.Lineage(sample(), true))

	got := out.String()
	for _, want := range []string{
		"etl.load_fact (etl/load.sql)",
		"|--- INSERT ----> dwh.fact",
		". FROM stg.orders",
		". JOIN dwh.dim",
		". Columns --> id, amount",
		"|--- TRUNCATE ----> stg.orders",
		"1 procedures, 2 statements, 1 errored",
		"unexpected token",
	} {
		assert.Contains(t, got, want)
	}
	assert.NotContains(t, got, "\x1b[", "no color without a terminal")
}

func TestLineageMarkdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeAuto, false)
	require.NoError(t, r.Lineage(sample(), false))

	got := out.String()
	assert.Contains(t, got, "## etl.load_fact")
	assert.Contains(t, got, "- **Path**: `etl/load.sql`")
	assert.Contains(t, got, "### INSERT dwh.fact")
	assert.Contains(t, got, "- **Join**: dwh.dim")
	assert.Contains(t, got, "### TRUNCATE stg.orders")
	assert.Contains(t, got, "1 procedures, 2 statements, 1 errored")
	assert.NotContains(t, got, "unexpected token", "errored table only when verbose")
}

func TestLineageJSON(t *testing.T) {
	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.Lineage(sample(), true))

	var doc struct {
		Procedures map[string][]map[string]any `json:"procedures"`
		Errored    []lineage.Errored           `json:"errored"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &doc))
	require.Len(t, doc.Procedures["etl/load.sql"], 1)
	assert.Len(t, doc.Errored, 1)
	assert.NotContains(t, out.String(), "procedures, ")
}

func TestStatement(t *testing.T) {
	stmt := sample().Procedures[0].Statements[0]

	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.Statement(stmt))
	var got map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "INSERT", got["operation"])

	r, out, _ = newTestRenderer(ModeMarkdown, false)
	require.NoError(t, r.Statement(stmt))
	assert.Contains(t, out.String(), "- **Columns**: id, amount")
}

func TestWarnf(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeMarkdown, false)
	r.Warnf("skipped %d", 2)
	assert.Empty(t, out.String())
	assert.Equal(t, "skipped 2\n", errOut.String())
}
