package lineage_test

import (
	"testing"

	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func texts(matches []lineage.Match) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.Text
	}
	return out
}

func TestLocatorFind(t *testing.T) {
	tests := []struct {
		name  string
		kind  lineage.Kind
		delim string
		input string
		want  []string
	}{
		{
			name:  "two inserts",
			kind:  lineage.KindInsert,
			delim: ";",
			input: "INSERT INTO A SELECT 1; INSERT INTO B VALUES (2);",
			want:  []string{"INSERT INTO A SELECT 1;", "INSERT INTO B VALUES (2);"},
		},
		{
			name:  "insert ignore",
			kind:  lineage.KindInsert,
			delim: ";",
			input: "INSERT IGNORE INTO S.T VALUES (1);",
			want:  []string{"INSERT IGNORE INTO S.T VALUES (1);"},
		},
		{
			name:  "custom delimiter",
			kind:  lineage.KindDelete,
			delim: ";;",
			input: "DELETE FROM A WHERE X = 1;; DELETE FROM B;;",
			want:  []string{"DELETE FROM A WHERE X = 1;;", "DELETE FROM B;;"},
		},
		{
			name:  "delimiter inside string is skipped",
			kind:  lineage.KindInsert,
			delim: ";",
			input: "INSERT INTO A VALUES ('X;Y');",
			want:  []string{"INSERT INTO A VALUES ('X;Y');"},
		},
		{
			name:  "keyword inside identifier is not a statement",
			kind:  lineage.KindUpdate,
			delim: ";",
			input: "SELECT LAST_UPDATE FROM T SET X;",
			want:  nil,
		},
		{
			name:  "update requires set",
			kind:  lineage.KindUpdate,
			delim: ";",
			input: "INSERT INTO T VALUES (1) ON DUPLICATE KEY UPDATE A = 1; UPDATE T2 SET B = 2;",
			want:  []string{"UPDATE T2 SET B = 2;"},
		},
		{
			name:  "replace function is not a statement",
			kind:  lineage.KindReplace,
			delim: ";",
			input: "SELECT REPLACE(A, 'X', 'Y'); REPLACE INTO T VALUES (1);",
			want:  []string{"REPLACE INTO T VALUES (1);"},
		},
		{
			name:  "drop temporary table",
			kind:  lineage.KindDropTable,
			delim: ";",
			input: "DROP TEMPORARY TABLE IF EXISTS TMP_A; CREATE TABLE X (A INT);",
			want:  []string{"DROP TEMPORARY TABLE IF EXISTS TMP_A;"},
		},
		{
			name:  "create table does not match drop",
			kind:  lineage.KindCreateTable,
			delim: ";",
			input: "DROP TABLE A; CREATE TEMPORARY TABLE IF NOT EXISTS B LIKE A;",
			want:  []string{"CREATE TEMPORARY TABLE IF NOT EXISTS B LIKE A;"},
		},
		{
			name:  "truncate with and without table keyword",
			kind:  lineage.KindTruncate,
			delim: ";",
			input: "TRUNCATE TABLE A;\nTRUNCATE B;",
			want:  []string{"TRUNCATE TABLE A;", "TRUNCATE B;"},
		},
		{
			name:  "multi-line statement",
			kind:  lineage.KindInsert,
			delim: ";",
			input: "INSERT\nINTO\tA\nSELECT *\nFROM B;",
			want:  []string{"INSERT\nINTO\tA\nSELECT *\nFROM B;"},
		},
	}

	loc := lineage.NewLocator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			matches, misses := loc.Find(tt.kind, tt.delim, tt.input)
			assert.Empty(t, misses)
			if tt.want == nil {
				assert.Empty(t, matches)
				return
			}
			assert.Equal(t, tt.want, texts(matches))
		})
	}
}

func TestLocatorOffsets(t *testing.T) {
	input := "SELECT 1; INSERT INTO A VALUES (1);"
	matches, _ := lineage.NewLocator().Find(lineage.KindInsert, ";", input)
	require.Len(t, matches, 1)

	m := matches[0]
	assert.Equal(t, lineage.KindInsert, m.Kind)
	assert.Equal(t, 10, m.Start)
	assert.Equal(t, len(input), m.End)
	assert.Equal(t, input[m.Start:m.End], m.Text)
}

func TestLocatorUnterminated(t *testing.T) {
	input := "INSERT INTO A VALUES (1); INSERT INTO B VALUES (2)"
	matches, misses := lineage.NewLocator().Find(lineage.KindInsert, ";", input)

	assert.Equal(t, []string{"INSERT INTO A VALUES (1);"}, texts(matches))
	require.Len(t, misses, 1)
	assert.Equal(t, lineage.KindInsert, misses[0].Kind)
	assert.Equal(t, "INSERT INTO B VALUES (2)", misses[0].Text)
}

func TestLocatorRelocateWithinMatch(t *testing.T) {
	loc := lineage.NewLocator()
	input := "UPDATE A JOIN B ON A.ID = B.ID SET A.X = B.Y; DELETE FROM C;"

	for _, kind := range lineage.Kinds() {
		matches, _ := loc.Find(kind, ";", input)
		for _, m := range matches {
			again, _ := loc.Find(kind, ";", m.Text)
			require.Len(t, again, 1, "kind %s", kind)
			assert.Equal(t, m.Text, again[0].Text)
		}
	}
}

func TestLocatorEmptyDelimiter(t *testing.T) {
	matches, misses := lineage.NewLocator().Find(lineage.KindInsert, "", "INSERT INTO A VALUES (1);")
	assert.Empty(t, matches)
	assert.Empty(t, misses)
}

func TestFindProcedures(t *testing.T) {
	input := "CREATE PROCEDURE EXAMPLE.P1()\nBEGIN\nINSERT INTO A SELECT 1;\nEND;;\n" +
		"CREATE DEFINER=ROOT@LOCALHOST PROCEDURE P2()\nBEGIN\nDELETE FROM B;\nEND;;"

	matches, misses := lineage.NewLocator().FindProcedures(";;", input)
	assert.Empty(t, misses)
	require.Len(t, matches, 2)
	assert.Contains(t, matches[0].Text, "INSERT INTO A SELECT 1;")
	assert.Contains(t, matches[1].Text, "DELETE FROM B;")
	assert.Equal(t, lineage.KindProcedure, matches[1].Kind)
}

func TestStatementDelimiter(t *testing.T) {
	loc := lineage.NewLocator()
	assert.Equal(t, ";", loc.StatementDelimiter(lineage.ModeProcedure, ";;"))
	assert.Equal(t, ";;", loc.StatementDelimiter(lineage.ModeDDL, ";;"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		input string
		want  lineage.Kind
		ok    bool
	}{
		{"INSERT INTO A SELECT 1", lineage.KindInsert, true},
		{"  replace into t values (1)", lineage.KindReplace, true},
		{"UPDATE A SET X = 1", lineage.KindUpdate, true},
		{"DELETE QUICK FROM A", lineage.KindDelete, true},
		{"CREATE TABLE A (X INT)", lineage.KindCreateTable, true},
		{"DROP TABLE A", lineage.KindDropTable, true},
		{"TRUNCATE A", lineage.KindTruncate, true},
		{"SELECT * FROM A", "", false},
		{"WITH X AS (SELECT 1) INSERT INTO A SELECT * FROM X", "", false},
	}

	loc := lineage.NewLocator()
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := loc.Classify(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcedureName(t *testing.T) {
	tests := []struct {
		body string
		want string
		ok   bool
	}{
		{"CREATE PROCEDURE EXAMPLE.TESTPROC()\nBEGIN END;;", "example.testproc", true},
		{"CREATE PROCEDURE IF NOT EXISTS LOAD_DAY(IN D DATE) BEGIN END;;", "load_day", true},
		{"CREATE DEFINER=ROOT@'%' PROCEDURE DWH.P_1() BEGIN END;;", "dwh.p_1", true},
		{"CREATE PROCEDURE (", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got, ok := lineage.ProcedureName(tt.body)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
