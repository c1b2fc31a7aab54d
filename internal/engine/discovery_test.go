package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/ezql/internal/testutil"
	"github.com/leapstack-labs/ezql/pkg/lineage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{
		"b.sql":        "CREATE PROCEDURE DWH.LOAD_B() BEGIN INSERT INTO B SELECT * FROM A; END;;",
		"a.sql":        testProc,
		"nested/c.sql": "CREATE PROCEDURE LOAD_C() BEGIN TRUNCATE C; END;;",
		"README.md":    "INSERT INTO IGNORED SELECT 1;",
	})
	return dir
}

func TestDiscoverFiles(t *testing.T) {
	dir := writeProject(t)

	files, err := DiscoverFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.sql"),
		filepath.Join(dir, "b.sql"),
		filepath.Join(dir, "nested", "c.sql"),
	}, files)

	_, err = DiscoverFiles(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestParseDir(t *testing.T) {
	dir := writeProject(t)

	for _, workers := range []int{1, 4} {
		eng := newTestEngine(t, Config{Workers: workers, DefaultSchema: "stg"})
		res, err := eng.ParseDir(context.Background(), dir)
		require.NoError(t, err)
		assert.Empty(t, res.Errored)

		names := make([]string, 0, len(res.Procedures))
		for _, p := range res.Procedures {
			names = append(names, p.QualifiedName())
		}
		assert.Equal(t, []string{"example.testproc", "dwh.load_b", "stg.load_c"}, names, "workers=%d", workers)
	}
}

func TestParseDirUnreadableFile(t *testing.T) {
	dir := writeProject(t)
	require.NoError(t, os.Symlink(filepath.Join(dir, "gone.sql"), filepath.Join(dir, "broken.sql")))

	eng := newTestEngine(t, Config{})
	res, err := eng.Run(context.Background(), dir)
	require.NoError(t, err)

	require.Len(t, res.Errored, 1)
	assert.Equal(t, lineage.ReasonIO, res.Errored[0].Reason)
	assert.Equal(t, filepath.Join(dir, "broken.sql"), res.Errored[0].Path)
	assert.Len(t, res.Procedures, 3)
}

func TestParseDirCancelled(t *testing.T) {
	dir := writeProject(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newTestEngine(t, Config{Workers: 1})
	_, err := eng.ParseDir(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
