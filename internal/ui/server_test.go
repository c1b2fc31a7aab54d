package ui

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/ezql/internal/engine"
	"github.com/leapstack-labs/ezql/internal/state"
	"github.com/leapstack-labs/ezql/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const loadOrders = `CREATE PROCEDURE ETL.LOAD_ORDERS()
BEGIN
  INSERT INTO STG.ORDERS (ID, AMOUNT) SELECT ID, AMOUNT FROM RAW.ORDERS;
END;;`

const loadFact = `CREATE PROCEDURE ETL.LOAD_FACT()
BEGIN
  INSERT INTO DWH.FACT SELECT O.ID FROM STG.ORDERS O JOIN DWH.DIM D ON D.ID = O.ID;
END;;`

func newTestServer(t *testing.T, path string, store state.Store, watch bool) *Server {
	t.Helper()
	eng, err := engine.New(engine.Config{Logger: testutil.NewTestLogger(t)})
	require.NoError(t, err)
	return NewServer(Config{
		Engine:        eng,
		Store:         store,
		Path:          path,
		Watch:         watch,
		SessionSecret: "test-secret",
		Logger:        testutil.NewTestLogger(t),
	})
}

func TestNewServerDefaults(t *testing.T) {
	s := NewServer(Config{Path: "x"})
	assert.Equal(t, DefaultPort, s.port)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.sessionStore)
}

func TestReload(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"orders.sql": loadOrders})

	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	defer func() { _ = store.Close() }()

	s := newTestServer(t, dir, store, false)
	require.NoError(t, s.Reload(context.Background()))

	info := s.Snapshot().Info()
	assert.Equal(t, 1, info.Procedures)
	assert.NotEmpty(t, info.RunID)
	assert.Equal(t, uint64(1), s.Notifier().Generation())

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, info.RunID, runs[0].ID)

	missing := newTestServer(t, filepath.Join(dir, "missing"), nil, false)
	assert.Error(t, missing.Reload(context.Background()))
}

func TestHandlerRoutes(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"orders.sql": loadOrders})

	tests := []struct {
		name       string
		withStore  bool
		target     string
		wantStatus int
	}{
		{"chart", false, "/", http.StatusOK},
		{"health", false, "/healthz", http.StatusOK},
		{"static", false, "/static/style.css", http.StatusOK},
		{"runs without store", false, "/api/runs", http.StatusNotFound},
		{"runs with store", true, "/api/runs", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var store state.Store
			if tt.withStore {
				s := state.NewSQLiteStore(nil)
				require.NoError(t, s.Open(":memory:"))
				t.Cleanup(func() { _ = s.Close() })
				store = s
			}
			srv := newTestServer(t, dir, store, false)
			require.NoError(t, srv.Reload(context.Background()))

			handler, err := srv.Handler()
			require.NoError(t, err)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func health(t *testing.T, base string) map[string]any {
	t.Helper()
	resp, err := http.Get(base + "/healthz")
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		return nil
	}
	return got
}

func TestServeWatchesFiles(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFiles(t, dir, map[string]string{"orders.sql": loadOrders})

	s := newTestServer(t, dir, nil, true)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ServeListener(ctx, ln) }()

	require.Eventually(t, func() bool {
		got := health(t, base)
		return got != nil && got["procedures"] == float64(1)
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "fact.sql"), []byte(loadFact), 0o644))

	assert.Eventually(t, func() bool {
		got := health(t, base)
		return got != nil && got["procedures"] == float64(2)
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeListenerFailsOnBadPath(t *testing.T) {
	s := newTestServer(t, filepath.Join(t.TempDir(), "nope.sql"), nil, false)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	err = s.ServeListener(context.Background(), ln)
	assert.Error(t, err)
}
