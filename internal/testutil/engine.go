package testutil

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/litesync/internal/engine"
)

// DiscardLogger returns a logger that drops everything. Tests that assert on
// log output build their own.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OpenEngine opens an engine on a fresh database file named name inside the
// test's temp dir. The engine is closed on cleanup.
func OpenEngine(t *testing.T, name string, opts ...engine.Option) *engine.Engine {
	t.Helper()
	return OpenEngineAt(t, filepath.Join(t.TempDir(), name), opts...)
}

// OpenEngineAt opens an engine on path and closes it on cleanup.
func OpenEngineAt(t *testing.T, path string, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{engine.WithLogger(DiscardLogger())}, opts...)
	e, err := engine.Open(path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

// ItemsDDL is the table most engine tests sync.
const ItemsDDL = `CREATE TABLE items (
    id         INTEGER PRIMARY KEY,
    name       TEXT,
    updated_at INTEGER
)`

// MustExec runs each statement on e and commits.
func MustExec(t *testing.T, e *engine.Engine, stmts ...string) {
	t.Helper()
	ctx := context.Background()
	for _, stmt := range stmts {
		_, err := e.Exec(ctx, stmt)
		require.NoError(t, err, "exec %q", stmt)
	}
	require.NoError(t, e.Commit())
}

// MustQuery returns every row of query on e.
func MustQuery(t *testing.T, e *engine.Engine, query string, args ...any) []map[string]any {
	t.Helper()
	rows, err := e.QueryRows(context.Background(), query, args...)
	require.NoError(t, err)
	out := make([]map[string]any, len(rows))
	for i, r := range rows {
		out[i] = r.Map()
	}
	return out
}
