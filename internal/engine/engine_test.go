package engine_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litesync/internal/engine"
	"github.com/roach88/litesync/internal/testutil"
)

func TestOpen_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.db")
	e := testutil.OpenEngineAt(t, path)

	assert.Equal(t, path, e.Path())
	assert.NotNil(t, e.Stream())

	rows := testutil.MustQuery(t, e, "PRAGMA journal_mode")
	require.Len(t, rows, 1)
	assert.Equal(t, "wal", rows[0]["journal_mode"])
}

func TestExec_NeverAutoCommits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tx.db")
	e := testutil.OpenEngineAt(t, path)
	testutil.MustExec(t, e, testutil.ItemsDDL)

	ctx := context.Background()
	_, err := e.Exec(ctx, "INSERT INTO items (id, name, updated_at) VALUES (1, 'a', 1)")
	require.NoError(t, err)

	// Visible inside the open transaction.
	assert.Len(t, testutil.MustQuery(t, e, "SELECT * FROM items"), 1)

	require.NoError(t, e.Rollback())
	assert.Empty(t, testutil.MustQuery(t, e, "SELECT * FROM items"))
}

func TestCommit_PersistsAcrossEngines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	e := testutil.OpenEngineAt(t, path)
	testutil.MustExec(t, e, testutil.ItemsDDL,
		"INSERT INTO items (id, name, updated_at) VALUES (1, 'a', 1)")
	require.NoError(t, e.Close())

	reopened := testutil.OpenEngineAt(t, path)
	rows := testutil.MustQuery(t, reopened, "SELECT name FROM items WHERE id = ?", 1)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0]["name"])
}

func TestCommit_WithoutTransactionIsNoop(t *testing.T) {
	e := testutil.OpenEngine(t, "noop.db")
	assert.NoError(t, e.Commit())
	assert.NoError(t, e.Rollback())
}

func TestClose_RejectsFurtherUse(t *testing.T) {
	e := testutil.OpenEngine(t, "closed.db")
	require.NoError(t, e.Close())
	assert.NoError(t, e.Close(), "second close is a no-op")

	_, err := e.Exec(context.Background(), "SELECT 1")
	require.Error(t, err)

	var engErr *engine.Error
	require.True(t, errors.As(err, &engErr))
	assert.Equal(t, engine.ErrCodeClosed, engErr.Code)
}

func TestExec_StorageErrorsSurface(t *testing.T) {
	e := testutil.OpenEngine(t, "bad.db")
	_, err := e.Exec(context.Background(), "INSERT INTO missing VALUES (1)")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestQueryLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := testutil.OpenEngine(t, "log.db", engine.WithLogger(logger), engine.WithQueryLogging())

	testutil.MustQuery(t, e, "SELECT 1 AS one")

	out := buf.String()
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "SELECT 1 AS one")
	assert.Contains(t, out, "duration=")
}

func TestQueryLogging_OffByDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	e := testutil.OpenEngine(t, "quiet.db", engine.WithLogger(logger))

	testutil.MustQuery(t, e, "SELECT 1 AS one")
	assert.NotContains(t, buf.String(), "SELECT 1 AS one")
}

func TestChecksum_InvalidTable(t *testing.T) {
	e := testutil.OpenEngine(t, "ident.db")
	_, err := e.Checksum(context.Background(), "items; DROP TABLE items")
	require.Error(t, err)
	assert.True(t, engine.IsInvalidIdentifier(err))
}

func TestTables_ExcludesInternal(t *testing.T) {
	e := testutil.OpenEngine(t, "tables.db")
	testutil.MustExec(t, e, testutil.ItemsDDL, "CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT)")
	require.NoError(t, e.InstallTriggers(context.Background(), "items"))

	tables, err := e.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"items", "notes"}, tables)
}
