package engine_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litesync/internal/engine"
	"github.com/roach88/litesync/internal/row"
	"github.com/roach88/litesync/internal/testutil"
)

func itemsPair(t *testing.T, opts ...engine.Option) (*engine.Engine, *engine.Engine) {
	t.Helper()
	a := testutil.OpenEngine(t, "a.db", opts...)
	b := testutil.OpenEngine(t, "b.db")
	testutil.MustExec(t, a, testutil.ItemsDDL)
	testutil.MustExec(t, b, testutil.ItemsDDL)
	return a, b
}

func checksum(t *testing.T, e *engine.Engine, table string) string {
	t.Helper()
	sum, err := e.Checksum(context.Background(), table)
	require.NoError(t, err)
	return sum
}

func TestSyncWith_UnionOfRows(t *testing.T) {
	a, b := itemsPair(t)
	testutil.MustExec(t, a,
		"INSERT INTO items VALUES (1, 'alpha', 10)",
		"INSERT INTO items VALUES (2, 'beta', 20)")
	testutil.MustExec(t, b,
		"INSERT INTO items VALUES (2, 'beta-b', 30)",
		"INSERT INTO items VALUES (3, 'gamma', 5)")

	report, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)

	assert.Equal(t, []string{"items"}, report.Tables)
	assert.Equal(t, 1, report.CopiedToSelf)
	assert.Equal(t, 1, report.CopiedToOther)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, engine.SideOther, report.Conflicts[0].Winner)
	assert.Equal(t, int64(2), report.Conflicts[0].ID)

	testutil.AssertGolden(t, "sync_items", a, "items")
	testutil.AssertGolden(t, "sync_items", b, "items")
}

func TestSyncWith_LastWriteWins(t *testing.T) {
	a, b := itemsPair(t)
	testutil.MustExec(t, a, "INSERT INTO items VALUES (1, 'A1', 1)")
	testutil.MustExec(t, b, "INSERT INTO items VALUES (1, 'B1', 2)")

	_, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)

	for _, e := range []*engine.Engine{a, b} {
		rows := testutil.MustQuery(t, e, "SELECT name, updated_at FROM items WHERE id = 1")
		require.Len(t, rows, 1)
		assert.Equal(t, "B1", rows[0]["name"])
		assert.Equal(t, int64(2), rows[0]["updated_at"])
	}
}

func TestSyncWith_TieGoesToSelf(t *testing.T) {
	a, b := itemsPair(t)
	testutil.MustExec(t, a, "INSERT INTO items VALUES (1, 'A1', 5)")
	testutil.MustExec(t, b, "INSERT INTO items VALUES (1, 'B1', 5)")

	report, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, engine.SideSelf, report.Conflicts[0].Winner)

	rows := testutil.MustQuery(t, b, "SELECT name FROM items WHERE id = 1")
	assert.Equal(t, "A1", rows[0]["name"])
}

func TestSyncWith_ModifiedAtFallback(t *testing.T) {
	a := testutil.OpenEngine(t, "a.db")
	b := testutil.OpenEngine(t, "b.db")
	const ddl = "CREATE TABLE docs (id TEXT PRIMARY KEY, body TEXT, modified_at TEXT)"
	testutil.MustExec(t, a, ddl, "INSERT INTO docs VALUES ('d1', 'new', '2024-03-02T00:00:00Z')")
	testutil.MustExec(t, b, ddl, "INSERT INTO docs VALUES ('d1', 'old', '2024-03-01T00:00:00Z')")

	report, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, engine.SideSelf, report.Conflicts[0].Winner)

	rows := testutil.MustQuery(t, b, "SELECT body FROM docs WHERE id = 'd1'")
	assert.Equal(t, "new", rows[0]["body"])
}

func TestSyncWith_Idempotent(t *testing.T) {
	a, b := itemsPair(t)
	testutil.MustExec(t, a, "INSERT INTO items VALUES (1, 'alpha', 10)")
	testutil.MustExec(t, b, "INSERT INTO items VALUES (1, 'alpha-b', 11)", "INSERT INTO items VALUES (2, 'beta', 1)")

	ctx := context.Background()
	_, err := a.SyncWith(ctx, b)
	require.NoError(t, err)
	firstA, firstB := checksum(t, a, "items"), checksum(t, b, "items")

	report, err := a.SyncWith(ctx, b)
	require.NoError(t, err)
	assert.False(t, report.Changed())
	assert.Equal(t, firstA, checksum(t, a, "items"))
	assert.Equal(t, firstB, checksum(t, b, "items"))
}

func TestSyncWith_Converges(t *testing.T) {
	a, b := itemsPair(t)
	testutil.MustExec(t, a,
		"INSERT INTO items VALUES (1, 'one', 3)",
		"INSERT INTO items VALUES (2, 'two', 9)",
		"INSERT INTO items VALUES (4, 'four', NULL)")
	testutil.MustExec(t, b,
		"INSERT INTO items VALUES (2, 'deux', 4)",
		"INSERT INTO items VALUES (3, 'trois', 1)",
		"INSERT INTO items VALUES (4, 'quatre', 2)")

	_, err := b.SyncWith(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, a, "items"), checksum(t, b, "items"))

	// NULL timestamp counts as 0, so b's row 4 wins.
	rows := testutil.MustQuery(t, a, "SELECT name FROM items WHERE id = 4")
	assert.Equal(t, "quatre", rows[0]["name"])
}

func TestSyncWith_MirrorsMissingTable(t *testing.T) {
	a := testutil.OpenEngine(t, "a.db")
	b := testutil.OpenEngine(t, "b.db")
	testutil.MustExec(t, a, testutil.ItemsDDL, "INSERT INTO items VALUES (1, 'a', 1)")

	report, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, []string{"items"}, report.CreatedOnOther)
	assert.Empty(t, report.CreatedOnSelf)
	assert.Equal(t, 1, report.CopiedToOther)

	tables, err := b.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"items"}, tables)
	assert.Equal(t, checksum(t, a, "items"), checksum(t, b, "items"))
}

func TestSyncWith_SkipsTablesWithoutID(t *testing.T) {
	a, b := itemsPair(t)
	testutil.MustExec(t, a, "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)", "INSERT INTO kv VALUES ('x', 'y')")

	report, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, []string{"kv"}, report.Skipped)
	assert.Equal(t, []string{"items"}, report.Tables)

	tables, err := b.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"items"}, tables, "skipped tables are not mirrored")
}

func TestSyncWith_IgnoresChangeLog(t *testing.T) {
	a, b := itemsPair(t)
	require.NoError(t, a.InstallTriggers(context.Background(), "items"))
	testutil.MustExec(t, a, "INSERT INTO items VALUES (1, 'a', 1)")

	report, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, []string{"items"}, report.Tables)

	tables, err := b.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"items"}, tables)
}

func TestSyncWith_NotifiesListeners(t *testing.T) {
	a, b := itemsPair(t)
	require.NoError(t, b.InstallTriggers(context.Background(), "items"))
	rec := &recorder{}
	b.Stream().Register(rec.listen)
	testutil.MustExec(t, a, "INSERT INTO items VALUES (1, 'a', 1)")

	_, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)

	events := rec.all()
	require.Len(t, events, 1)
	assert.Equal(t, "items", events[0].Table)
	assert.Equal(t, "a", events[0].Row["name"])
}

func TestSyncWith_IncomparableRollsBackBoth(t *testing.T) {
	a, b := itemsPair(t)
	testutil.MustExec(t, a,
		"CREATE TABLE a_first (id INTEGER PRIMARY KEY, v TEXT)",
		"INSERT INTO a_first VALUES (1, 'only in a')",
		"INSERT INTO items VALUES (1, 'x', 'not-a-time')")
	testutil.MustExec(t, b, "INSERT INTO items VALUES (1, 'y', 5)")

	_, err := a.SyncWith(context.Background(), b)
	require.Error(t, err)
	assert.True(t, engine.IsIncomparable(err))

	tables, err := b.Tables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"items"}, tables, "mirrored table rolled back")

	rows := testutil.MustQuery(t, b, "SELECT name FROM items WHERE id = 1")
	assert.Equal(t, "y", rows[0]["name"])
}

func TestSyncWith_TableResolverOverride(t *testing.T) {
	preferOther := engine.ResolverFunc(func(_ string, _, other row.Row, _ engine.Merger) (engine.Resolution, error) {
		return engine.Resolution{Row: other, Winner: engine.SideOther}, nil
	})
	a, b := itemsPair(t, engine.WithTableResolver("items", preferOther))
	testutil.MustExec(t, a, "INSERT INTO items VALUES (1, 'newer', 100)")
	testutil.MustExec(t, b, "INSERT INTO items VALUES (1, 'older', 1)")

	_, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)

	rows := testutil.MustQuery(t, a, "SELECT name FROM items WHERE id = 1")
	assert.Equal(t, "older", rows[0]["name"])
}

func TestSyncWith_TextIDs(t *testing.T) {
	a := testutil.OpenEngine(t, "a.db")
	b := testutil.OpenEngine(t, "b.db")
	const ddl = "CREATE TABLE notes (id TEXT PRIMARY KEY, body BLOB, updated_at REAL)"
	testutil.MustExec(t, a, ddl, "INSERT INTO notes VALUES ('n1', x'0102', 1.5)")
	testutil.MustExec(t, b, ddl, "INSERT INTO notes VALUES ('n2', x'03', 2.5)")

	_, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, checksum(t, a, "notes"), checksum(t, b, "notes"))

	rows := testutil.MustQuery(t, b, "SELECT body FROM notes WHERE id = 'n1'")
	assert.Equal(t, []byte{0x01, 0x02}, rows[0]["body"])
}

func TestChecksum_DiffersOnContent(t *testing.T) {
	a, b := itemsPair(t)
	testutil.MustExec(t, a, "INSERT INTO items VALUES (1, 'a', 1)")
	testutil.MustExec(t, b, "INSERT INTO items VALUES (1, 'b', 1)")
	assert.NotEqual(t, checksum(t, a, "items"), checksum(t, b, "items"))
}

func TestSyncWith_KeepsStoredClassOfDatetimeColumns(t *testing.T) {
	a := testutil.OpenEngine(t, "a.db")
	b := testutil.OpenEngine(t, "b.db")
	const ddl = "CREATE TABLE ev (id INTEGER PRIMARY KEY, name TEXT, updated_at DATETIME, done BOOLEAN)"
	testutil.MustExec(t, a, ddl,
		"INSERT INTO ev VALUES (1, 'x', '2024-01-01 10:00:00', 1)",
		"INSERT INTO ev VALUES (2, 'y', 1700000000, 0)")
	testutil.MustExec(t, b, ddl,
		"INSERT INTO ev VALUES (1, 'x-b', '2024-03-01 10:00:00', 0)",
		"INSERT INTO ev VALUES (3, 'z', '2024-02-01', 1)")

	report, err := a.SyncWith(context.Background(), b)
	require.NoError(t, err)
	assert.Len(t, report.Conflicts, 1)

	const q = `SELECT id, name,
		typeof(updated_at) AS ts_type, CAST(updated_at AS TEXT) AS ts,
		typeof(done) AS done_type
		FROM ev ORDER BY id`
	rowsA := testutil.MustQuery(t, a, q)
	rowsB := testutil.MustQuery(t, b, q)
	require.Len(t, rowsA, 3)
	assert.Equal(t, rowsA, rowsB)

	assert.Equal(t, "x-b", rowsA[0]["name"])
	assert.Equal(t, "2024-03-01 10:00:00", rowsA[0]["ts"])
	assert.Equal(t, "integer", rowsA[1]["ts_type"])
	assert.Equal(t, "1700000000", rowsA[1]["ts"])
	assert.Equal(t, "text", rowsA[2]["ts_type"])
	assert.Equal(t, "2024-02-01", rowsA[2]["ts"])
	assert.Equal(t, "integer", rowsA[2]["done_type"])

	assert.Equal(t, checksum(t, a, "ev"), checksum(t, b, "ev"))
}

func TestChecksum_SeesStoredClass(t *testing.T) {
	a := testutil.OpenEngine(t, "a.db")
	b := testutil.OpenEngine(t, "b.db")
	const ddl = "CREATE TABLE ev (id INTEGER PRIMARY KEY, updated_at TIMESTAMP)"
	testutil.MustExec(t, a, ddl, "INSERT INTO ev VALUES (1, '2024-01-01 10:00:00')")
	testutil.MustExec(t, b, ddl, "INSERT INTO ev VALUES (1, '2024-01-01 10:00:00+00:00')")

	assert.NotEqual(t, checksum(t, a, "ev"), checksum(t, b, "ev"))
}
