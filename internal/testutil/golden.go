package testutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/roach88/litesync/internal/engine"
	"github.com/roach88/litesync/internal/row"
)

// DumpTables renders every row of the named tables, ordered by id, one
// canonical JSON object per line under a "# table" header.
func DumpTables(t *testing.T, e *engine.Engine, tables ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, table := range tables {
		rows, err := e.QueryRows(context.Background(), `SELECT * FROM "`+table+`" ORDER BY "id"`)
		require.NoError(t, err)

		buf.WriteString("# " + table + "\n")
		for _, r := range rows {
			b, err := row.MarshalCanonical(r)
			require.NoError(t, err)
			buf.Write(b)
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// AssertGolden compares the dump of tables against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/engine -update
func AssertGolden(t *testing.T, name string, e *engine.Engine, tables ...string) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, DumpTables(t, e, tables...))
}
