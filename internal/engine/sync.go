package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/litesync/internal/metrics"
	"github.com/roach88/litesync/internal/row"
)

// Conflict records one row that differed on both sides and how it resolved.
type Conflict struct {
	Table  string
	ID     any
	Winner Side
}

// Report summarizes a SyncWith call.
type Report struct {
	// Tables lists every table that was reconciled, sorted.
	Tables []string
	// Skipped lists tables without an id column.
	Skipped []string
	// CreatedOnSelf and CreatedOnOther list tables whose CREATE TABLE was
	// replayed on a side that lacked them.
	CreatedOnSelf  []string
	CreatedOnOther []string
	// CopiedToSelf and CopiedToOther count rows that existed on one side only.
	CopiedToSelf  int
	CopiedToOther int
	// Conflicts lists rows present on both sides with different contents.
	Conflicts []Conflict
}

// Changed reports whether the sync wrote anything.
func (r *Report) Changed() bool {
	return r.CopiedToSelf > 0 || r.CopiedToOther > 0 || len(r.Conflicts) > 0 ||
		len(r.CreatedOnSelf) > 0 || len(r.CreatedOnOther) > 0
}

// SyncWith reconciles every user table between e and other so that both end
// up holding the union of rows, with conflicts resolved per table.
//
// Both engines are committed once, after all tables are processed. Any error
// before that point rolls both back; only a failure of the second commit can
// leave the databases diverged. SyncWith is idempotent, so re-running it
// converges whatever remains.
func (e *Engine) SyncWith(ctx context.Context, other *Engine) (*Report, error) {
	start := time.Now()

	report, err := e.syncTables(ctx, other)
	if err != nil {
		if rbErr := e.Rollback(); rbErr != nil {
			e.logger.Error("rollback after failed sync", "db", e.path, "error", rbErr)
		}
		if rbErr := other.Rollback(); rbErr != nil {
			e.logger.Error("rollback after failed sync", "db", other.path, "error", rbErr)
		}
		return nil, err
	}

	if err := e.Commit(); err != nil {
		_ = other.Rollback()
		return nil, fmt.Errorf("sync commit %s: %w", e.path, err)
	}
	if err := other.Commit(); err != nil {
		return nil, fmt.Errorf("sync commit %s: %w", other.path, err)
	}

	metrics.SyncDurationSeconds.Observe(time.Since(start).Seconds())
	metrics.SyncRowsTotal.WithLabelValues(metrics.ToSelf).Add(float64(report.CopiedToSelf))
	metrics.SyncRowsTotal.WithLabelValues(metrics.ToOther).Add(float64(report.CopiedToOther))
	for _, c := range report.Conflicts {
		metrics.SyncConflictsTotal.WithLabelValues(c.Table).Inc()
	}

	e.logger.Info("sync complete",
		"self", e.path,
		"other", other.path,
		"tables", len(report.Tables),
		"to_self", report.CopiedToSelf,
		"to_other", report.CopiedToOther,
		"conflicts", len(report.Conflicts),
		"duration", time.Since(start),
	)
	return report, nil
}

func (e *Engine) syncTables(ctx context.Context, other *Engine) (*Report, error) {
	selfDefs, err := e.tableDefs(ctx)
	if err != nil {
		return nil, err
	}
	otherDefs, err := other.tableDefs(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	for _, name := range unionKeys(selfDefs, otherDefs) {
		if err := validateTable(name); err != nil {
			return nil, err
		}
		selfDef, inSelf := selfDefs[name]
		otherDef, inOther := otherDefs[name]

		ok, err := e.hasIDColumn(ctx, other, name, inSelf, inOther)
		if err != nil {
			return nil, err
		}
		if !ok {
			e.logger.Warn("skipping table without id column", "table", name)
			report.Skipped = append(report.Skipped, name)
			continue
		}

		if !inSelf {
			if err := e.createTable(ctx, name, otherDef); err != nil {
				return nil, err
			}
			report.CreatedOnSelf = append(report.CreatedOnSelf, name)
		}
		if !inOther {
			if err := other.createTable(ctx, name, selfDef); err != nil {
				return nil, err
			}
			report.CreatedOnOther = append(report.CreatedOnOther, name)
		}

		if err := e.syncTable(ctx, other, name, report); err != nil {
			return nil, err
		}
		report.Tables = append(report.Tables, name)
	}
	return report, nil
}

func (e *Engine) syncTable(ctx context.Context, other *Engine, table string, report *Report) error {
	selfRows, err := e.loadRows(ctx, table)
	if err != nil {
		return err
	}
	otherRows, err := other.loadRows(ctx, table)
	if err != nil {
		return err
	}

	resolver := e.resolverFor(table)
	for _, key := range unionKeys(selfRows, otherRows) {
		s, inSelf := selfRows[key]
		o, inOther := otherRows[key]

		switch {
		case inSelf && inOther:
			if row.Equal(s, o) {
				continue
			}
			res, err := resolver.Resolve(table, s, o, e.merger)
			if err != nil {
				return err
			}
			if err := e.upsert(ctx, table, res.Row); err != nil {
				return err
			}
			if err := other.upsert(ctx, table, res.Row); err != nil {
				return err
			}
			id, _ := s.ID()
			report.Conflicts = append(report.Conflicts, Conflict{Table: table, ID: id, Winner: res.Winner})
			e.logger.Debug("conflict resolved", "table", table, "id", id, "winner", res.Winner)
		case inSelf:
			if err := other.upsert(ctx, table, s); err != nil {
				return err
			}
			report.CopiedToOther++
		default:
			if err := e.upsert(ctx, table, o); err != nil {
				return err
			}
			report.CopiedToSelf++
		}
	}
	return nil
}

// tableDefs returns the CREATE TABLE statement of every user table.
func (e *Engine) tableDefs(ctx context.Context) (map[string]string, error) {
	rows, err := e.QueryRows(ctx, "SELECT name, sql FROM sqlite_master WHERE type='table'")
	if err != nil {
		return nil, fmt.Errorf("list tables of %s: %w", e.path, err)
	}
	defs := make(map[string]string, len(rows))
	for _, r := range rows {
		name, _ := r["name"].(string)
		if !isUserTable(name) {
			continue
		}
		def, _ := r["sql"].(string)
		defs[name] = def
	}
	return defs, nil
}

// Tables returns the sorted names of every user table.
func (e *Engine) Tables(ctx context.Context) ([]string, error) {
	defs, err := e.tableDefs(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(defs), nil
}

// hasIDColumn checks that every side holding table exposes an id column.
func (e *Engine) hasIDColumn(ctx context.Context, other *Engine, table string, inSelf, inOther bool) (bool, error) {
	if inSelf {
		ok, err := e.hasColumn(ctx, table, row.IDColumn)
		if err != nil || !ok {
			return false, err
		}
	}
	if inOther {
		ok, err := other.hasColumn(ctx, table, row.IDColumn)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (e *Engine) hasColumn(ctx context.Context, table, column string) (bool, error) {
	cols, err := tableColumns(ctx, e, table)
	if err != nil {
		return false, err
	}
	for _, c := range cols {
		if c == column {
			return true, nil
		}
	}
	return false, nil
}

// readTable returns every row of table with values in their stored class.
func (e *Engine) readTable(ctx context.Context, table string) ([]row.Row, error) {
	cols, err := tableColumns(ctx, e, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s has no columns in %s", table, e.path)
	}
	return e.QueryRows(ctx, selectRaw(table, cols))
}

// createTable replays another engine's CREATE TABLE statement. Only table
// creation is mirrored; existing tables are never altered.
func (e *Engine) createTable(ctx context.Context, table, def string) error {
	if strings.TrimSpace(def) == "" {
		return fmt.Errorf("no definition for table %s", table)
	}
	if _, err := e.Exec(ctx, def); err != nil {
		return fmt.Errorf("mirror table %s into %s: %w", table, e.path, err)
	}
	e.logger.Info("mirrored table definition", "db", e.path, "table", table)
	return nil
}

// loadRows reads every row of table keyed by its canonical id.
func (e *Engine) loadRows(ctx context.Context, table string) (map[string]row.Row, error) {
	rows, err := e.readTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("load %s from %s: %w", table, e.path, err)
	}
	out := make(map[string]row.Row, len(rows))
	for _, r := range rows {
		id, ok := r.ID()
		if !ok || id == nil {
			return nil, &Error{Code: ErrCodeMissingID, Message: "row has NULL id", Table: table}
		}
		key, err := row.Key(id)
		if err != nil {
			return nil, fmt.Errorf("key %s row: %w", table, err)
		}
		out[key] = r
	}
	return out, nil
}

// upsert inserts r or, if its id exists, updates every other column.
func (e *Engine) upsert(ctx context.Context, table string, r row.Row) error {
	cols := r.Columns()
	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	var sets []string
	for i, c := range cols {
		if err := validateColumn(c); err != nil {
			return err
		}
		quoted[i] = quote(c)
		marks[i] = "?"
		args[i] = r[c]
		if c != row.IDColumn {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", quote(c), quote(c)))
		}
	}

	action := "DO NOTHING"
	if len(sets) > 0 {
		action = "DO UPDATE SET " + strings.Join(sets, ", ")
	}
	stmt := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT("id") %s`,
		quote(table), strings.Join(quoted, ", "), strings.Join(marks, ", "), action)

	if _, err := e.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("upsert into %s.%s: %w", e.path, table, err)
	}
	return nil
}

// Checksum returns a digest of every row in table, independent of row order.
// Two engines that have converged return the same checksum for each table.
func (e *Engine) Checksum(ctx context.Context, table string) (string, error) {
	if err := validateTable(table); err != nil {
		return "", err
	}
	rows, err := e.readTable(ctx, table)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", table, err)
	}
	return row.Checksum(rows)
}

func unionKeys[V any](a, b map[string]V) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		seen[k] = struct{}{}
	}
	for k := range b {
		seen[k] = struct{}{}
	}
	return sortedKeys(seen)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
