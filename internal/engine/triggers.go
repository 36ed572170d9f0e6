package engine

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/litesync/internal/changestream"
	"github.com/roach88/litesync/internal/metrics"
	"github.com/roach88/litesync/internal/row"
)

// changeLogTable receives one row per trigger firing. It is drained after
// every Exec and never synced.
const changeLogTable = internalPrefix + "changes"

// changeLogDDL creates the change log. row_id is untyped so integer and text
// ids round-trip with their original storage class.
const changeLogDDL = `CREATE TABLE IF NOT EXISTS ` + changeLogTable + ` (
    seq    INTEGER PRIMARY KEY,
    op     TEXT NOT NULL,
    tbl    TEXT NOT NULL,
    row_id
)`

// triggerDDL returns the AFTER INSERT/UPDATE/DELETE trigger statements that
// record mutations of table into the change log.
func triggerDDL(table string) []string {
	trig := func(suffix, event string, op changestream.Operation, alias string) string {
		return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s AFTER %s ON %s
BEGIN
    INSERT INTO %s(op, tbl, row_id) VALUES ('%s', '%s', %s.id);
END`, quote(table+"_litesync_"+suffix), event, quote(table), changeLogTable, op, table, alias)
	}
	return []string{
		trig("ai", "INSERT", changestream.OpInsert, "NEW"),
		trig("au", "UPDATE", changestream.OpUpdate, "NEW"),
		trig("ad", "DELETE", changestream.OpDelete, "OLD"),
	}
}

// InstallTriggers installs change triggers on table and commits immediately.
// It is idempotent. The triggers live in the database file, so later engines
// opened on the same file keep delivering events.
func (e *Engine) InstallTriggers(ctx context.Context, table string) error {
	if err := validateTable(table); err != nil {
		return err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.mu.Lock()
	defer e.mu.Unlock()

	tx, err := e.txLocked(ctx)
	if err != nil {
		return err
	}

	stmts := append([]string{changeLogDDL}, triggerDDL(table)...)
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("install triggers on %s: %w", table, err)
		}
	}
	if err := e.commitLocked(); err != nil {
		return fmt.Errorf("install triggers on %s: %w", table, err)
	}

	e.tracking = true
	e.logger.Debug("change triggers installed", "db", e.path, "table", table)
	return nil
}

type pendingChange struct {
	seq   int64
	op    string
	table string
	rowID any
}

// drainLocked reads and clears the change log, re-reading each changed row.
// Entries written by other connections are drained too. Must be called with
// e.mu held.
func (e *Engine) drainLocked(ctx context.Context, tx *sql.Tx) ([]changestream.ChangeEvent, error) {
	rows, err := tx.QueryContext(ctx, `SELECT seq, op, tbl, row_id FROM `+changeLogTable+` ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("read change log: %w", err)
	}

	var pending []pendingChange
	for rows.Next() {
		var p pendingChange
		if err := rows.Scan(&p.seq, &p.op, &p.table, &p.rowID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan change log: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate change log: %w", err)
	}
	rows.Close()

	if len(pending) == 0 {
		return nil, nil
	}

	last := pending[len(pending)-1].seq
	if _, err := tx.ExecContext(ctx, `DELETE FROM `+changeLogTable+` WHERE seq <= ?`, last); err != nil {
		return nil, fmt.Errorf("clear change log: %w", err)
	}

	events := make([]changestream.ChangeEvent, 0, len(pending))
	for _, p := range pending {
		r, err := e.selectByIDLocked(ctx, tx, p.table, p.rowID)
		if err != nil {
			return nil, err
		}
		if r == nil {
			r = row.Row{row.IDColumn: p.rowID}
		}
		events = append(events, changestream.ChangeEvent{
			Seq:       e.clock.Next(),
			Operation: changestream.Operation(p.op),
			Table:     p.table,
			Row:       r,
		})
	}
	return events, nil
}

// selectByIDLocked re-reads a full row by id, returning nil if it no longer exists.
func (e *Engine) selectByIDLocked(ctx context.Context, tx *sql.Tx, table string, id any) (row.Row, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	cols, err := tableColumns(ctx, tx, table)
	if err != nil {
		return nil, err
	}
	rows, err := tx.QueryContext(ctx, selectRaw(table, cols)+` WHERE "id" = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("re-read %s row: %w", table, err)
	}
	found, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// publish delivers events in order, stopping at the first listener error.
func (e *Engine) publish(events []changestream.ChangeEvent) error {
	for _, ev := range events {
		metrics.ChangeEventsTotal.WithLabelValues(string(ev.Operation)).Inc()
		if err := e.stream.Notify(ev); err != nil {
			return err
		}
	}
	return nil
}
