package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultListLimit is the number of events ListEvents returns for limit <= 0.
const DefaultListLimit = 10

// ListEvents returns the most recent events, newest first.
//
// Returns an empty slice (not nil) if the journal has no events.
func (j *Journal) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, run_id, source_db, target_db, action, status, detail, timestamp
		FROM synchronization_events
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var (
			ev Event
			ts int64
		)
		if err := rows.Scan(&ev.ID, &ev.RunID, &ev.SourceDB, &ev.TargetDB,
			&ev.Action, &ev.Status, &ev.Detail, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Timestamp = time.Unix(ts, 0).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// ListConflicts returns the conflicts recorded for runID in insertion order.
// An empty runID lists every conflict.
func (j *Journal) ListConflicts(ctx context.Context, runID string) ([]Conflict, error) {
	query := `
		SELECT id, run_id, source_db, target_db, table_name, row_id, decision, timestamp
		FROM synchronization_conflicts`
	var args []any
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id ASC`

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	conflicts := []Conflict{}
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conflicts: %w", err)
	}
	return conflicts, nil
}

func scanConflict(rows *sql.Rows) (Conflict, error) {
	var (
		c  Conflict
		ts int64
	)
	if err := rows.Scan(&c.ID, &c.RunID, &c.SourceDB, &c.TargetDB,
		&c.Table, &c.RowID, &c.Decision, &ts); err != nil {
		return Conflict{}, fmt.Errorf("scan conflict: %w", err)
	}
	c.Timestamp = time.Unix(ts, 0).UTC()
	return c, nil
}
