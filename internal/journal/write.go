package journal

import (
	"context"
	"fmt"
	"time"
)

// Actions and statuses recorded in synchronization_events.
const (
	ActionSync = "sync"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is one row of synchronization_events.
type Event struct {
	ID        int64     `json:"id" yaml:"id"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	SourceDB  string    `json:"source_db" yaml:"source_db"`
	TargetDB  string    `json:"target_db" yaml:"target_db"`
	Action    string    `json:"action" yaml:"action"`
	Status    string    `json:"status" yaml:"status"`
	Detail    string    `json:"detail,omitempty" yaml:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Conflict is one row of synchronization_conflicts. RowID holds the
// canonical encoding of the row's id so integer and text ids both fit.
type Conflict struct {
	ID        int64     `json:"id" yaml:"id"`
	RunID     string    `json:"run_id" yaml:"run_id"`
	SourceDB  string    `json:"source_db" yaml:"source_db"`
	TargetDB  string    `json:"target_db" yaml:"target_db"`
	Table     string    `json:"table" yaml:"table"`
	RowID     string    `json:"row_id" yaml:"row_id"`
	Decision  string    `json:"decision" yaml:"decision"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// RecordEvent appends ev and returns its id. A zero Timestamp means now.
func (j *Journal) RecordEvent(ctx context.Context, ev Event) (int64, error) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	res, err := j.db.ExecContext(ctx, `
		INSERT INTO synchronization_events
		(run_id, source_db, target_db, action, status, detail, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ev.RunID,
		ev.SourceDB,
		ev.TargetDB,
		ev.Action,
		ev.Status,
		ev.Detail,
		ev.Timestamp.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record event: %w", err)
	}
	return id, nil
}

// RecordConflicts appends every conflict in one transaction.
func (j *Journal) RecordConflicts(ctx context.Context, conflicts []Conflict) error {
	if len(conflicts) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record conflicts: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO synchronization_conflicts
		(run_id, source_db, target_db, table_name, row_id, decision, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("record conflicts: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, c := range conflicts {
		ts := c.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := stmt.ExecContext(ctx,
			c.RunID, c.SourceDB, c.TargetDB, c.Table, c.RowID, c.Decision, ts.Unix(),
		); err != nil {
			return fmt.Errorf("record conflict %s/%s: %w", c.Table, c.RowID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record conflicts: %w", err)
	}
	return nil
}
