// Package engine implements the litesync SQLite engine: serialized statement
// execution, trigger-driven change notification, secondary indexes, and
// bidirectional table sync between two engines.
//
// ARCHITECTURE:
//
// One connection, one mutex, one open transaction:
// Each Engine pins its *sql.DB to a single connection. Every statement runs
// inside the engine's open transaction, which is begun lazily and ended only
// by Commit or Rollback. The engine mutex serializes statements from
// concurrent goroutines; it is not held while callers consume query results.
//
// Change notification:
// InstallTriggers creates AFTER INSERT/UPDATE/DELETE triggers that append
// (op, table, id) to the _litesync_changes log table. After every Exec the
// engine drains that log, re-reads each row by id and publishes a ChangeEvent
// to its changestream.Stream before Exec returns. Each tracked statement runs
// under a savepoint; a listener error rolls the statement back to it and
// becomes Exec's error. Deleted rows degrade to {"id": <rowid>}.
//
// Exec holds the engine's write lock until its listeners return. Listeners
// may read through the engine (they see the uncommitted row) but must not
// Exec, Commit or Rollback on it.
//
// The change log lives in the database file, so the drain cannot tell who
// wrote a row. Entries left by another process, or by an engine without
// tracking that wrote after triggers were installed, are delivered on the
// next tracked Exec as if this engine had written them.
//
// Reads used for sync and checksums select each column as +"col", which drops
// the declared type so the driver returns values in their stored class
// (DATETIME text stays text, integers stay integers).
//
// Sync:
// SyncWith diffs every user table between two engines, resolves rows that
// differ on both sides with the table's Resolver (last-write-wins on
// updated_at by default), upserts the result into both, and commits each side
// once at the end. Absence on one side means "not yet replicated"; deletes
// never propagate.
package engine
