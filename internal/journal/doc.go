// Package journal records sync runs and their resolved conflicts in a
// separate SQLite database.
//
// Two append-only tables:
//   - synchronization_events: one row per run outcome (success or failure)
//   - synchronization_conflicts: one row per conflicting row that was resolved
//
// Listing is newest first by insertion order, never by wall-clock timestamp,
// so results are stable when several runs land in the same second.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package journal
