// Package schema reconciles two overlapping key/value trees under an explicit
// conflict strategy, with snapshot-based rollback.
//
// Strategies:
//
//	merge      keep the current value on conflict, add keys that are new
//	overwrite  replace the current value (whole subtree for mappings)
//	manual     refuse any conflict with a *ConflictError
//
// Every keep/overwrite/refuse decision is recorded with its dotted path
// ("a.x") so a caller can reconstruct which leaf lost data under merge.
//
// Rollback state is a per-Mapper snapshot stack. Independent mappers never
// share rollback state, and transactions on one mapper may nest. A Mapper is
// not safe for concurrent use; callers serialize access.
package schema
