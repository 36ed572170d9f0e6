// Package runner drives one-shot and watched syncs between two database
// files.
//
// Run is the entry point orchestration code calls: it emits exactly one
// sync.start event before touching either file and exactly one terminal
// sync.end or sync.error event, records the outcome in the journal, and
// returns every failure to the caller.
//
// Watch and WatchPairs poll file fingerprints and call Run when a file
// changes. A failed run is logged and retried on the next tick.
package runner
