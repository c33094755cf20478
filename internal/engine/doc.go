// Package engine runs sync rules: it reads import sources, applies a
// compiled rule to each imported key, commits the resulting objects and
// records every change in the activity log.
//
// RUN PHASES:
//
//  1. Fetch: every source the rule reads from is read to the end. A source
//     that fails aborts the run before anything is written.
//  2. Resolve: rows are grouped by key column value. For each key the rule
//     runs on a fresh object to find the object name, and again on the
//     stored object of that name when there is one.
//  3. Commit: changed objects are written to the object store, then the
//     matching create or modify entry is appended to the log.
//  4. Purge: rules with purge enabled delete stored objects of their type
//     that no key produced.
//
// Keys are processed in ascending order and properties in ascending
// priority, so two runs over the same input produce the same log.
//
// Problems confined to one key (no key value, no object name, a value the
// object rejects, an unresolved template choice) are collected in the
// Summary and do not stop the run.
//
// Replay rebuilds the object store from the log.
package engine
