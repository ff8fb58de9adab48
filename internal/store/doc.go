// Package store persists the check records that drive Peek.
//
// The main components are:
//
//   - [Store]: interface for record persistence and atomic state updates
//   - [MemoryStore]: in-memory implementation used by default and in tests
//   - [CheckRecord]: one monitored endpoint with its configuration and state
//
// A SQLite implementation lives in the sqlite subpackage.
//
// The scheduler keeps a working copy of every record for ordering, but the
// store is the source of truth: state is committed through
// [Store.UpdateState] so a concurrent reconciliation or deletion is never
// overwritten with stale data.
package store
