// Package scheduler runs the probe loop.
//
// The scheduler keeps every check record in a priority queue keyed by
// NextCheckAt. Each pass pops the records that are due, probes them through
// a bounded worker pool, commits each result to the store in one atomic
// read-modify-write, dispatches any notification and finally re-queues the
// surviving records by their new due time.
//
// The store stays the source of truth. A record deleted while its probe was
// in flight is dropped from the queue, and configuration changes made by
// reconciliation are picked up when the record is re-queued.
package scheduler
