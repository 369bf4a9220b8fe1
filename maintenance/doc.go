// Package maintenance runs the periodic jobs that keep every table of every
// tenant searchable and compact.
//
// Two jobs walk the storage root independently:
//
//   - reindex rebuilds the vector index of each generative table that changed
//     since its last build. The file table has no index and is skipped.
//   - optimize compacts storage and prunes row versions older than the
//     retention window, for generative tables and the file table alike.
//
// Each job holds its own non-blocking lock for the whole pass. When the lock
// is held by another process the pass is skipped, not queued. A failure on
// one table is logged and counted and the pass moves on.
package maintenance
