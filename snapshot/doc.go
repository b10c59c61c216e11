// Package snapshot captures a consistent, read-only view of every series
// aggregate and persists it. Readers pin the registry's epoch for the
// duration of a capture, so buckets drained concurrently are not
// recycled underneath them.
//
// Snapshot is decoupled from ingestion and from the journal. It only
// coordinates read visibility and the on-disk format.
package snapshot
