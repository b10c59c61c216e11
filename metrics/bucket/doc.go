// Package bucket provides an append-only, lock-free collection for
// metric samples: many goroutines push, one aggregator occasionally
// reads or drains.
//
// Values live in fixed blocks of 64 slots chained newest to oldest.
// Push claims a slot with an atomic add and marks it in the block's
// written bitmap; a full block is replaced by a new tail with a single
// CAS. Pushes and reads pin the bucket's epoch collector, so a detached
// block is only recycled once no goroutine can still be touching it.
package bucket
