package bucket

import (
	"context"
	"sync/atomic"

	"reclaim/infra/epoch"
	"reclaim/infra/memory"
)

// blocks is the collector shared by buckets created with New. Nothing
// outside this package pins it, so ClearWith cannot wait on a caller.
var blocks = epoch.NewCollector()

// Bucket is a concurrent append-only collection.
type Bucket[T any] struct {
	tail      atomic.Pointer[block[T]]
	collector *epoch.Collector
	pool      *memory.Pool[block[T]]
}

// New returns an empty bucket.
func New[T any]() *Bucket[T] {
	return NewWithCollector[T](blocks)
}

// NewWithCollector returns an empty bucket whose blocks are protected by c.
// ClearWith must not be called while the caller holds a guard of c.
func NewWithCollector[T any](c *epoch.Collector) *Bucket[T] {
	return &Bucket[T]{
		collector: c,
		pool: memory.NewPool(func() *block[T] { return &block[T]{} }).
			WithReset(func(b *block[T]) { b.reset() }),
	}
}

// Push appends v. It is safe for concurrent use and never blocks.
func (b *Bucket[T]) Push(v T) {
	g := b.collector.Pin()
	defer g.Unpin()

	for {
		tail := b.tail.Load()
		if tail != nil && tail.push(v) {
			return
		}

		// empty bucket or full tail: publish a new block already holding v
		blk := b.pool.Get()
		blk.prev = tail
		blk.push(v)
		if b.tail.CompareAndSwap(tail, blk) {
			return
		}
		// never published, safe to reuse right away
		b.pool.Put(blk)
	}
}

// chain returns the live blocks oldest first. Callers must be pinned.
func chain[T any](tail *block[T]) []*block[T] {
	var out []*block[T]
	for blk := tail; blk != nil; blk = blk.prev {
		out = append(out, blk)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Data returns a copy of every visible value in push order.
func (b *Bucket[T]) Data() []T {
	var out []T
	b.DataWith(func(vs []T) { out = append(out, vs...) })
	return out
}

// DataWith calls fn with each block's visible values, oldest first.
// The slice is only valid for the duration of the call.
func (b *Bucket[T]) DataWith(fn func([]T)) {
	g := b.collector.Pin()
	defer g.Unpin()

	for _, blk := range chain(b.tail.Load()) {
		if vs := blk.data(); len(vs) > 0 {
			fn(vs)
		}
	}
}

// Len returns the number of visible values.
func (b *Bucket[T]) Len() int {
	n := 0
	b.DataWith(func(vs []T) { n += len(vs) })
	return n
}

// IsEmpty reports whether no value is visible.
func (b *Bucket[T]) IsEmpty() bool {
	return b.Len() == 0
}

// Clear drops every value. Pushes racing with Clear may land in the
// dropped blocks and are discarded with them.
func (b *Bucket[T]) Clear() {
	g := b.collector.Pin()
	defer g.Unpin()

	for blk := b.tail.Swap(nil); blk != nil; {
		prev := blk.prev
		g.Retire(b.pool, blk)
		blk = prev
	}
}

// ClearWith detaches every value and hands it to fn block by block,
// oldest first. Pushes that started before the detach are waited for,
// so each pushed value is seen by exactly one ClearWith.
func (b *Bucket[T]) ClearWith(fn func([]T)) {
	tail := b.tail.Swap(nil)
	if tail == nil {
		return
	}

	// Background never cancels, so this only returns once every guard
	// that could have seen tail is gone.
	_ = b.collector.Synchronize(context.Background())

	detached := chain(tail)
	for _, blk := range detached {
		if vs := blk.data(); len(vs) > 0 {
			fn(vs)
		}
	}
	for _, blk := range detached {
		b.pool.Put(blk)
	}
}
