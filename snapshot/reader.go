package snapshot

import "reclaim/infra/epoch"

/*
Snapshot Reader

This is a thin adapter over an epoch.Handle.
Its only responsibility is to clearly mark:
- when a snapshot begins
- when it ends

Everything else (epoching, reclamation) is handled by the collector.
A Reader belongs to one goroutine.
*/

type Reader struct {
	handle *epoch.Handle
	guard  epoch.Guard
}

func NewReader(c *epoch.Collector) *Reader {
	return &Reader{handle: c.Register()}
}

// Begin marks the start of a consistent snapshot.
func (r *Reader) Begin() {
	r.guard = r.handle.Pin()
}

// End marks the end of a snapshot.
func (r *Reader) End() {
	r.guard.Unpin()
	r.guard = epoch.Guard{}
}

// Active reports whether a snapshot is in progress.
func (r *Reader) Active() bool { return r.handle.IsPinned() }

// Collector exposes the underlying collector for reclaimers.
func (r *Reader) Collector() *epoch.Collector {
	return r.handle.Collector()
}

// Close unregisters the reader.
func (r *Reader) Close() {
	r.handle.Unregister()
}
