package epoch

import "sync/atomic"

// Handle is a registered participant of a Collector.
// It is not safe for concurrent use.
type Handle struct {
	// epoch is the published Epoch; zero while unpinned.
	epoch atomic.Uint64

	collector *Collector
	bag       *bag
	guards    int
	pins      uint64
	released  bool
	pooled    bool
}

// Pin pins the handle and returns a guard. Pins nest; only the outermost
// pin publishes the global epoch.
func (h *Handle) Pin() Guard {
	h.guards++
	if h.guards == 1 {
		global := h.collector.Epoch()
		h.epoch.Store(uint64(global.pinned()))

		h.pins++
		if h.pins%pinsBetweenCollect == 0 {
			h.collector.collect()
		}
	}
	return Guard{handle: h}
}

// IsPinned reports whether the handle holds at least one guard.
func (h *Handle) IsPinned() bool { return h.guards > 0 }

// Collector returns the collector h is registered with.
func (h *Handle) Collector() *Collector { return h.collector }

// Unregister removes the participant. Its pending garbage moves to the
// global queue. If still pinned, removal happens on the last Unpin.
func (h *Handle) Unregister() {
	if h.released {
		return
	}
	h.released = true
	if h.guards == 0 {
		h.finalize()
	}
}

func (h *Handle) unpin() {
	h.guards--
	if h.guards > 0 {
		return
	}
	h.epoch.Store(0)

	switch {
	case h.released:
		h.finalize()
	case h.pooled:
		h.collector.release(h)
	}
}

func (h *Handle) repin() {
	if h.guards != 1 {
		return
	}
	global := h.collector.Epoch().pinned()
	if Epoch(h.epoch.Load()) != global {
		h.epoch.Store(uint64(global))
	}
}

func (h *Handle) retire(fn func()) {
	c := h.collector
	c.deferred.Add(1)
	for !h.bag.push(fn) {
		c.pushBag(h.bag)
		h.bag = bags.Get()
	}
}

func (h *Handle) flush() {
	c := h.collector
	if !h.bag.isEmpty() {
		c.pushBag(h.bag)
		h.bag = bags.Get()
	}
	c.flushes.Add(1)
	c.collect()
}

func (h *Handle) finalize() {
	c := h.collector
	if h.bag != nil {
		if h.bag.isEmpty() {
			bags.Put(h.bag)
		} else {
			c.pushBag(h.bag)
		}
		h.bag = nil
	}
	c.remove(h)
}
