package epoch

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// pinsBetweenCollect is how often a pin triggers a collection step.
	pinsBetweenCollect = 128
	// collectSteps bounds how many sealed bags one collection step runs.
	collectSteps = 8
	// maxIdleHandles bounds the handle pool behind Collector.Pin.
	maxIdleHandles = 256
)

// Collector owns a global epoch, its participants and the queue of
// sealed garbage. The zero value is not usable; call NewCollector.
type Collector struct {
	epoch atomic.Uint64
	_     [56]byte

	mu      sync.Mutex
	handles atomic.Pointer[[]*Handle]

	idleMu sync.Mutex
	idle   []*Handle

	queue *queue

	deferred  atomic.Uint64
	reclaimed atomic.Uint64
	advances  atomic.Uint64
	flushes   atomic.Uint64
}

// Stats is a point-in-time view of a collector.
type Stats struct {
	Epoch        uint64
	Participants int
	Pinned       int
	QueuedBags   int64
	Deferred     uint64
	Reclaimed    uint64
	Advances     uint64
	Flushes      uint64
}

func NewCollector() *Collector {
	c := &Collector{queue: newQueue()}
	empty := make([]*Handle, 0)
	c.handles.Store(&empty)
	return c
}

var defaultCollector = NewCollector()

// Default returns the process-wide collector used by Pin.
func Default() *Collector { return defaultCollector }

// Pin pins a pooled handle of the default collector.
func Pin() Guard { return defaultCollector.Pin() }

// Register adds a participant. The handle must only be used by one
// goroutine at a time and should be released with Unregister.
func (c *Collector) Register() *Handle {
	h := &Handle{collector: c, bag: bags.Get()}

	c.mu.Lock()
	old := c.participants()
	next := make([]*Handle, len(old), len(old)+1)
	copy(next, old)
	next = append(next, h)
	c.handles.Store(&next)
	c.mu.Unlock()

	return h
}

// Pin borrows an idle handle (registering one if none is idle) and pins it.
// The handle goes back to the pool on the outermost Unpin.
func (c *Collector) Pin() Guard {
	return c.acquire().Pin()
}

func (c *Collector) acquire() *Handle {
	c.idleMu.Lock()
	if n := len(c.idle); n > 0 {
		h := c.idle[n-1]
		c.idle[n-1] = nil
		c.idle = c.idle[:n-1]
		c.idleMu.Unlock()
		return h
	}
	c.idleMu.Unlock()

	h := c.Register()
	h.pooled = true
	return h
}

func (c *Collector) release(h *Handle) {
	c.idleMu.Lock()
	if len(c.idle) < maxIdleHandles {
		c.idle = append(c.idle, h)
		c.idleMu.Unlock()
		return
	}
	c.idleMu.Unlock()
	h.Unregister()
}

func (c *Collector) participants() []*Handle {
	if p := c.handles.Load(); p != nil {
		return *p
	}
	return nil
}

func (c *Collector) remove(h *Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.participants()
	next := make([]*Handle, 0, len(old))
	for _, p := range old {
		if p != h {
			next = append(next, p)
		}
	}
	c.handles.Store(&next)
}

// Epoch returns the current global epoch.
func (c *Collector) Epoch() Epoch {
	return Epoch(c.epoch.Load())
}

// pushBag seals b with the current global epoch.
func (c *Collector) pushBag(b *bag) {
	c.queue.push(sealedBag{epoch: c.Epoch(), bag: b})
}

// tryAdvance moves the global epoch forward if every pinned participant
// has observed it, and returns the (possibly new) global epoch.
func (c *Collector) tryAdvance() Epoch {
	global := c.Epoch()
	for _, h := range c.participants() {
		e := Epoch(h.epoch.Load())
		if e.Pinned() && e.Unpinned() != global {
			return global
		}
	}

	next := global.Successor()
	if c.epoch.CompareAndSwap(uint64(global), uint64(next)) {
		c.advances.Add(1)
		return next
	}
	return c.Epoch()
}

// collect tries to advance and then runs up to collectSteps expired bags.
func (c *Collector) collect() {
	global := c.tryAdvance()
	expired := func(s *sealedBag) bool { return s.expired(global) }

	for i := 0; i < collectSteps; i++ {
		s, ok := c.queue.tryPopIf(expired)
		if !ok {
			return
		}
		n := s.bag.run()
		bags.Put(s.bag)
		c.reclaimed.Add(uint64(n))
	}
}

// sealIdle moves the pending garbage of idle pooled handles to the queue.
func (c *Collector) sealIdle() {
	c.idleMu.Lock()
	defer c.idleMu.Unlock()
	for _, h := range c.idle {
		if !h.bag.isEmpty() {
			c.pushBag(h.bag)
			h.bag = bags.Get()
		}
	}
}

// Synchronize blocks until every guard pinned before the call has been
// released and the work deferred through guards already released when it
// was called (pooled ones included) has run. Work still sitting in the bag
// of a registered handle that has not flushed is not covered. It must not
// be called while the calling goroutine holds a guard of c.
func (c *Collector) Synchronize(ctx context.Context) error {
	done := make(chan struct{})

	c.sealIdle()

	h := c.Register()
	defer h.Unregister()

	g := h.Pin()
	g.Defer(func() { close(done) })
	g.Flush()
	g.Unpin()

	for spins := 0; ; spins++ {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		g = h.Pin()
		g.Flush()
		g.Unpin()

		if spins < 64 {
			runtime.Gosched()
		} else {
			time.Sleep(50 * time.Microsecond)
		}
	}
}

func (c *Collector) Stats() Stats {
	s := Stats{
		Epoch:      c.Epoch().Value(),
		QueuedBags: c.queue.len(),
		Deferred:   c.deferred.Load(),
		Reclaimed:  c.reclaimed.Load(),
		Advances:   c.advances.Load(),
		Flushes:    c.flushes.Load(),
	}
	for _, h := range c.participants() {
		s.Participants++
		if Epoch(h.epoch.Load()).Pinned() {
			s.Pinned++
		}
	}
	return s
}
