package epoch

import "sync/atomic"

type node struct {
	sealed sealedBag
	next   atomic.Pointer[node]
}

// queue is a lock-free MPMC FIFO of sealed bags (Michael-Scott).
// head always points at a sentinel; the first live entry is head.next.
type queue struct {
	head atomic.Pointer[node]
	_    [56]byte
	tail atomic.Pointer[node]
	_    [56]byte
	size atomic.Int64
}

func newQueue() *queue {
	q := &queue{}
	sentinel := &node{}
	q.head.Store(sentinel)
	q.tail.Store(sentinel)
	return q
}

func (q *queue) push(s sealedBag) {
	n := &node{sealed: s}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if tail != q.tail.Load() {
			continue
		}
		if next != nil {
			// tail is lagging, help it along
			q.tail.CompareAndSwap(tail, next)
			continue
		}
		if tail.next.CompareAndSwap(nil, n) {
			q.tail.CompareAndSwap(tail, n)
			q.size.Add(1)
			return
		}
	}
}

// tryPopIf pops the oldest entry only if pred accepts it.
// pred must only read the epoch; the bag may be running elsewhere.
func (q *queue) tryPopIf(pred func(*sealedBag) bool) (sealedBag, bool) {
	for {
		head := q.head.Load()
		next := head.next.Load()
		if next == nil {
			return sealedBag{}, false
		}
		if !pred(&next.sealed) {
			return sealedBag{}, false
		}
		if q.head.CompareAndSwap(head, next) {
			if tail := q.tail.Load(); tail == head {
				q.tail.CompareAndSwap(tail, next)
			}
			q.size.Add(-1)
			return next.sealed, true
		}
	}
}

func (q *queue) len() int64 { return q.size.Load() }
