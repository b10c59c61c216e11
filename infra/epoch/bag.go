package epoch

import "reclaim/infra/memory"

// maxDeferred bounds a local bag.
const maxDeferred = 64

// bag is a fixed-size buffer of retired work owned by one handle.
type bag struct {
	fns [maxDeferred]func()
	n   int
}

var bags = memory.NewPool(func() *bag { return &bag{} }).WithReset(func(b *bag) {
	clear(b.fns[:b.n])
	b.n = 0
})

// push adds fn; returns false if full.
func (b *bag) push(fn func()) bool {
	if b.n == maxDeferred {
		return false
	}
	b.fns[b.n] = fn
	b.n++
	return true
}

func (b *bag) isEmpty() bool { return b.n == 0 }

func (b *bag) len() int { return b.n }

// run executes every entry in retirement order and returns how many ran.
func (b *bag) run() int {
	n := b.n
	for i := 0; i < n; i++ {
		fn := b.fns[i]
		b.fns[i] = nil
		fn()
	}
	b.n = 0
	return n
}

// sealedBag is a bag stamped with the global epoch at sealing time.
type sealedBag struct {
	epoch Epoch
	bag   *bag
}

func (s *sealedBag) expired(global Epoch) bool {
	return global.Since(s.epoch) >= 2
}
