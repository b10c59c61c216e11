package bucket

import (
	"math/bits"
	"sync/atomic"
)

const blockSize = 64

type block[T any] struct {
	// write is the next slot to claim; it keeps counting past blockSize.
	write atomic.Uint64
	// read has bit i set once slots[i] is written.
	read atomic.Uint64
	// prev is the next older block, fixed before the block is published.
	prev  *block[T]
	slots [blockSize]T
}

// push stores v; returns false if the block is full.
func (b *block[T]) push(v T) bool {
	i := b.write.Add(1) - 1
	if i >= blockSize {
		return false
	}
	b.slots[i] = v
	b.read.Or(1 << i)
	return true
}

// len is the length of the written prefix.
func (b *block[T]) len() int {
	return bits.TrailingZeros64(^b.read.Load())
}

func (b *block[T]) data() []T {
	return b.slots[:b.len()]
}

func (b *block[T]) reset() {
	n := min(b.write.Load(), blockSize)
	clear(b.slots[:n])
	b.write.Store(0)
	b.read.Store(0)
	b.prev = nil
}
