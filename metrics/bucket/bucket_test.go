package bucket

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBucketIsEmpty(t *testing.T) {
	b := New[int]()
	assert.True(t, b.IsEmpty())
	assert.Zero(t, b.Len())
	assert.Empty(t, b.Data())
}

func TestPushKeepsOrderForSingleWriter(t *testing.T) {
	b := New[int]()
	const n = blockSize*3 + 7
	for i := 0; i < n; i++ {
		b.Push(i)
	}

	got := b.Data()
	require.Len(t, got, n)
	for i, v := range got {
		require.Equal(t, i, v)
	}
	assert.False(t, b.IsEmpty())
}

func TestDataWithVisitsBlocksOldestFirst(t *testing.T) {
	b := New[int]()
	for i := 0; i < blockSize+1; i++ {
		b.Push(i)
	}

	var sizes []int
	var first []int
	b.DataWith(func(vs []int) {
		sizes = append(sizes, len(vs))
		first = append(first, vs[0])
	})
	assert.Equal(t, []int{blockSize, 1}, sizes)
	assert.Equal(t, []int{0, blockSize}, first)
}

func TestClearEmptiesBucket(t *testing.T) {
	b := New[string]()
	for i := 0; i < 100; i++ {
		b.Push("x")
	}
	b.Clear()
	assert.True(t, b.IsEmpty())

	b.Push("y")
	assert.Equal(t, []string{"y"}, b.Data())
}

func TestClearWithDrainsInOrder(t *testing.T) {
	b := New[int]()
	for i := 0; i < 150; i++ {
		b.Push(i)
	}

	var got []int
	b.ClearWith(func(vs []int) { got = append(got, vs...) })
	require.Len(t, got, 150)
	for i, v := range got {
		require.Equal(t, i, v)
	}
	assert.True(t, b.IsEmpty())

	calls := 0
	b.ClearWith(func([]int) { calls++ })
	assert.Zero(t, calls)
}

func TestConcurrentPushesAreAllVisible(t *testing.T) {
	const (
		writers   = 16
		perWriter = 5000
	)
	b := New[uint64]()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Push(uint64(w*perWriter + i))
			}
		}(w)
	}
	wg.Wait()

	got := b.Data()
	require.Len(t, got, writers*perWriter)
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		require.Equal(t, uint64(i), v)
	}
}

func TestClearWithRacingWritersSeesEachValueOnce(t *testing.T) {
	const (
		writers   = 8
		perWriter = 20000
	)
	b := New[int]()

	seen := make([]int, writers*perWriter)
	drain := func(vs []int) {
		for _, v := range vs {
			seen[v]++
		}
	}

	var stop atomic.Bool
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for !stop.Load() {
			b.ClearWith(drain)
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Push(w*perWriter + i)
			}
		}(w)
	}
	wg.Wait()
	stop.Store(true)
	<-drained
	b.ClearWith(drain)

	for v, n := range seen {
		require.Equalf(t, 1, n, "value %d seen %d times", v, n)
	}
}

func TestBlocksAreRecycled(t *testing.T) {
	b := New[int]()
	for i := 0; i < blockSize*2; i++ {
		b.Push(i)
	}
	b.ClearWith(func([]int) {})

	blk := b.pool.Get()
	assert.Zero(t, blk.write.Load())
	assert.Zero(t, blk.read.Load())
	assert.Nil(t, blk.prev)
	assert.Zero(t, blk.len())
}

func TestBlockPrefixIgnoresGaps(t *testing.T) {
	var blk block[int]
	blk.push(1)
	blk.push(2)
	// claim slot 2 without writing it, then write slot 3
	blk.write.Add(1)
	blk.push(4)

	assert.Equal(t, []int{1, 2}, blk.data())
	blk.slots[2] = 3
	blk.read.Or(1 << 2)
	assert.Equal(t, []int{1, 2, 3, 4}, blk.data())
}

func TestFullBlockRejectsPush(t *testing.T) {
	var blk block[int]
	for i := 0; i < blockSize; i++ {
		require.True(t, blk.push(i))
	}
	assert.False(t, blk.push(blockSize))
	assert.Equal(t, blockSize, blk.len())
}
