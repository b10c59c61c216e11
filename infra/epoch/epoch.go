package epoch

// Epoch is a global or participant epoch.
// The low bit marks a pinned participant, so successive epochs differ by 2.
type Epoch uint64

const pinnedBit Epoch = 1

// Pinned reports whether the participant that published e is pinned.
func (e Epoch) Pinned() bool { return e&pinnedBit != 0 }

// Unpinned strips the pinned marker.
func (e Epoch) Unpinned() Epoch { return e &^ pinnedBit }

func (e Epoch) pinned() Epoch { return e | pinnedBit }

// Successor returns the next epoch.
func (e Epoch) Successor() Epoch { return e.Unpinned() + 2 }

// Since returns how many epochs e is ahead of older. Wraparound is fine.
func (e Epoch) Since(older Epoch) uint64 {
	return uint64(e.Unpinned()-older.Unpinned()) >> 1
}

// Value is the epoch number without the marker bit.
func (e Epoch) Value() uint64 { return uint64(e) >> 1 }
