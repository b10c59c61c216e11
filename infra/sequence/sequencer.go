package sequence

import "sync/atomic"

// Sequencer hands out strictly increasing sequence numbers for journal
// records and snapshots. Zero is never issued.
type Sequencer struct {
	last atomic.Uint64
}

// New creates a sequencer whose next value is start+1.
// On fresh start → start = 0
// On replay → start = last replayed seq
func New(start uint64) *Sequencer {
	s := &Sequencer{}
	s.last.Store(start)
	return s
}

func (s *Sequencer) Next() uint64 {
	return s.last.Add(1)
}

// Current returns the last issued sequence.
func (s *Sequencer) Current() uint64 {
	return s.last.Load()
}

// AdvanceTo raises the sequencer to at least v. Lower values are ignored,
// so replaying several sources in any order is safe.
func (s *Sequencer) AdvanceTo(v uint64) {
	for {
		cur := s.last.Load()
		if v <= cur || s.last.CompareAndSwap(cur, v) {
			return
		}
	}
}

// Reset forces the last issued value to v. Only call it before the
// sequencer is shared.
func (s *Sequencer) Reset(v uint64) {
	s.last.Store(v)
}
