package retention

import (
	"context"
	"fmt"

	"reclaim/snapshot"
)

// Checkpointer reports the latest persisted snapshot.
type Checkpointer interface {
	Latest() *snapshot.Snapshot
}

type Outbox interface {
	PruneAcked(upTo uint64) (int, error)
}

type Journal interface {
	TruncateBefore(seq uint64) (int, error)
}

// Result counts what one pass removed.
type Result struct {
	SnapshotSeq     uint64
	OutboxEntries   int
	JournalSegments int
}

type Pruner struct {
	checkpoints Checkpointer
	outbox      Outbox
	journal     Journal
}

// NewPruner builds a pruner. outbox and journal may be nil.
func NewPruner(c Checkpointer, outbox Outbox, journal Journal) *Pruner {
	return &Pruner{checkpoints: c, outbox: outbox, journal: journal}
}

// Prune runs one retention pass. Nothing is removed before the first
// snapshot exists.
func (p *Pruner) Prune(ctx context.Context) (Result, error) {
	var res Result
	if err := ctx.Err(); err != nil {
		return res, err
	}

	snap := p.checkpoints.Latest()
	if snap == nil {
		return res, nil
	}
	res.SnapshotSeq = snap.Seq

	// The newest outbox entry stays: replay falls back to it when the
	// snapshot file is missing.
	if p.outbox != nil && snap.Seq > 1 {
		n, err := p.outbox.PruneAcked(snap.Seq - 1)
		res.OutboxEntries = n
		if err != nil {
			return res, fmt.Errorf("prune outbox: %w", err)
		}
	}
	if p.journal != nil {
		n, err := p.journal.TruncateBefore(snap.JournalSeq)
		res.JournalSegments = n
		if err != nil {
			return res, fmt.Errorf("truncate journal: %w", err)
		}
	}
	return res, nil
}
