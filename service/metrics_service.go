package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"reclaim/infra/epoch"
	"reclaim/infra/sequence"
	entrywal "reclaim/infra/wal/entry"
	exitwal "reclaim/infra/wal/exit"
	"reclaim/metrics/registry"
	"reclaim/snapshot"
)

var ErrInvalidSample = errors.New("invalid sample")

/*
MetricsService is the ONLY write entry point into the system.

All coordination between:
- metrics (registry, buckets, aggregates)
- infra (journal, outbox)
- snapshot
happens here.

Record paths hold gate shared while they journal and push; Flush holds
it exclusively while it drains, so the journal position it captures
matches exactly the samples folded into the aggregates.
*/

type MetricsService struct {
	reg     *registry.Registry
	journal *entrywal.WAL
	outbox  *exitwal.ExitWAL
	writer  *snapshot.Writer
	log     *zap.Logger

	gate    sync.RWMutex
	flushMu sync.Mutex

	readerMu sync.Mutex
	reader   *snapshot.Reader

	snapSeq *sequence.Sequencer
	latest  atomic.Pointer[snapshot.Snapshot]

	recorded atomic.Uint64
	flushes  atomic.Uint64
}

// Deps are the optional collaborators of a MetricsService. A nil journal
// disables durability of unflushed samples; a nil outbox or writer skips
// that sink.
type Deps struct {
	Journal *entrywal.WAL
	Outbox  *exitwal.ExitWAL
	Writer  *snapshot.Writer
	Logger  *zap.Logger
}

// NewMetricsService wires all dependencies.
func NewMetricsService(reg *registry.Registry, deps Deps) *MetricsService {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &MetricsService{
		reg:     reg,
		journal: deps.Journal,
		outbox:  deps.Outbox,
		writer:  deps.Writer,
		log:     log.Named("service"),
		reader:  snapshot.NewReader(reg.Epochs()),
		snapSeq: sequence.New(0),
	}
}

func (s *MetricsService) Registry() *registry.Registry { return s.reg }

//
// ──────────────────────────────────────────────────────────
// Commands
// ──────────────────────────────────────────────────────────
//

// Record submits one sample.
func (s *MetricsService) Record(name string, v float64) error {
	return s.RecordBatch(name, []float64{v})
}

// RecordBatch journals vs and pushes them into the series bucket. An
// empty batch is a no-op.
func (s *MetricsService) RecordBatch(name string, vs []float64) error {
	if err := registry.ValidName(name); err != nil {
		return err
	}
	if len(vs) == 0 {
		return nil
	}
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %v", ErrInvalidSample, v)
		}
	}

	s.gate.RLock()
	defer s.gate.RUnlock()

	if s.journal != nil {
		if _, err := s.journal.AppendBatch(entrywal.Batch{Name: name, Values: vs}); err != nil {
			return fmt.Errorf("journal append: %w", err)
		}
	}
	if err := s.reg.ObserveBatch(name, vs); err != nil {
		return err
	}
	s.recorded.Add(uint64(len(vs)))
	return nil
}

// Flush drains every bucket into its aggregates, captures a snapshot and
// persists it to the outbox and the snapshot file.
func (s *MetricsService) Flush(ctx context.Context) (*snapshot.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	start := time.Now()

	s.gate.Lock()
	drained := s.reg.Drain()
	var journalSeq uint64
	if s.journal != nil {
		journalSeq = s.journal.LastSeq()
	}
	s.gate.Unlock()

	snap := s.capture(s.snapSeq.Next(), journalSeq)

	if err := s.persist(snap); err != nil {
		return nil, err
	}
	s.latest.Store(snap)
	s.flushes.Add(1)

	s.log.Debug("flushed",
		zap.Uint64("seq", snap.Seq),
		zap.Uint64("journal_seq", journalSeq),
		zap.Int("drained", drained),
		zap.Int("series", len(snap.Series)),
		zap.Duration("took", time.Since(start)),
	)
	return snap, nil
}

func (s *MetricsService) persist(snap *snapshot.Snapshot) error {
	if s.outbox == nil && s.writer == nil {
		return nil
	}

	data, err := snapshot.Encode(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %d: %w", snap.Seq, err)
	}
	if s.outbox != nil {
		if err := s.outbox.PutNew(snap.Seq, data); err != nil {
			return fmt.Errorf("outbox put %d: %w", snap.Seq, err)
		}
	}
	if s.writer != nil {
		if err := s.writer.WriteEncoded(data); err != nil {
			return fmt.Errorf("write snapshot %d: %w", snap.Seq, err)
		}
	}
	if s.journal != nil {
		if _, err := s.journal.Checkpoint(snap.Seq); err != nil {
			return fmt.Errorf("journal checkpoint: %w", err)
		}
	}
	return nil
}

//
// ──────────────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────────────
//

// Snapshot returns the current aggregates without draining. Samples
// still pending in buckets are not included.
func (s *MetricsService) Snapshot() *snapshot.Snapshot {
	var journalSeq uint64
	if last := s.latest.Load(); last != nil {
		journalSeq = last.JournalSeq
	}
	return s.capture(s.snapSeq.Current(), journalSeq)
}

// Latest is the most recent flushed snapshot, or nil.
func (s *MetricsService) Latest() *snapshot.Snapshot {
	return s.latest.Load()
}

func (s *MetricsService) capture(seq, journalSeq uint64) *snapshot.Snapshot {
	s.readerMu.Lock()
	defer s.readerMu.Unlock()
	return snapshot.Capture(s.reader, s.reg, seq, journalSeq)
}

type Stats struct {
	Series          int
	Recorded        uint64
	Pending         int
	Flushes         uint64
	LastSnapshotSeq uint64
	JournalSeq      uint64
	Epoch           epoch.Stats
}

func (s *MetricsService) Stats() Stats {
	st := Stats{
		Series:   s.reg.Len(),
		Recorded: s.recorded.Load(),
		Flushes:  s.flushes.Load(),
		Epoch:    s.reg.EpochStats(),
	}
	s.reg.Each(func(series *registry.Series) bool {
		st.Pending += series.Pending()
		return true
	})
	if last := s.latest.Load(); last != nil {
		st.LastSnapshotSeq = last.Seq
	}
	if s.journal != nil {
		st.JournalSeq = s.journal.LastSeq()
	}
	return st
}

// Close releases the snapshot reader. Storage is owned by the caller.
func (s *MetricsService) Close() {
	s.readerMu.Lock()
	defer s.readerMu.Unlock()
	s.reader.Close()
}
