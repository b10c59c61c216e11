package service

import (
	"fmt"

	"go.uber.org/zap"

	entrywal "reclaim/infra/wal/entry"
	"reclaim/snapshot"
)

type ReplayResult struct {
	SnapshotSeq uint64
	Restored    int
	Replayed    int
	Samples     int
	LastSeq     uint64
}

/*
ReplayFromWAL rebuilds in-memory state: the latest snapshot first, then
every journal batch recorded after it.

IMPORTANT:
- This MUST run before accepting traffic
- The outbox is read only to find a snapshot when the file is missing
*/
func (s *MetricsService) ReplayFromWAL() (ReplayResult, error) {
	var res ReplayResult

	snap, err := s.loadSnapshot()
	if err != nil {
		return res, err
	}

	var after uint64
	if snap != nil {
		n, err := snapshot.Restore(s.reg, snap)
		if err != nil {
			s.log.Warn("snapshot partially restored", zap.Uint64("seq", snap.Seq), zap.Error(err))
		}
		res.Restored = n
		res.SnapshotSeq = snap.Seq
		after = snap.JournalSeq
		s.snapSeq.AdvanceTo(snap.Seq)
		s.latest.Store(snap)
	}
	if s.outbox != nil {
		last, err := s.outbox.Last()
		if err != nil {
			return res, fmt.Errorf("outbox last: %w", err)
		}
		s.snapSeq.AdvanceTo(last)
	}

	if s.journal == nil {
		return res, nil
	}

	lastSeq, err := entrywal.Replay(s.journal.Dir(), func(rec *entrywal.Record) error {
		if rec.Type != entrywal.RecordSamples || rec.Seq <= after {
			return nil
		}
		b, err := entrywal.DecodeBatch(rec.Data)
		if err != nil {
			return fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		if err := s.reg.ObserveBatch(b.Name, b.Values); err != nil {
			return fmt.Errorf("record %d: %w", rec.Seq, err)
		}
		res.Replayed++
		res.Samples += len(b.Values)
		return nil
	})
	res.LastSeq = lastSeq
	if err != nil {
		return res, err
	}

	s.log.Info("WAL replay completed",
		zap.Uint64("snapshot_seq", res.SnapshotSeq),
		zap.Int("restored_series", res.Restored),
		zap.Int("replayed_batches", res.Replayed),
		zap.Int("samples", res.Samples),
		zap.Uint64("last_seq", lastSeq),
	)
	return res, nil
}

func (s *MetricsService) loadSnapshot() (*snapshot.Snapshot, error) {
	if s.writer != nil {
		snap, err := snapshot.Load(s.writer.Path())
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if snap != nil {
			return snap, nil
		}
	}
	if s.outbox == nil {
		return nil, nil
	}

	last, err := s.outbox.Last()
	if err != nil || last == 0 {
		return nil, err
	}
	data, err := s.outbox.Payload(last)
	if err != nil {
		return nil, err
	}
	return snapshot.Decode(data)
}
