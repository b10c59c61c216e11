package entry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"reclaim/infra/sequence"
)

type Config struct {
	Dir             string
	SegmentSize     int64
	SegmentDuration time.Duration
	// SyncEveryWrite fsyncs after each append instead of leaving it to Sync.
	SyncEveryWrite bool
	Logger         *zap.Logger
}

const DefaultSegmentSize = 16 << 20

type WAL struct {
	mu         sync.Mutex
	cfg        Config
	current    *segment
	segIndex   int
	lastRotate time.Time
	seq        *sequence.Sequencer
	closed     bool
}

// Open creates dir if needed and resumes appending to its highest
// segment. A torn frame at the end of that segment is cut off.
func Open(cfg Config) (*WAL, error) {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = DefaultSegmentSize
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	var lastSeq uint64
	index := 0
	for i, path := range files {
		info, err := scanSegment(path)
		if err != nil {
			return nil, fmt.Errorf("wal: scan %s: %w", path, err)
		}
		if info.maxSeq > lastSeq {
			lastSeq = info.maxSeq
		}
		if i == len(files)-1 {
			index = segmentIndex(path)
			if info.torn {
				if err := os.Truncate(path, info.validEnd); err != nil {
					return nil, err
				}
			}
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &WAL{
		cfg:        cfg,
		current:    seg,
		segIndex:   index,
		lastRotate: time.Now(),
		seq:        sequence.New(lastSeq),
	}, nil
}

// Append frames data under the next sequence number and returns it.
// Once the frame is written the record counts as appended: a failed
// rotation is logged and retried on the next append.
func (w *WAL) Append(t RecordType, data []byte) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, ErrClosed
	}

	seq := w.seq.Next()
	if err := w.current.append(frame(NewRecord(t, seq, data))); err != nil {
		return 0, err
	}
	if w.cfg.SyncEveryWrite {
		if err := w.current.sync(); err != nil {
			return 0, err
		}
	}

	if w.current.offset >= w.cfg.SegmentSize ||
		(w.cfg.SegmentDuration > 0 && time.Since(w.lastRotate) >= w.cfg.SegmentDuration) {
		if err := w.rotate(); err != nil {
			w.cfg.Logger.Warn("segment rotation failed",
				zap.Int("segment", w.segIndex),
				zap.Uint64("seq", seq),
				zap.Error(err),
			)
		}
	}
	return seq, nil
}

func (w *WAL) AppendBatch(b Batch) (uint64, error) {
	data, err := EncodeBatch(b)
	if err != nil {
		return 0, err
	}
	return w.Append(RecordSamples, data)
}

// Checkpoint records that snapshotSeq covers every earlier record.
func (w *WAL) Checkpoint(snapshotSeq uint64) (uint64, error) {
	return w.Append(RecordCheckpoint, encodeCheckpoint(snapshotSeq))
}

// LastSeq is the sequence of the most recent append.
func (w *WAL) LastSeq() uint64 {
	return w.seq.Current()
}

func (w *WAL) Dir() string {
	return w.cfg.Dir
}

// rotate leaves the current segment active unless the next one opened.
func (w *WAL) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	seg, err := openSegment(w.cfg.Dir, w.segIndex+1)
	if err != nil {
		return err
	}
	_ = w.current.close()

	w.segIndex++
	w.current = seg
	w.lastRotate = time.Now()
	return nil
}

func (w *WAL) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	return w.current.sync()
}

func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

// TruncateBefore removes closed segments whose records are all at or
// below seq. The active segment is never removed. It returns the number
// of segments deleted.
func (w *WAL) TruncateBefore(seq uint64) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := listSegments(w.cfg.Dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, path := range files {
		if segmentIndex(path) >= w.segIndex {
			continue
		}
		info, err := scanSegment(path)
		if err != nil {
			continue
		}
		if info.maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, nil
}
