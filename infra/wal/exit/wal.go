// Package exit is the outbox of aggregated snapshots waiting to be
// published. Each snapshot is stored under its sequence together with a
// delivery record that moves NEW -> SENT -> ACKED, or FAILED for retry.
package exit

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// -------------------- State --------------------

type ExitState uint8

const (
	StateNew ExitState = iota
	StateSent
	StateAcked
	StateFailed
)

func (s ExitState) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotFound      = errors.New("exit: entry not found")
	ErrInvalidRecord = errors.New("exit: invalid record")
)

// -------------------- Record --------------------

type ExitRecord struct {
	State       ExitState
	Retries     uint32
	LastAttempt int64
}

// binary encoding: [state:1][retries:4][lastAttempt:8]
func encodeRecord(r ExitRecord) []byte {
	buf := make([]byte, 1+4+8)
	buf[0] = byte(r.State)
	binary.BigEndian.PutUint32(buf[1:5], r.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(r.LastAttempt))
	return buf
}

func decodeRecord(b []byte) (ExitRecord, error) {
	if len(b) != 13 {
		return ExitRecord{}, fmt.Errorf("%w: length %d", ErrInvalidRecord, len(b))
	}
	return ExitRecord{
		State:       ExitState(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
	}, nil
}

// -------------------- WAL --------------------

type ExitWAL struct {
	db *pebble.DB
}

func Open(dir string) (*ExitWAL, error) {
	return open(dir, &pebble.Options{})
}

// OpenFS opens the outbox on a custom filesystem, e.g. vfs.NewMem().
func OpenFS(dir string, fs vfs.FS) (*ExitWAL, error) {
	return open(dir, &pebble.Options{FS: fs})
}

func open(dir string, opts *pebble.Options) (*ExitWAL, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &ExitWAL{db: db}, nil
}

func (w *ExitWAL) Close() error {
	return w.db.Close()
}

// -------------------- API --------------------

// PutNew stores a snapshot payload and marks it ready for publishing.
func (w *ExitWAL) PutNew(seq uint64, payload []byte) error {
	b := w.db.NewBatch()
	defer b.Close()

	rec := ExitRecord{State: StateNew}
	if err := b.Set(stateKey(seq), encodeRecord(rec), nil); err != nil {
		return err
	}
	if err := b.Set(payloadKey(seq), payload, nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

// UpdateState records a delivery attempt outcome.
func (w *ExitWAL) UpdateState(seq uint64, state ExitState, retries uint32) error {
	if _, err := w.Get(seq); err != nil {
		return err
	}
	rec := ExitRecord{
		State:       state,
		Retries:     retries,
		LastAttempt: time.Now().UnixNano(),
	}
	return w.db.Set(stateKey(seq), encodeRecord(rec), pebble.Sync)
}

// Delete removes an entry and its payload.
func (w *ExitWAL) Delete(seq uint64) error {
	b := w.db.NewBatch()
	defer b.Close()

	if err := b.Delete(stateKey(seq), nil); err != nil {
		return err
	}
	if err := b.Delete(payloadKey(seq), nil); err != nil {
		return err
	}
	return b.Commit(pebble.Sync)
}

func (w *ExitWAL) Get(seq uint64) (ExitRecord, error) {
	val, closer, err := w.db.Get(stateKey(seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return ExitRecord{}, fmt.Errorf("%w: seq %d", ErrNotFound, seq)
		}
		return ExitRecord{}, err
	}
	defer closer.Close()

	return decodeRecord(val)
}

// Payload returns a copy of the stored snapshot bytes.
func (w *ExitWAL) Payload(seq uint64) ([]byte, error) {
	val, closer, err := w.db.Get(payloadKey(seq))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: seq %d", ErrNotFound, seq)
		}
		return nil, err
	}
	defer closer.Close()

	return bytes.Clone(val), nil
}

// -------------------- Scan --------------------

// ScanByState iterates entries in the given state in sequence order.
// This is used by the broadcaster.
func (w *ExitWAL) ScanByState(
	state ExitState,
	fn func(seq uint64, rec ExitRecord) error,
) error {
	return w.scan(func(seq uint64, rec ExitRecord) error {
		if rec.State != state {
			return nil
		}
		return fn(seq, rec)
	})
}

// Last returns the highest stored sequence, or zero if the outbox is empty.
func (w *ExitWAL) Last() (uint64, error) {
	iter, err := w.newStateIter()
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 0, iter.Error()
	}
	return parseKey(iter.Key())
}

// PruneAcked deletes ACKED entries with sequence at or below upTo and
// returns how many were removed.
func (w *ExitWAL) PruneAcked(upTo uint64) (int, error) {
	var doomed []uint64
	err := w.scan(func(seq uint64, rec ExitRecord) error {
		if seq <= upTo && rec.State == StateAcked {
			doomed = append(doomed, seq)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i, seq := range doomed {
		if err := w.Delete(seq); err != nil {
			return i, err
		}
	}
	return len(doomed), nil
}

func (w *ExitWAL) scan(fn func(seq uint64, rec ExitRecord) error) error {
	iter, err := w.newStateIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		rec, err := decodeRecord(iter.Value())
		if err != nil {
			return err
		}

		seq, err := parseKey(iter.Key())
		if err != nil {
			return err
		}

		if err := fn(seq, rec); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (w *ExitWAL) newStateIter() (*pebble.Iterator, error) {
	return w.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(statePrefix),
		UpperBound: []byte(statePrefix + "~"),
	})
}

// -------------------- Helpers --------------------

const (
	statePrefix   = "snapshot/"
	payloadPrefix = "payload/"
)

func stateKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", statePrefix, seq))
}

func payloadKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", payloadPrefix, seq))
}

func parseKey(b []byte) (uint64, error) {
	var seq uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(statePrefix))), "%d", &seq)
	return seq, err
}
