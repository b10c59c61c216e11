package entry

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"
)

type RecordType uint8

const (
	// RecordSamples carries a compressed Batch.
	RecordSamples RecordType = iota + 1
	// RecordCheckpoint marks that a snapshot covers everything before it.
	// Its payload is the snapshot sequence.
	RecordCheckpoint
)

func (t RecordType) String() string {
	switch t {
	case RecordSamples:
		return "SAMPLES"
	case RecordCheckpoint:
		return "CHECKPOINT"
	default:
		return "UNKNOWN"
	}
}

type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

func NewRecord(t RecordType, seq uint64, data []byte) *Record {
	return &Record{
		Type: t,
		Seq:  seq,
		Time: time.Now().UnixNano(),
		Data: data,
	}
}

// Batch is a run of samples for one series.
type Batch struct {
	Name   string
	Values []float64
}

var (
	ErrCorrupt = errors.New("wal: corrupt record")
	ErrClosed  = errors.New("wal: closed")
)

const (
	headerSize = 1 + 8 + 8 + 4
	// maxPayload guards against allocating on a corrupt length field.
	maxPayload = 64 << 20
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// EncodeBatch serializes b as [nameLen:2][name][count:4][values:8*n] and
// compresses it.
func EncodeBatch(b Batch) ([]byte, error) {
	if len(b.Name) > math.MaxUint16 {
		return nil, fmt.Errorf("wal: series name too long (%d bytes)", len(b.Name))
	}
	raw := make([]byte, 2+len(b.Name)+4+8*len(b.Values))
	binary.BigEndian.PutUint16(raw[0:2], uint16(len(b.Name)))
	off := 2 + copy(raw[2:], b.Name)
	binary.BigEndian.PutUint32(raw[off:off+4], uint32(len(b.Values)))
	off += 4
	for _, v := range b.Values {
		binary.BigEndian.PutUint64(raw[off:off+8], math.Float64bits(v))
		off += 8
	}
	return encoder.EncodeAll(raw, nil), nil
}

func DecodeBatch(data []byte) (Batch, error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return Batch{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(raw) < 2 {
		return Batch{}, fmt.Errorf("%w: short batch", ErrCorrupt)
	}
	nameLen := int(binary.BigEndian.Uint16(raw[0:2]))
	if len(raw) < 2+nameLen+4 {
		return Batch{}, fmt.Errorf("%w: short batch name", ErrCorrupt)
	}
	b := Batch{Name: string(raw[2 : 2+nameLen])}
	off := 2 + nameLen
	n := int(binary.BigEndian.Uint32(raw[off : off+4]))
	off += 4
	if len(raw)-off != 8*n {
		return Batch{}, fmt.Errorf("%w: batch holds %d bytes for %d values", ErrCorrupt, len(raw)-off, n)
	}
	b.Values = make([]float64, n)
	for i := range b.Values {
		b.Values[i] = math.Float64frombits(binary.BigEndian.Uint64(raw[off : off+8]))
		off += 8
	}
	return b, nil
}

func encodeCheckpoint(snapshotSeq uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, snapshotSeq)
	return buf
}

// DecodeCheckpoint returns the snapshot sequence of a checkpoint record.
func DecodeCheckpoint(data []byte) (uint64, error) {
	if len(data) != 8 {
		return 0, fmt.Errorf("%w: checkpoint length %d", ErrCorrupt, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

// frame lays out r for disk.
func frame(r *Record) []byte {
	payloadLen := uint32(len(r.Data))
	buf := make([]byte, headerSize+payloadLen+4)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint64(buf[9:17], uint64(r.Time))
	binary.BigEndian.PutUint32(buf[17:21], payloadLen)
	copy(buf[headerSize:], r.Data)

	crc := CRC32(buf[:headerSize+payloadLen])
	binary.BigEndian.PutUint32(buf[headerSize+payloadLen:], crc)
	return buf
}
