package entry

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// segmentInfo is what a header-only pass over a segment learns.
type segmentInfo struct {
	maxSeq uint64
	// validEnd is the offset just past the last complete frame.
	validEnd int64
	torn     bool
}

// scanSegment walks frame headers without reading payloads. A short
// trailing frame is reported as torn rather than as an error.
func scanSegment(path string) (segmentInfo, error) {
	var info segmentInfo

	f, err := os.Open(path)
	if err != nil {
		return info, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return info, err
	}
	size := st.Size()

	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(f, header); err != nil {
			if errors.Is(err, io.EOF) {
				return info, nil
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				info.torn = true
				return info, nil
			}
			return info, err
		}

		payloadLen := int64(binary.BigEndian.Uint32(header[17:21]))
		end := info.validEnd + headerSize + payloadLen + 4
		if payloadLen > maxPayload || end > size {
			info.torn = true
			return info, nil
		}

		if seq := binary.BigEndian.Uint64(header[1:9]); seq > info.maxSeq {
			info.maxSeq = seq
		}
		if _, err := f.Seek(payloadLen+4, io.SeekCurrent); err != nil {
			return info, err
		}
		info.validEnd = end
	}
}
