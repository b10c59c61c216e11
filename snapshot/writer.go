package snapshot

import (
	"errors"
	"os"
	"path/filepath"
)

const fileName = "snapshot.bin"

type Writer struct {
	Dir string
}

func (w *Writer) Path() string {
	return filepath.Join(w.Dir, fileName)
}

// Write replaces the snapshot file atomically.
func (w *Writer) Write(s *Snapshot) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}
	return w.WriteEncoded(data)
}

// WriteEncoded stores bytes produced by Encode.
func (w *Writer) WriteEncoded(data []byte) error {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(w.Dir, fileName+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, w.Path())
}

// Load reads the snapshot at path. A missing file yields (nil, nil):
// the snapshot is optional.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return Decode(data)
}
