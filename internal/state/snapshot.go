package state

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bytedance/sonic"

	"marketmaker/internal/risk"
)

// FileLatchStore represents the latch as a marker file: present means set.
type FileLatchStore struct {
	path   string
	symbol string
}

// NewFileLatchStore stores the marker at path.
func NewFileLatchStore(path, symbol string) *FileLatchStore {
	return &FileLatchStore{path: path, symbol: symbol}
}

func (s *FileLatchStore) Load(context.Context) (risk.Latch, error) {
	_, err := os.Stat(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return risk.Latch{}, nil
	}
	if err != nil {
		return risk.Latch{}, wrapStore(err, "stat marker")
	}
	return risk.Latch{Set: true}, nil
}

func (s *FileLatchStore) Save(_ context.Context, latch risk.Latch) error {
	if !latch.Set {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return wrapStore(err, "remove marker")
		}
		return nil
	}
	return wrapStore(WriteRecord(s.path, newRecord(s.symbol, latch)), "write marker")
}

func (s *FileLatchStore) Close() error {
	return nil
}

// WriteRecord writes a latch record to disk as JSON.
func WriteRecord(path string, record LatchRecord) error {
	data, err := sonic.ConfigStd.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadRecord loads a latch record from disk.
func ReadRecord(path string) (LatchRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LatchRecord{}, err
	}
	var rec LatchRecord
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return LatchRecord{}, err
	}
	return rec, nil
}
