package store

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/ytget/vidfetch/errs"
)

const recordSuffix = ".mp"

// File stores one msgpack record per key under a root directory.
// Records that cannot be read or decoded are treated as missing.
type File struct {
	rootDir string
	mu      sync.RWMutex
}

type fileRecord struct {
	Key   string `msgpack:"k"`
	Value string `msgpack:"v"`
}

// NewFile creates a file-backed store under rootDir, creating it if needed.
func NewFile(rootDir string) (*File, error) {
	if rootDir == "" {
		return nil, errors.New("rootDir is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	return &File{rootDir: rootDir}, nil
}

// Dir returns the root directory.
func (f *File) Dir() string { return f.rootDir }

func (f *File) filenameForKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(f.rootDir, fmt.Sprintf("%x%s", sum[:], recordSuffix))
}

func readRecord(path string) (fileRecord, error) {
	var rec fileRecord
	b, err := os.ReadFile(path)
	if err != nil {
		return rec, err
	}
	err = msgpack.Unmarshal(b, &rec)
	return rec, err
}

// GetItem reads the record for key. Unreadable records are misses.
func (f *File) GetItem(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	rec, err := readRecord(f.filenameForKey(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		if errors.Is(err, fs.ErrPermission) {
			return "", false, fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
		}
		return "", false, nil
	}
	if rec.Key != key {
		return "", false, nil
	}
	return rec.Value, true, nil
}

// SetItem writes the record for key through a temporary file.
func (f *File) SetItem(key, value string) error {
	b, err := msgpack.Marshal(fileRecord{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	fn := f.filenameForKey(key)
	tmp := fn + ".tmp"
	if err := os.WriteFile(tmp, b, fs.FileMode(0o644)); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmp, fn); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	return nil
}

// RemoveItem deletes the record for key. A missing record is not an error.
func (f *File) RemoveItem(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.filenameForKey(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	return nil
}

// Keys reads every record once and returns the stored keys in sorted order.
func (f *File) Keys() ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.rootDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStorageUnavailable, err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordSuffix) {
			continue
		}
		rec, err := readRecord(filepath.Join(f.rootDir, e.Name()))
		if err != nil {
			continue
		}
		keys = append(keys, rec.Key)
	}
	sort.Strings(keys)
	return keys, nil
}
