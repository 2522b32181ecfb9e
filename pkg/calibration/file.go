package calibration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// FileStore keeps offsets in a flat YAML map on disk.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by path. The file is created on the
// first Save.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultConfig().Path
	}
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads all offsets. A missing file is an empty store.
func (s *FileStore) Load(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) read() (map[string]float64, error) {
	offsets := make(map[string]float64)

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return offsets, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}

	if err := yaml.Unmarshal(data, &offsets); err != nil {
		return nil, fmt.Errorf("parse calibration %s: %w", s.path, err)
	}
	if offsets == nil {
		offsets = make(map[string]float64)
	}
	return offsets, nil
}

// Save updates one offset and rewrites the file atomically.
func (s *FileStore) Save(ctx context.Context, id string, offset float64) error {
	if id == "" {
		return ErrInvalidKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	offsets, err := s.read()
	if err != nil {
		return err
	}
	offsets[id] = offset

	data, err := yaml.Marshal(offsets)
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	return writeAtomic(s.path, data)
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

// writeAtomic writes to a temp file in the same directory, fsyncs it and
// renames it over the destination.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure calibration directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".calibration-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename calibration file: %w", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
