package calibration

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises the behaviour every Store must share.
// reopen returns a fresh store over the same durable state.
func runStoreContract(t *testing.T, reopen func() Store) {
	ctx := context.Background()

	s := reopen()
	offsets, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, offsets)

	require.NoError(t, s.Save(ctx, "p0", 10))
	require.NoError(t, s.Save(ctx, "p2", -35.5))
	require.NoError(t, s.Save(ctx, "p0", 12.25))
	assert.ErrorIs(t, s.Save(ctx, "", 1), ErrInvalidKey)
	require.NoError(t, s.Close())

	s = reopen()
	defer s.Close()
	offsets, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"p0": 12.25, "p2": -35.5}, offsets)
}

func TestFileStore_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "calibration.yaml")
	runStoreContract(t, func() Store { return NewFileStore(path) })
}

func TestRedisStore_Contract(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	runStoreContract(t, func() Store {
		client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
		return NewRedisStoreFromClient(client, WithKey("test:calibration"))
	})

	assert.Equal(t, "12.25", mr.HGet("test:calibration", "p0"))
}

func TestRedisStore_BadValue(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	mr.HSet("smartbin:calibration", "p1", "not-a-number")
	s := NewRedisStore(mr.Addr(), 0)
	defer s.Close()

	_, err = s.Load(context.Background())
	assert.Error(t, err)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.yaml")
	require.NoError(t, os.WriteFile(path, []byte("p0: [unclosed"), 0o644))

	_, err := NewFileStore(path).Load(context.Background())
	assert.Error(t, err)
}

func TestFileStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "calibration.yaml"))
	require.NoError(t, s.Save(context.Background(), "p3", 80))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Backend: BackendFile, Path: filepath.Join(t.TempDir(), "c.yaml")}, nil)
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(Config{Backend: "etcd"}, nil)
	assert.Error(t, err)
}
