package labels

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var waste = []string{"trash", "recycle", "compost", "electronics"}

func TestResolve_StableForAllIndices(t *testing.T) {
	r, err := New(waste)
	require.NoError(t, err)

	for round := 0; round < 3; round++ {
		for i, want := range waste {
			got, err := r.Resolve(i)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		}
	}
}

func TestResolve_OutOfRange(t *testing.T) {
	r, err := New(waste)
	require.NoError(t, err)

	for _, i := range []int{-1, 4, 100} {
		_, err := r.Resolve(i)
		assert.ErrorIs(t, err, ErrIndexOutOfRange)
	}
}

func TestNew_CopiesInput(t *testing.T) {
	names := []string{"a", "b"}
	r, err := New(names)
	require.NoError(t, err)

	names[0] = "mutated"
	got, _ := r.Resolve(0)
	assert.Equal(t, "a", got)

	r.Names()[1] = "mutated"
	got, _ = r.Resolve(1)
	assert.Equal(t, "b", got)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"plain", "trash\nrecycle\ncompost\nelectronics", waste},
		{"trailing newline", "trash\nrecycle\ncompost\nelectronics\n\n", waste},
		{"crlf", "trash\r\nrecycle\r\ncompost\r\nelectronics\r\n", waste},
		{"inner blank kept", "a\n\nc\n", []string{"a", "", "c"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Parse(strings.NewReader(tc.input))
			require.NoError(t, err)
			assert.Equal(t, tc.want, r.Names())
		})
	}
}

func TestParse_Empty(t *testing.T) {
	_, err := Parse(strings.NewReader("\n\n"))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(waste, "\n")), 0o644))

	r, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, r.Len())

	_, err = Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}
