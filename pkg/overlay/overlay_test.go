package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsQuit(t *testing.T) {
	tests := []struct {
		key  int
		want bool
	}{
		{'q', true},
		{'Q', true},
		{0x100000 | 'q', true},
		{-1, false},
		{'a', false},
		{27, false},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, IsQuit(tc.key), "key %d", tc.key)
	}
}
