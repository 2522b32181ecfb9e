package camera

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSource_RequiresOpen(t *testing.T) {
	src := NewMockSource()
	_, err := src.Next(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestMockSource_OpenFailure(t *testing.T) {
	src := NewMockSource(WithOpenError(ErrSourceUnavailable))
	err := src.Open(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestMockSource_ScriptedDrops(t *testing.T) {
	ctx := context.Background()
	src := NewMockSource(WithReadErrors(ErrFrameDropped, nil))
	require.NoError(t, src.Open(ctx))

	_, err := src.Next(ctx)
	assert.True(t, errors.Is(err, ErrFrameDropped))

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), f.Seq)

	f, err = src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), f.Seq)
	assert.Equal(t, 3, src.Reads())
}

func TestMockSource_FrameContents(t *testing.T) {
	ctx := context.Background()
	src := NewMockSource(WithFill(8, 4, color.RGBA{R: 10, G: 20, B: 30, A: 255}))
	require.NoError(t, src.Open(ctx))

	f, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 8, f.Bounds().Dx())
	assert.Equal(t, 4, f.Bounds().Dy())

	r, g, b, _ := f.Image.At(3, 2).RGBA()
	assert.Equal(t, uint32(10), r>>8)
	assert.Equal(t, uint32(20), g>>8)
	assert.Equal(t, uint32(30), b>>8)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Empty(t, cfg.Validate())

	cfg.Device = ""
	cfg.Width = -1
	assert.Len(t, cfg.Validate(), 2)
}

func TestFrame_BoundsEmpty(t *testing.T) {
	assert.True(t, Frame{}.Bounds().Empty())
}
