package camera

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"
)

// MockSource replays a scripted sequence of read results. Once the script
// is exhausted it keeps returning solid frames. Useful for tests and for
// running the loop on a host without a camera.
type MockSource struct {
	mu      sync.Mutex
	opened  bool
	closed  bool
	openErr error
	script  []error
	seq     uint64
	width   int
	height  int
	fill    color.Color

	reads int
}

// MockOption configures a MockSource.
type MockOption func(*MockSource)

// WithOpenError makes Open fail with err.
func WithOpenError(err error) MockOption {
	return func(m *MockSource) {
		m.openErr = err
	}
}

// WithReadErrors queues read results. A nil entry yields a frame; a non-nil
// entry is returned from Next instead of a frame.
func WithReadErrors(errs ...error) MockOption {
	return func(m *MockSource) {
		m.script = append(m.script, errs...)
	}
}

// WithFill sets the frame size and colour.
func WithFill(w, h int, c color.Color) MockOption {
	return func(m *MockSource) {
		m.width, m.height, m.fill = w, h, c
	}
}

// NewMockSource creates a mock source producing 64x48 grey frames.
func NewMockSource(opts ...MockOption) *MockSource {
	m := &MockSource{
		width:  64,
		height: 48,
		fill:   color.RGBA{R: 128, G: 128, B: 128, A: 255},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open implements Source.
func (m *MockSource) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return m.openErr
	}
	m.opened = true
	return nil
}

// Next implements Source.
func (m *MockSource) Next(ctx context.Context) (Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opened || m.closed {
		return Frame{}, ErrNotOpen
	}
	m.reads++

	if len(m.script) > 0 {
		err := m.script[0]
		m.script = m.script[1:]
		if err != nil {
			return Frame{}, err
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			img.Set(x, y, m.fill)
		}
	}
	m.seq++
	return Frame{Image: img, Seq: m.seq, CapturedAt: time.Now()}, nil
}

// Close implements Source.
func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Reads returns how many times Next was called while open.
func (m *MockSource) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Source = (*MockSource)(nil)
