package servo

import "sync"

// WriteCall is one recorded driver command.
type WriteCall struct {
	Pin   int
	Angle float64
}

// MockDriver records every command for tests.
type MockDriver struct {
	mu       sync.Mutex
	attached []int
	writes   []WriteCall
	closed   bool

	// Err, when set, is returned from Write.
	Err error
}

// NewMockDriver creates a recording driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{}
}

// Attach implements Driver.
func (m *MockDriver) Attach(pin int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attached = append(m.attached, pin)
	return nil
}

// Write implements Driver.
func (m *MockDriver) Write(pin int, angle float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.writes = append(m.writes, WriteCall{Pin: pin, Angle: angle})
	return nil
}

// Close implements Driver.
func (m *MockDriver) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Writes returns a copy of the recorded commands.
func (m *MockDriver) Writes() []WriteCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]WriteCall(nil), m.writes...)
}

// WritesTo returns the commands sent to one pin.
func (m *MockDriver) WritesTo(pin int) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []float64
	for _, w := range m.writes {
		if w.Pin == pin {
			out = append(out, w.Angle)
		}
	}
	return out
}

// Reset forgets recorded commands.
func (m *MockDriver) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}

// Attached returns the attached pins.
func (m *MockDriver) Attached() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.attached...)
}

// Closed reports whether Close was called.
func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Driver = (*MockDriver)(nil)
