package inference

import "sync"

// MockEngine returns scripted class indices. Once the script runs out it
// keeps returning the last index.
type MockEngine struct {
	mu       sync.Mutex
	contract Contract
	script   []int
	calls    []Tensor
	closed   bool
}

// NewMockEngine creates a mock engine with the given contract that answers
// with the scripted indices in order.
func NewMockEngine(contract Contract, indices ...int) *MockEngine {
	if len(indices) == 0 {
		indices = []int{0}
	}
	return &MockEngine{contract: contract, script: indices}
}

// Contract implements Engine.
func (m *MockEngine) Contract() Contract {
	return m.contract
}

// Classify implements Engine. The tensor is validated like a real engine
// would.
func (m *MockEngine) Classify(t Tensor) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}
	if err := t.Validate(m.contract); err != nil {
		return 0, err
	}
	m.calls = append(m.calls, t)

	idx := m.script[0]
	if len(m.script) > 1 {
		m.script = m.script[1:]
	}
	return idx, nil
}

// Close implements Engine.
func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Calls returns the number of Classify calls that passed validation.
func (m *MockEngine) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ Engine = (*MockEngine)(nil)
