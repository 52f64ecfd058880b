package developer

import (
	"context"
	"fmt"
	"sync"
)

// Mock is a deterministic Backend for tests: each call to ExecutePrompt
// returns the next scripted output in order, repeating the last one once
// exhausted.
type Mock struct {
	mu      sync.Mutex
	Outputs []string
	calls   int
	InitErr error
}

// Initialize returns m.InitErr, if set.
func (m *Mock) Initialize(ctx context.Context) error { return m.InitErr }

// ExecutePrompt returns the next scripted output.
func (m *Mock) ExecutePrompt(ctx context.Context, prompt, workDir string) (*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Outputs) == 0 {
		return nil, fmt.Errorf("mock developer backend: no scripted outputs")
	}
	idx := m.calls
	if idx >= len(m.Outputs) {
		idx = len(m.Outputs) - 1
	}
	m.calls++
	return &Result{RawOutput: m.Outputs[idx]}, nil
}

// CallCount returns how many times ExecutePrompt has been invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
