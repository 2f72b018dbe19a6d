package robot

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-g1/pkg/actions"
)

// Mock implements Transport for testing.
// Behavior can be customized via function fields; nil fields succeed.
type Mock struct {
	SpeakFunc  func(ctx context.Context, text string) error
	StopFunc   func(ctx context.Context) error
	ActionFunc func(ctx context.Context, desc actions.Descriptor) (actions.Resolved, error)
	UploadFunc func(ctx context.Context, name string, wav []byte) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method string
	Text   string
	Action actions.Descriptor
	Time   time.Time
}

// NewMock creates a mock whose Action resolves against the real tables.
func NewMock() *Mock {
	return &Mock{
		ActionFunc: func(ctx context.Context, desc actions.Descriptor) (actions.Resolved, error) {
			return actions.Resolve(desc)
		},
	}
}

func (m *Mock) Speak(ctx context.Context, text string) error {
	m.record(MockCall{Method: "Speak", Text: text})
	if m.SpeakFunc != nil {
		return m.SpeakFunc(ctx, text)
	}
	return nil
}

func (m *Mock) Stop(ctx context.Context) error {
	m.record(MockCall{Method: "Stop"})
	if m.StopFunc != nil {
		return m.StopFunc(ctx)
	}
	return nil
}

func (m *Mock) Action(ctx context.Context, desc actions.Descriptor) (actions.Resolved, error) {
	m.record(MockCall{Method: "Action", Action: desc})
	if m.ActionFunc != nil {
		return m.ActionFunc(ctx, desc)
	}
	return actions.Resolved{Group: desc.Group, Name: desc.Name}, nil
}

func (m *Mock) UploadAudio(ctx context.Context, name string, wav []byte) error {
	m.record(MockCall{Method: "UploadAudio", Text: name})
	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, name, wav)
	}
	return nil
}

func (m *Mock) record(c MockCall) {
	c.Time = time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}
