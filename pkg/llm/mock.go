package llm

import (
	"context"
	"sync"
	"time"
)

// Mock implements Completer for testing.
// CompleteFunc defaults to returning an empty completion error.
type Mock struct {
	CompleteFunc func(ctx context.Context, msgs []Message, temperature float64) (string, error)

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records one request.
type MockCall struct {
	Method      string
	Messages    []Message
	Temperature float64
	Time        time.Time
}

// Reply returns a mock that always answers text.
func Reply(text string) *Mock {
	return &Mock{CompleteFunc: func(context.Context, []Message, float64) (string, error) {
		return text, nil
	}}
}

func (m *Mock) Complete(ctx context.Context, msgs []Message, temperature float64) (string, error) {
	m.record("Complete", msgs, temperature)
	if m.CompleteFunc == nil {
		return "", ErrEmpty
	}
	return m.CompleteFunc(ctx, msgs, temperature)
}

// Stream runs CompleteFunc and feeds the result through a Splitter.
func (m *Mock) Stream(ctx context.Context, msgs []Message, temperature float64, onSentence func(string)) (string, error) {
	m.record("Stream", msgs, temperature)
	if m.CompleteFunc == nil {
		return "", ErrEmpty
	}
	text, err := m.CompleteFunc(ctx, msgs, temperature)
	if err != nil {
		return "", err
	}
	sp := NewSplitter(onSentence)
	sp.Write(text)
	sp.Flush()
	return text, nil
}

func (m *Mock) record(method string, msgs []Message, temperature float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:      method,
		Messages:    append([]Message(nil), msgs...),
		Temperature: temperature,
		Time:        time.Now(),
	})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns the number of recorded calls.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

var _ Completer = (*Mock)(nil)
