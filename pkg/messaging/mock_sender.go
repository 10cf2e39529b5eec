package messaging

import (
	"context"
	"sync"
)

// MockMessageSender records messages in memory for testing.
type MockMessageSender struct {
	mu       sync.Mutex
	messages []*FillsMessage
	err      error
	closed   bool
}

// NewMockMessageSender creates a new MockMessageSender.
func NewMockMessageSender() *MockMessageSender {
	return &MockMessageSender{}
}

// FailWith makes every subsequent send return err.
func (m *MockMessageSender) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SendFillsMessage records msg unless a failure was configured.
func (m *MockMessageSender) SendFillsMessage(ctx context.Context, msg *FillsMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, msg)
	return nil
}

// Messages returns the recorded messages.
func (m *MockMessageSender) Messages() []*FillsMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*FillsMessage(nil), m.messages...)
}

// Closed reports whether Close was called.
func (m *MockMessageSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close marks the sender closed.
func (m *MockMessageSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Ensure MockMessageSender implements MessageSender
var _ MessageSender = (*MockMessageSender)(nil)
