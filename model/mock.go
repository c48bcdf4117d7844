package model

import (
	"context"
	"errors"
	"sync"
)

// Mock is a scripted ChatModel for tests.
//
// Replies are returned in order; once exhausted, the last reply repeats. Set
// Err to make every call fail. Calls records each conversation received.
type Mock struct {
	mu      sync.Mutex
	Replies []string
	Err     error
	Calls   [][]Message

	next int
}

// NewMock creates a Mock that replies with the given texts in order.
func NewMock(replies ...string) *Mock {
	return &Mock{Replies: replies}
}

// Chat returns the next scripted reply.
func (m *Mock) Chat(_ context.Context, messages []Message) (ChatOut, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := make([]Message, len(messages))
	copy(copied, messages)
	m.Calls = append(m.Calls, copied)

	if m.Err != nil {
		return ChatOut{}, m.Err
	}
	if len(m.Replies) == 0 {
		return ChatOut{}, errors.New("mock: no replies scripted")
	}
	i := m.next
	if i >= len(m.Replies) {
		i = len(m.Replies) - 1
	}
	m.next++
	return ChatOut{Text: m.Replies[i]}, nil
}

// CallCount returns how many times Chat was invoked.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
