package notify

import (
	"context"
	"sync"
)

// Mock records sent events. Setting Err makes Send fail.
type Mock struct {
	mu   sync.Mutex
	sent []Event
	Err  error
}

func (m *Mock) Name() string { return "mock" }

// Send records e, or returns Err when set.
func (m *Mock) Send(ctx context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, e)
	return nil
}

// Sent returns a copy of the recorded events.
func (m *Mock) Sent() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.sent))
	copy(out, m.sent)
	return out
}
