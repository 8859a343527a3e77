package notify

import (
	"context"
	"sync"
)

// MemorySender records notifications for assertions in tests.
type MemorySender struct {
	mu   sync.Mutex
	sent []SentNotification
}

type SentNotification struct {
	ReceiverID   string
	Notification Notification
}

func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

func (s *MemorySender) Send(_ context.Context, receiverID string, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, SentNotification{ReceiverID: receiverID, Notification: n})
	return nil
}

func (s *MemorySender) Sent() []SentNotification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentNotification, len(s.sent))
	copy(out, s.sent)
	return out
}
