package notify

import (
	"context"
	"sync"
)

// MockSender records every push for test assertions.
type MockSender struct {
	mu    sync.Mutex
	Sent  []Intent
	Fail  bool
	Error error
}

var _ PushSender = (*MockSender)(nil)

func (m *MockSender) Send(ctx context.Context, userID, notifType, title, body string, payload map[string]string) error {
	if m.Fail {
		return m.Error
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, Intent{UserID: userID, Type: notifType, Title: title, Body: body, Payload: payload})
	return nil
}

func (m *MockSender) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}

// MockInbox records every system message for test assertions.
type MockInbox struct {
	mu       sync.Mutex
	Messages []Intent
}

var _ InboxWriter = (*MockInbox)(nil)

func (m *MockInbox) SendSystemMessage(ctx context.Context, userID, title, body, category string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, Intent{UserID: userID, Type: category, Title: title, Body: body})
	return nil
}

func (m *MockInbox) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Messages)
}
