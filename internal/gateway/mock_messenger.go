package gateway

import (
	"context"
	"sync"

	"github.com/zulandar/taskrelay/internal/telegram"
)

// MockMessenger implements Messenger for testing. It records every call and
// allows injecting per-method failures.
type MockMessenger struct {
	mu        sync.Mutex
	sent      []telegram.SendMessageParams
	edited    []telegram.EditMessageParams
	answered  []string
	nextMsgID int

	SendErr   error // returned by SendMessage when set
	EditErr   error // returned by EditMessageText when set
	AnswerErr error // returned by AnswerCallbackQuery when set
}

// NewMockMessenger creates a MockMessenger.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{}
}

// SendMessage records the message and returns an increasing message ID.
func (m *MockMessenger) SendMessage(ctx context.Context, p telegram.SendMessageParams) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return 0, m.SendErr
	}
	m.nextMsgID++
	m.sent = append(m.sent, p)
	return m.nextMsgID, nil
}

// EditMessageText records the edit.
func (m *MockMessenger) EditMessageText(ctx context.Context, p telegram.EditMessageParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.EditErr != nil {
		return m.EditErr
	}
	m.edited = append(m.edited, p)
	return nil
}

// AnswerCallbackQuery records the callback ID.
func (m *MockMessenger) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AnswerErr != nil {
		return m.AnswerErr
	}
	m.answered = append(m.answered, callbackID)
	return nil
}

// --- Test helpers ---

// SentCount returns the number of messages sent.
func (m *MockMessenger) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// LastSent returns the most recently sent message.
// Returns zero value and false if nothing has been sent.
func (m *MockMessenger) LastSent() (telegram.SendMessageParams, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return telegram.SendMessageParams{}, false
	}
	return m.sent[len(m.sent)-1], true
}

// AllSent returns a copy of all sent messages.
func (m *MockMessenger) AllSent() []telegram.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]telegram.SendMessageParams, len(m.sent))
	copy(out, m.sent)
	return out
}

// AllEdited returns a copy of all edits.
func (m *MockMessenger) AllEdited() []telegram.EditMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]telegram.EditMessageParams, len(m.edited))
	copy(out, m.edited)
	return out
}

// Answered returns a copy of all acknowledged callback IDs.
func (m *MockMessenger) Answered() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.answered))
	copy(out, m.answered)
	return out
}
