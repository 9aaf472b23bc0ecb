// Package gateway is the chat-command gateway: it parses commands from
// Telegram messages, links chat identities to tracker accounts, drives task
// state from inline button callbacks, and dispatches deduplicated reminders
// and summaries.
package gateway

import (
	"context"

	"github.com/zulandar/taskrelay/internal/telegram"
)

// Messenger is the outbound surface of the chat platform. The production
// implementation is *telegram.Client; tests use MockMessenger.
type Messenger interface {
	// SendMessage posts a message and returns the platform message ID.
	SendMessage(ctx context.Context, p telegram.SendMessageParams) (int, error)

	// EditMessageText rewrites a previously sent (chat, message) pair.
	EditMessageText(ctx context.Context, p telegram.EditMessageParams) error

	// AnswerCallbackQuery acknowledges an inline button press.
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

var _ Messenger = (*telegram.Client)(nil)
