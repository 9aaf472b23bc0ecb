package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// defaultTimeout bounds each Bot API call.
	defaultTimeout = 10 * time.Second
	// sendRetries is the number of extra attempts for outbound sends.
	// Reads that gate duplicate sends are never retried.
	sendRetries = 1
	// retryDelay is the pause before a send retry.
	retryDelay = 500 * time.Millisecond
)

// Client talks to the Telegram Bot API over HTTPS.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	BotToken string
	BaseURL  string       // defaults to https://api.telegram.org
	HTTP     *http.Client // optional; defaults to a client with a bounded timeout
}

// NewClient creates a Bot API client. The token is required — a missing
// token is a construction error, not a silent per-call no-op.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.BotToken == "" {
		return nil, fmt.Errorf("telegram: bot token is required")
	}
	base := opts.BaseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	hc := opts.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		httpClient: hc,
		baseURL:    strings.TrimRight(base, "/"),
		token:      opts.BotToken,
	}, nil
}

// SendMessageParams are the fields of a sendMessage call the gateway uses.
type SendMessageParams struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// EditMessageParams are the fields of an editMessageText call.
type EditMessageParams struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int                   `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// answerCallbackParams are the fields of an answerCallbackQuery call.
type answerCallbackParams struct {
	CallbackQueryID string `json:"callback_query_id"`
	Text            string `json:"text,omitempty"`
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
}

// SendMessage posts a message and returns the platform message ID.
// Retries once on transport failure; a duplicate send on a retried success
// is accepted as at-least-once behavior mirrored from the webhook side.
func (c *Client) SendMessage(ctx context.Context, p SendMessageParams) (int, error) {
	var result struct {
		MessageID int `json:"message_id"`
	}
	if err := c.callWithRetry(ctx, "sendMessage", p, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

// EditMessageText rewrites a previously sent message, including its
// inline keyboard. Passing a nil ReplyMarkup clears the buttons.
func (c *Client) EditMessageText(ctx context.Context, p EditMessageParams) error {
	return c.callWithRetry(ctx, "editMessageText", p, nil)
}

// AnswerCallbackQuery acknowledges a button press so the client UI stops
// its loading spinner. Not retried: a lost ack is cosmetic and Telegram
// redelivers the callback anyway.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackParams{
		CallbackQueryID: callbackID,
		Text:            text,
	}, nil)
}

// callWithRetry invokes call and retries once on failure.
func (c *Client) callWithRetry(ctx context.Context, method string, params, result interface{}) error {
	var err error
	for attempt := 0; attempt <= sendRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
		if err = c.call(ctx, method, params, result); err == nil {
			return nil
		}
	}
	return err
}

// call performs one Bot API request and decodes the result into result
// when non-nil.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("telegram: %s: marshal: %w", method, err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram: %s: build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: %s: %w", method, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("telegram: %s: read response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("telegram: %s: decode response (status %d): %w", method, resp.StatusCode, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram: %s: api error: %s", method, envelope.Description)
	}
	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram: %s: decode result: %w", method, err)
		}
	}
	return nil
}
