package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Telegram sends plain-text status messages to a single chat through the
// Telegram Bot API.
type Telegram struct {
	client  *http.Client
	baseURL string
	token   string
	chatID  string
	logger  *zap.Logger
}

// NewTelegram creates a new Telegram notifier
func NewTelegram(token, chatID string, logger *zap.Logger) *Telegram {
	return &Telegram{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://api.telegram.org",
		token:   token,
		chatID:  chatID,
		logger:  logger,
	}
}

// sendMessageRequest represents the Telegram sendMessage API request
type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

// apiResponse represents a Telegram API response envelope
type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Send delivers a plain-text message to the configured chat. Delivery is
// best-effort: callers log the returned error and move on, it is never
// retried here.
func (t *Telegram) Send(ctx context.Context, text string) error {
	payload, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  text,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiRes apiResponse
	if err := json.Unmarshal(body, &apiRes); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	if !apiRes.OK {
		return fmt.Errorf("telegram api error %d: %s", apiRes.ErrorCode, apiRes.Description)
	}

	t.logger.Debug("notification delivered", zap.String("chat_id", t.chatID))
	return nil
}
