package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// TelegramSender posts messages through the Telegram Bot API.
type TelegramSender struct {
	token   string
	chatID  string
	baseURL string
	client  *resty.Client
}

// NewTelegramSender creates a sender for the bot token and chat. An empty
// baseURL uses the public Bot API.
func NewTelegramSender(token, chatID, baseURL string) *TelegramSender {
	if baseURL == "" {
		baseURL = defaultTelegramBaseURL
	}
	return &TelegramSender{
		token:   token,
		chatID:  chatID,
		baseURL: baseURL,
		client:  resty.New().SetTimeout(10 * time.Second),
	}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts plain text; market questions routinely contain characters that
// Markdown parse modes reject.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	var out telegramResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"chat_id":                  t.chatID,
			"text":                     title + "\n" + message,
			"disable_web_page_preview": true,
		}).
		SetResult(&out).
		SetError(&out).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token))
	if err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	if resp.IsError() || !out.OK {
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode(), out.Description)
	}
	return nil
}

func (t *TelegramSender) Name() string { return "telegram" }
