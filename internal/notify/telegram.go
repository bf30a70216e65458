package notify

import (
	"context"
	"fmt"
	"net/http"
)

// DefaultTelegramAPI is the Telegram Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// TelegramSender posts to a chat through the Bot API sendMessage call.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// NewTelegramSender creates a TelegramSender.
func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		baseURL: DefaultTelegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: defaultSendTimeout},
	}
}

// SetBaseURL points the sender at another API host.
func (t *TelegramSender) SetBaseURL(u string) { t.baseURL = u }

// Send posts title in bold followed by message.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	return postJSON(ctx, t.client, t.Name(),
		fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token),
		map[string]any{
			"chat_id":                  t.chatID,
			"text":                     fmt.Sprintf("*%s*\n%s", title, message),
			"parse_mode":               "Markdown",
			"disable_web_page_preview": true,
		})
}

// Name returns "telegram".
func (t *TelegramSender) Name() string { return "telegram" }
